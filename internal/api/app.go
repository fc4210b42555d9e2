package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/jobboard/internal/listing"
	"github.com/kalambet/jobboard/internal/profile"
	"github.com/kalambet/jobboard/internal/session"
	"github.com/kalambet/jobboard/internal/storage"
	"github.com/kalambet/jobboard/internal/watchlist"
)

type AppDeps struct {
	Repo       storage.Repository
	Profiles   *profile.Manager
	Hub        *watchlist.Hub
	Cache      listing.Cache // last applied filter per user
	Categories listing.Categories
	Token      string
	Logger     *slog.Logger // optional; defaults to slog.Default()
}

// NewAppHandler returns the REST API. Everything except /health requires
// the bearer token; the user comes from the session headers.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = listing.NewMemoryCache()
	}
	if deps.Categories.Entries == nil {
		deps.Categories = listing.DefaultCategories
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Use(session.Middleware)

		r.Get("/categories", handleCategories(deps))

		r.Route("/postings", func(r chi.Router) {
			r.Get("/", handleListPostings(deps))
			r.Post("/", handleCreatePosting(deps))
			r.Get("/mine", handleMyPostings(deps))
			r.Get("/{id}", handleGetPosting(deps))
			r.Put("/{id}", handleUpdatePosting(deps))
			r.Delete("/{id}", handleDeletePosting(deps))
			r.Post("/{id}/apply", handleApply(deps))
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", handleWatchList(deps))
			r.Get("/stream", handleWatchStream(deps))
			r.Post("/{jobID}/toggle", handleToggleWatch(deps))
		})

		r.Get("/filters/last", handleGetLastFilter(deps))
		r.Put("/filters/last", handlePutLastFilter(deps))
		r.Delete("/filters/last", handleDeleteLastFilter(deps))

		r.Post("/signup", handleSignup(deps))
		r.Post("/login", handleLogin(deps))
		r.Get("/profile", handleGetProfile(deps))
		r.Put("/profile", handlePutProfile(deps))
		r.Post("/profile/verify", handleVerifyProfile(deps))
		r.Post("/profile/resume", handleUploadResume(deps))

		r.Get("/messages", handleListMessages(deps))
	})

	return r
}
