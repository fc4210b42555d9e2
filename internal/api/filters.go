package api

import (
	"encoding/json"
	"net/http"

	"github.com/kalambet/jobboard/internal/listing"
)

func handleCategories(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Categories)
	}
}

func handleGetLastFilter(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		c, found, err := deps.Cache.Load(r.Context(), sess.UserID)
		if err != nil {
			deps.Logger.Warn("loading last filter", "user_id", sess.UserID, "error", err)
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "no saved filter")
			return
		}
		// Titles are re-derived in case the category table changed.
		writeJSON(w, http.StatusOK, c.Normalize(deps.Categories))
	}
}

func handlePutLastFilter(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var c listing.Criteria
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		c = c.Normalize(deps.Categories)
		if err := deps.Cache.Save(r.Context(), sess.UserID, c); err != nil {
			deps.Logger.Warn("saving last filter", "user_id", sess.UserID, "error", err)
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleDeleteLastFilter(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		if err := deps.Cache.Clear(r.Context(), sess.UserID); err != nil {
			deps.Logger.Warn("clearing last filter", "user_id", sess.UserID, "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}
