package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/jobboard/internal/listing"
	"github.com/kalambet/jobboard/internal/outbox"
	"github.com/kalambet/jobboard/internal/storage"
	"github.com/kalambet/jobboard/internal/validate"
)

const defaultEmploymentType = "Full-time"

// PostingRequest is the editable part of a posting.
type PostingRequest struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	Description      string   `json:"description"`
	Responsibilities string   `json:"responsibilities,omitempty"`
	Salary           string   `json:"salary,omitempty"`
	Hourly           string   `json:"hourly,omitempty"`
	EmploymentType   string   `json:"employment_type,omitempty"`
	Location         string   `json:"location"`
	Skills           []string `json:"skills,omitempty"`
	Benefits         string   `json:"benefits,omitempty"`
	Category         string   `json:"category"`
}

// decodeValidated reads the body, checks it against schema and decodes it
// into v. It writes the error response and returns false on failure.
func decodeValidated(w http.ResponseWriter, r *http.Request, schema string, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
		return false
	}
	if err := validate.JSON(schema, body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func criteriaFromQuery(r *http.Request) listing.Criteria {
	q := r.URL.Query()
	return listing.Criteria{
		EmploymentType: q.Get("employment_type"),
		Location:       q.Get("location"),
		MinSalary:      q.Get("min_salary"),
		MaxSalary:      q.Get("max_salary"),
		Company:        q.Get("company"),
		Category:       q.Get("category"),
		Keyword:        q.Get("keyword"),
	}
}

func handleListPostings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postings, err := deps.Repo.ListPostings(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list postings: %v", err)
			return
		}

		c := criteriaFromQuery(r).Normalize(deps.Categories)
		result := listing.Filter(postings, c, deps.Categories)
		if result == nil {
			result = []storage.Posting{}
		}

		if r.URL.Query().Get("save") == "true" {
			if sess, ok := requireSession(w, r); !ok {
				return
			} else if err := deps.Cache.Save(r.Context(), sess.UserID, c); err != nil {
				deps.Logger.Warn("saving last filter", "user_id", sess.UserID, "error", err)
			}
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleMyPostings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		postings, err := deps.Repo.ListPostingsByAuthor(r.Context(), sess.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list postings: %v", err)
			return
		}
		if postings == nil {
			postings = []storage.Posting{}
		}
		writeJSON(w, http.StatusOK, postings)
	}
}

func handleGetPosting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Repo.GetPosting(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "posting not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get posting: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleCreatePosting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		var req PostingRequest
		if !decodeValidated(w, r, validate.Posting, &req) {
			return
		}

		author, err := deps.Profiles.Get(r.Context(), sess.UserID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && author.ProfileID == "") {
			httpError(w, http.StatusForbidden, "permission_error", "create a profile before posting jobs")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}

		if req.EmploymentType == "" {
			req.EmploymentType = defaultEmploymentType
		}
		p := storage.Posting{
			ID:        uuid.New().String(),
			AuthorID:  sess.UserID,
			ProfileID: author.ProfileID,
			CreatedAt: time.Now().UTC(),
		}
		applyPostingRequest(&p, req)

		if err := deps.Repo.CreatePosting(r.Context(), p); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save posting: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func applyPostingRequest(p *storage.Posting, req PostingRequest) {
	p.Title = req.Title
	p.Company = req.Company
	p.Description = req.Description
	p.Responsibilities = req.Responsibilities
	p.Salary = req.Salary
	p.Hourly = req.Hourly
	p.EmploymentType = req.EmploymentType
	p.Location = req.Location
	p.Skills = req.Skills
	p.Benefits = req.Benefits
	p.Category = req.Category
}

// loadOwnPosting fetches the posting named in the URL and checks that the
// caller wrote it.
func loadOwnPosting(deps AppDeps, w http.ResponseWriter, r *http.Request) (storage.Posting, bool) {
	sess, ok := requireSession(w, r)
	if !ok {
		return storage.Posting{}, false
	}
	p, err := deps.Repo.GetPosting(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "posting not found")
		return storage.Posting{}, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get posting: %v", err)
		return storage.Posting{}, false
	}
	if p.AuthorID != sess.UserID {
		httpError(w, http.StatusForbidden, "permission_error", "only the author can change this posting")
		return storage.Posting{}, false
	}
	return p, true
}

func handleUpdatePosting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadOwnPosting(deps, w, r)
		if !ok {
			return
		}

		var req PostingRequest
		if !decodeValidated(w, r, validate.PostingUpdate, &req) {
			return
		}

		// Absent required fields keep their current value.
		if req.Title == "" {
			req.Title = p.Title
		}
		if req.Company == "" {
			req.Company = p.Company
		}
		if req.Description == "" {
			req.Description = p.Description
		}
		if req.Location == "" {
			req.Location = p.Location
		}
		if req.Category == "" {
			req.Category = p.Category
		}
		if req.EmploymentType == "" {
			req.EmploymentType = p.EmploymentType
		}
		if req.Salary == "" {
			req.Salary = "0"
		}
		if req.Hourly == "" {
			req.Hourly = "0"
		}
		applyPostingRequest(&p, req)

		err := deps.Repo.UpdatePosting(r.Context(), p)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "posting not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update posting: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeletePosting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadOwnPosting(deps, w, r)
		if !ok {
			return
		}

		watchers, err := deps.Repo.ListWatchersOf(r.Context(), p.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list watchers: %v", err)
			return
		}

		err = deps.Repo.DeletePosting(r.Context(), p.ID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "posting not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete posting: %v", err)
			return
		}

		// Watchers still converge on their next refresh or sweep.
		if err := outbox.EnqueuePostingRemoved(r.Context(), deps.Repo, p.ID, watchers); err != nil {
			deps.Logger.Error("queueing posting_removed", "job_id", p.ID, "error", err)
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
