package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/kalambet/jobboard/internal/profile"
	"github.com/kalambet/jobboard/internal/storage"
	"github.com/kalambet/jobboard/internal/validate"
)

func profileError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "profile not found; sign up first")
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "profile: %v", err)
}

func handleSignup(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		var req profile.SignupRequest
		if !decodeValidated(w, r, validate.Signup, &req) {
			return
		}

		p, err := deps.Profiles.Signup(r.Context(), sess.UserID, req)
		if errors.Is(err, storage.ErrConflict) {
			httpError(w, http.StatusConflict, "conflict_error", "user %s or email %s already signed up", sess.UserID, req.Email)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to sign up: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// handleLogin resolves credentials to a user. It needs no session header;
// clients use the returned user_id as their X-User-ID.
func handleLogin(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profile.LoginRequest
		if !decodeValidated(w, r, validate.Login, &req) {
			return
		}

		p, err := deps.Profiles.Authenticate(r.Context(), req.Email, req.Password)
		if errors.Is(err, profile.ErrInvalidCredentials) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to log in: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		p, err := deps.Profiles.Get(r.Context(), sess.UserID)
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePutProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		var p profile.UserProfile
		if !decodeValidated(w, r, validate.Profile, &p) {
			return
		}
		saved, err := deps.Profiles.Save(r.Context(), sess.UserID, p)
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleVerifyProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		if !sess.Verified {
			httpError(w, http.StatusForbidden, "permission_error", "email not verified by the identity service")
			return
		}
		p, err := deps.Profiles.MarkVerified(r.Context(), sess.UserID)
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handleUploadResume takes a raw PDF body and stores its text on the
// caller's profile.
func handleUploadResume(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, profile.MaxResumeSize)
		defer r.Body.Close()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "reading resume: %v", err)
			return
		}
		text, err := profile.ExtractResumeText(data)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if _, err := deps.Profiles.SetResumeText(r.Context(), sess.UserID, text); err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "chars": len([]rune(text))})
	}
}
