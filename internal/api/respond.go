package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kalambet/jobboard/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// requireSession writes a 401 and returns false when the request has no
// signed-in user.
func requireSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess := session.FromContext(r.Context())
	if !sess.Valid() {
		httpError(w, http.StatusUnauthorized, "authentication_error", "missing %s header", session.HeaderUserID)
		return session.Session{}, false
	}
	return sess, true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
