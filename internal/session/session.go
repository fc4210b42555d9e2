// Package session carries the authenticated user through call chains.
package session

import (
	"context"
	"net/http"
	"strconv"
)

// Header names set by the identity gateway in front of the API.
const (
	HeaderUserID   = "X-User-ID"
	HeaderEmail    = "X-User-Email"
	HeaderVerified = "X-User-Verified"
)

// Session identifies the current user. The zero value is "signed out".
type Session struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Verified bool   `json:"verified"`
}

// Valid reports whether the session belongs to a user.
func (s Session) Valid() bool {
	return s.UserID != ""
}

// New returns a session for userID.
func New(userID string) Session {
	return Session{UserID: userID}
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, or the zero Session.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(ctxKey{}).(Session)
	return s
}

// FromHeaders builds a session from gateway headers.
func FromHeaders(h http.Header) Session {
	s := Session{
		UserID: h.Get(HeaderUserID),
		Email:  h.Get(HeaderEmail),
	}
	if v, err := strconv.ParseBool(h.Get(HeaderVerified)); err == nil {
		s.Verified = v
	}
	return s
}

// Middleware attaches the header session to every request. Requests
// without X-User-ID get the zero session; handlers decide what that means.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromHeaders(r.Header)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}
