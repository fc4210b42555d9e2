package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/jobboard/internal/session"
	"github.com/kalambet/jobboard/internal/watchlist"
)

// initialLoadTimeout bounds how long a request waits for the first load of
// a freshly created synchronizer.
const initialLoadTimeout = 10 * time.Second

func handleWatchList(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		syncer, release, err := deps.Hub.Acquire(sess)
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "watch list unavailable: %v", err)
			return
		}
		defer release()

		ctx, cancel := context.WithTimeout(r.Context(), initialLoadTimeout)
		defer cancel()
		if err := syncer.Wait(ctx); err != nil {
			httpError(w, http.StatusGatewayTimeout, "api_error", "watch list not loaded: %v", err)
			return
		}

		items := syncer.List()
		if items == nil {
			items = []watchlist.WatchedJob{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleToggleWatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		sess := session.FromContext(r.Context())

		syncer, release, err := deps.Hub.Acquire(sess)
		if errors.Is(err, watchlist.ErrNoSession) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "watch list unavailable: %v", err)
			return
		}
		defer release()

		switch outcome := syncer.Toggle(r.Context(), sess, jobID); outcome {
		case watchlist.Failed:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to toggle watch on %s", jobID)
		case watchlist.Ignored:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		default:
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "toggled",
				"outcome": outcome.String(),
			})
		}
	}
}

// handleWatchStream sends the watch list as Server-Sent Events: one
// "watchlist" event with the current list and another after every change.
func handleWatchStream(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming unsupported")
			return
		}

		syncer, release, err := deps.Hub.Acquire(sess)
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "watch list unavailable: %v", err)
			return
		}
		defer release()

		updates, stop := syncer.Updates()
		defer stop()

		ctx := r.Context()
		if err := syncer.Wait(ctx); err != nil {
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, syncer.List()); err != nil {
			return
		}
		flusher.Flush()

		for {
			select {
			case <-ctx.Done():
				return
			case items := <-updates:
				if err := writeEvent(w, items); err != nil {
					deps.Logger.Debug("watch stream closed", "user_id", sess.UserID, "error", err)
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, items []watchlist.WatchedJob) error {
	if items == nil {
		items = []watchlist.WatchedJob{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: watchlist\ndata: %s\n\n", data)
	return err
}
