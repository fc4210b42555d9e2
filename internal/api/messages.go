package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/jobboard/internal/outbox"
	"github.com/kalambet/jobboard/internal/profile"
	"github.com/kalambet/jobboard/internal/storage"
)

// MessageTypeProfileCard marks a job application message.
const MessageTypeProfileCard = "profile_card"

// handleApply sends the caller's profile card to the posting's author.
func handleApply(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		p, err := deps.Repo.GetPosting(ctx, chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "posting not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get posting: %v", err)
			return
		}
		if p.AuthorID == sess.UserID {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "cannot apply to your own posting")
			return
		}

		applicant, err := deps.Profiles.Get(ctx, sess.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusForbidden, "permission_error", "create a profile before applying")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}

		card, err := json.Marshal(profile.CardFor(applicant))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build profile card: %v", err)
			return
		}
		msg := storage.Message{
			ID:          uuid.New().String(),
			SenderID:    sess.UserID,
			ReceiverID:  p.AuthorID,
			SenderName:  applicant.FullName(),
			Type:        MessageTypeProfileCard,
			ProfileCard: string(card),
			JobID:       p.ID,
			JobTitle:    p.Title,
			CreatedAt:   time.Now().UTC(),
		}
		if err := deps.Repo.SaveMessage(ctx, msg); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to send message: %v", err)
			return
		}
		if err := outbox.EnqueueMessageSent(ctx, deps.Repo, msg); err != nil {
			deps.Logger.Error("queueing message_sent", "message_id", msg.ID, "error", err)
		}

		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleListMessages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}
		limit := parseIntParam(r, "limit", 50, 200)

		msgs, err := deps.Repo.ListMessages(r.Context(), sess.UserID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list messages: %v", err)
			return
		}
		if msgs == nil {
			msgs = []storage.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}
