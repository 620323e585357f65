package video

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/webhook"
)

type reactionResponse struct {
	Reaction *catalog.Reaction `json:"reaction"`
}

func newReactionResponse(r catalog.Reaction) reactionResponse {
	if r == catalog.ReactionNone {
		return reactionResponse{}
	}
	return reactionResponse{Reaction: &r}
}

// nextReaction applies toggle semantics: repeating the current kind clears it,
// any other request switches to the requested kind. The deltas keep the video's
// like and dislike counters in step with the change.
func nextReaction(current, requested catalog.Reaction) (next catalog.Reaction, likeDelta, dislikeDelta int) {
	if current == requested {
		next = catalog.ReactionNone
	} else {
		next = requested
	}
	return next, counterDelta(current, next, catalog.ReactionLike), counterDelta(current, next, catalog.ReactionDislike)
}

func counterDelta(from, to, kind catalog.Reaction) int {
	switch {
	case from != kind && to == kind:
		return 1
	case from == kind && to != kind:
		return -1
	}
	return 0
}

func (h *Handler) GetReaction(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	current, err := currentReaction(r.Context(), h.db, userID, videoID, false)
	if err != nil {
		slog.Error("video: failed to load reaction", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not load reaction")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newReactionResponse(current))
}

func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, catalog.ReactionLike)
}

func (h *Handler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, catalog.ReactionDislike)
}

func (h *Handler) react(w http.ResponseWriter, r *http.Request, requested catalog.Reaction) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}
	userID := auth.UserIDFromContext(r.Context())
	ctx := r.Context()

	tx, err := h.db.Begin(ctx)
	if err != nil {
		slog.Error("video: failed to begin reaction transaction", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not update reaction")
		return
	}
	rollback := func() { _ = tx.Rollback(ctx) }

	// A user's first reaction has no row to lock, so toggles serialize on the video.
	found, err := lockVideo(ctx, tx, videoID)
	if err != nil {
		rollback()
		slog.Error("video: failed to lock video for reaction", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not update reaction")
		return
	}
	if !found {
		rollback()
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	current, err := currentReaction(ctx, tx, userID, videoID, true)
	if err != nil {
		rollback()
		slog.Error("video: failed to lock reaction", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not update reaction")
		return
	}

	next, likeDelta, dislikeDelta := nextReaction(current, requested)

	if _, err := tx.Exec(ctx,
		`UPDATE videos
		 SET like_count = GREATEST(like_count + $2, 0), dislike_count = GREATEST(dislike_count + $3, 0)
		 WHERE id = $1`,
		videoID, likeDelta, dislikeDelta,
	); err != nil {
		rollback()
		slog.Error("video: failed to update reaction counters", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not update reaction")
		return
	}

	switch {
	case next == catalog.ReactionNone:
		_, err = tx.Exec(ctx, `DELETE FROM video_reactions WHERE user_id = $1 AND video_id = $2`, userID, videoID)
	default:
		_, err = tx.Exec(ctx,
			`INSERT INTO video_reactions (user_id, video_id, kind) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, video_id) DO UPDATE SET kind = EXCLUDED.kind, created_at = now()`,
			userID, videoID, string(next),
		)
	}
	if err != nil {
		rollback()
		if writeReferenceError(w, err) {
			return
		}
		slog.Error("video: failed to write reaction", "video_id", videoID, "reaction", next, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not update reaction")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("video: failed to commit reaction", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not update reaction")
		return
	}

	h.emit(webhook.EventReactionChanged, map[string]any{
		"videoId":  videoID,
		"userId":   userID,
		"reaction": string(next),
	})
	httputil.WriteJSON(w, http.StatusOK, newReactionResponse(next))
}

func lockVideo(ctx context.Context, q rowQuerier, videoID string) (bool, error) {
	var id string
	err := q.QueryRow(ctx, `SELECT id FROM videos WHERE id = $1 FOR UPDATE`, videoID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func currentReaction(ctx context.Context, q rowQuerier, userID, videoID string, forUpdate bool) (catalog.Reaction, error) {
	query := `SELECT kind FROM video_reactions WHERE user_id = $1 AND video_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var kind string
	err := q.QueryRow(ctx, query, userID, videoID).Scan(&kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.ReactionNone, nil
	}
	if err != nil {
		return catalog.ReactionNone, err
	}
	return catalog.Reaction(kind), nil
}
