package video

import (
	"log/slog"
	"net/http"

	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/webhook"
)

type bookmarkResponse struct {
	Bookmarked bool `json:"bookmarked"`
}

func (h *Handler) CheckBookmark(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	var bookmarked bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND video_id = $2)`,
		userID, videoID,
	).Scan(&bookmarked); err != nil {
		slog.Error("video: failed to check bookmark", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not check bookmark")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bookmarkResponse{Bookmarked: bookmarked})
}

// ToggleBookmark removes an existing bookmark or creates a missing one.
func (h *Handler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM bookmarks WHERE user_id = $1 AND video_id = $2`,
		userID, videoID,
	)
	if err != nil {
		slog.Error("video: failed to remove bookmark", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not update bookmark")
		return
	}
	if tag.RowsAffected() > 0 {
		h.emitBookmark(videoID, userID, false)
		httputil.WriteJSON(w, http.StatusOK, bookmarkResponse{Bookmarked: false})
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`INSERT INTO bookmarks (user_id, video_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, videoID,
	); err != nil {
		if writeReferenceError(w, err) {
			return
		}
		slog.Error("video: failed to add bookmark", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not update bookmark")
		return
	}
	h.emitBookmark(videoID, userID, true)
	httputil.WriteJSON(w, http.StatusOK, bookmarkResponse{Bookmarked: true})
}

func (h *Handler) emitBookmark(videoID, userID string, bookmarked bool) {
	h.emit(webhook.EventBookmarkChanged, map[string]any{
		"videoId":    videoID,
		"userId":     userID,
		"bookmarked": bookmarked,
	})
}
