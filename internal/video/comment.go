package video

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
	"github.com/reelfeed/reelfeed/internal/webhook"
)

const maxListedComments = 200

type postCommentRequest struct {
	Content string `json:"content"`
}

type commentCountResponse struct {
	Count int `json:"count"`
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT c.id, c.user_id, COALESCE(u.name, ''), c.content, c.created_at
		 FROM comments c LEFT JOIN users u ON u.id = c.user_id
		 WHERE c.video_id = $1
		 ORDER BY c.created_at DESC
		 LIMIT $2`,
		videoID, maxListedComments,
	)
	if err != nil {
		slog.Error("video: failed to query comments", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not fetch comments")
		return
	}
	defer rows.Close()

	comments := make([]catalog.Comment, 0)
	for rows.Next() {
		c := catalog.Comment{VideoID: videoID}
		var createdAt time.Time
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Content, &createdAt); err != nil {
			slog.Error("video: failed to scan comment", "video_id", videoID, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "could not fetch comments")
			return
		}
		c.CreatedAt = createdAt.UTC()
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("video: failed to read comments", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not fetch comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comments)
}

func (h *Handler) CommentCount(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	var count int
	if err := h.db.QueryRow(r.Context(),
		`SELECT COUNT(*) FROM comments WHERE video_id = $1`, videoID,
	).Scan(&count); err != nil {
		slog.Error("video: failed to count comments", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not count comments")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, commentCountResponse{Count: count})
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	var req postCommentRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if msg := validate.CommentBody(content); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	comment := catalog.Comment{VideoID: videoID, UserID: userID, Content: content}
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`WITH inserted AS (
		     INSERT INTO comments (video_id, user_id, content) VALUES ($1, $2, $3)
		     RETURNING id, user_id, created_at
		 )
		 SELECT i.id, COALESCE(u.name, ''), i.created_at
		 FROM inserted i LEFT JOIN users u ON u.id = i.user_id`,
		videoID, userID, content,
	).Scan(&comment.ID, &comment.Name, &createdAt)
	if err != nil {
		if writeReferenceError(w, err) {
			return
		}
		slog.Error("video: failed to add comment", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not add comment")
		return
	}
	comment.CreatedAt = createdAt.UTC()

	h.emit(webhook.EventCommentCreated, map[string]any{
		"videoId":   videoID,
		"userId":    userID,
		"commentId": comment.ID,
	})

	httputil.WriteJSON(w, http.StatusCreated, comment)
}
