package video

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
)

func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if msg := validate.PlaylistSlug(slug); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var playlist catalog.Playlist
	var thumbnailKey *string
	err := h.db.QueryRow(r.Context(),
		`SELECT id, slug, name, description, thumbnail_key FROM playlists WHERE slug = $1`,
		slug,
	).Scan(&playlist.ID, &playlist.Slug, &playlist.Name, &playlist.Description, &thumbnailKey)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		slog.Error("video: failed to load playlist", "slug", slug, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not load playlist")
		return
	}

	if thumbnailKey != nil {
		if u, err := h.resolveMediaURL(r.Context(), *thumbnailKey); err == nil {
			playlist.ThumbnailURL = u
		}
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT id, title, description, media_key, poster_key, duration_seconds, category,
		        like_count, dislike_count, view_count, created_at
		 FROM videos WHERE playlist_id = $1
		 ORDER BY position ASC, created_at ASC`,
		playlist.ID,
	)
	if err != nil {
		slog.Error("video: failed to query playlist videos", "playlist_id", playlist.ID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not load playlist")
		return
	}
	defer rows.Close()

	videos := make([]catalog.Video, 0)
	for rows.Next() {
		var v catalog.Video
		var mediaKey string
		var posterKey *string
		var createdAt time.Time
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &mediaKey, &posterKey, &v.Duration, &v.Category,
			&v.LikeCount, &v.DislikeCount, &v.ViewCount, &createdAt); err != nil {
			slog.Error("video: failed to scan playlist video", "playlist_id", playlist.ID, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "could not load playlist")
			return
		}

		mediaURL, err := h.resolveMediaURL(r.Context(), mediaKey)
		if err != nil {
			slog.Error("video: failed to sign media URL", "video_id", v.ID, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to generate video URL")
			return
		}
		v.MediaURL = mediaURL
		if posterKey != nil {
			if u, err := h.resolveMediaURL(r.Context(), *posterKey); err == nil {
				v.PosterURL = u
			}
		}

		v.PlaylistID = playlist.ID
		v.PlaylistSlug = playlist.Slug
		v.PlaylistName = playlist.Name
		v.CreatedAt = createdAt.UTC()
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		slog.Error("video: failed to read playlist videos", "playlist_id", playlist.ID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not load playlist")
		return
	}

	playlist.Videos = videos
	httputil.WriteJSON(w, http.StatusOK, playlist)
}
