package video

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/ratelimit"
)

type viewRecord struct {
	videoID string
	userID  *string
	hash    string
	browser string
	device  string
	country string
	city    string
}

// RecordView bumps the view counter right away and writes the detailed view row
// in the background so the player is never held up by analytics.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`UPDATE videos SET view_count = view_count + 1 WHERE id = $1`, videoID,
	)
	if err != nil {
		slog.Error("video: failed to increment view count", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not record view")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	ip := ratelimit.ClientIP(r)
	ua := r.UserAgent()
	rec := viewRecord{
		videoID: videoID,
		hash:    viewerHash(ip, ua),
		browser: parseBrowser(ua),
		device:  parseDevice(ua),
	}
	if userID := auth.UserIDFromContext(r.Context()); userID != "" {
		rec.userID = &userID
	}
	loc := h.geoResolver.Lookup(ip)
	rec.country, rec.city = loc.Country, loc.City

	h.goBackground(func(ctx context.Context) {
		h.insertView(ctx, rec)
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) insertView(ctx context.Context, rec viewRecord) {
	if _, err := h.db.Exec(ctx,
		`INSERT INTO video_views (video_id, user_id, viewer_hash, browser, device, country, city)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.videoID, rec.userID, rec.hash, rec.browser, rec.device, rec.country, rec.city,
	); err != nil {
		slog.Error("video: failed to record view", "video_id", rec.videoID, "error", err)
	}
}

func parseBrowser(uaString string) string {
	if uaString == "" {
		return "Other"
	}
	name, _ := useragent.New(uaString).Browser()
	if name == "" {
		return "Other"
	}
	return name
}

func parseDevice(uaString string) string {
	if uaString == "" {
		return "unknown"
	}
	ua := useragent.New(uaString)
	lower := strings.ToLower(uaString)
	switch {
	case ua.Bot():
		return "bot"
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") ||
		(strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")):
		return "tablet"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}
