// Package video serves the playlist and engagement endpoints the player talks to.
package video

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/geoip"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
	"github.com/reelfeed/reelfeed/internal/webhook"
)

const defaultMediaURLTTL = time.Hour

type ObjectStorage interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// EventSink receives engagement events after they are committed.
type EventSink interface {
	Dispatch(ctx context.Context, event webhook.Event) error
}

type Handler struct {
	db          database.DBTX
	storage     ObjectStorage
	events      EventSink
	geoResolver *geoip.Resolver
	mediaURLTTL time.Duration
	background  sync.WaitGroup
}

func NewHandler(db database.DBTX, s ObjectStorage) *Handler {
	return &Handler{
		db:          db,
		storage:     s,
		mediaURLTTL: defaultMediaURLTTL,
	}
}

func (h *Handler) SetGeoResolver(r *geoip.Resolver) {
	h.geoResolver = r
}

func (h *Handler) SetEventSink(s EventSink) {
	h.events = s
}

func (h *Handler) SetMediaURLTTL(ttl time.Duration) {
	if ttl > 0 {
		h.mediaURLTTL = ttl
	}
}

// Wait blocks until background view writes and event deliveries have finished.
func (h *Handler) Wait() {
	h.background.Wait()
}

func (h *Handler) goBackground(fn func(ctx context.Context)) {
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		fn(ctx)
	}()
}

func (h *Handler) emit(name string, data map[string]any) {
	if h.events == nil {
		return
	}
	event := webhook.NewEvent(name, data)
	h.goBackground(func(ctx context.Context) {
		if err := h.events.Dispatch(ctx, event); err != nil {
			slog.Warn("video: event delivery failed", "event", name, "error", err)
		}
	})
}

// videoIDParam reads and validates the {id} URL parameter, writing a 400 on failure.
func videoIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if msg := validate.VideoID(id); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return "", false
	}
	return id, true
}

// resolveMediaURL presigns storage keys; absolute URLs are served as stored.
func (h *Handler) resolveMediaURL(ctx context.Context, ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		return ref, nil
	}
	return h.storage.GenerateDownloadURL(ctx, ref, h.mediaURLTTL)
}
