// Package feed drives the vertical feed: which video is active, and what has to
// happen to playback and engagement when that changes.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/doubletap"
	"github.com/reelfeed/reelfeed/internal/engagement"
	"github.com/reelfeed/reelfeed/internal/notify"
	"github.com/reelfeed/reelfeed/internal/playback"
)

var ErrIndexOutOfRange = errors.New("feed index out of range")

const defaultRequestTimeout = 15 * time.Second

// ViewCounter records a view. Calls are fire-and-forget.
type ViewCounter interface {
	IncrementView(ctx context.Context, videoID string) error
}

// MediaProvider hands out the mounted player for a video.
type MediaProvider interface {
	Media(v catalog.Video) playback.Media
}

type MediaFunc func(v catalog.Video) playback.Media

func (f MediaFunc) Media(v catalog.Video) playback.Media { return f(v) }

type Config struct {
	Playback   *playback.Controller
	Engagement *engagement.Store
	Views      ViewCounter
	Media      MediaProvider
	Taps       *doubletap.Detector
	Bus        *notify.Bus
	// RequestTimeout bounds background hydration and view requests.
	RequestTimeout time.Duration
}

// Controller serializes transitions on its own lock so that playback and
// engagement callbacks, which publish events, never run under the state lock.
// Listeners must not navigate the feed synchronously from inside a callback.
type Controller struct {
	transition sync.Mutex

	mu       sync.Mutex
	cfg      Config
	playlist catalog.Playlist
	index    int
	active   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Controller {
	if cfg.Taps == nil {
		cfg.Taps = doubletap.New()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{cfg: cfg, ctx: ctx, cancel: cancel}
}

// ParseInitialIndex reads the "v" query parameter. Anything that is not an index
// into a feed of n videos becomes 0.
func ParseInitialIndex(raw string, n int) int {
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 || i >= n {
		return 0
	}
	return i
}

// SetVideos replaces the working list and makes its first video active.
// An empty playlist leaves an empty feed; the host renders its empty state.
func (c *Controller) SetVideos(p catalog.Playlist) {
	c.Load(p, 0)
}

// Load replaces the working list and activates initialIndex, clamped to 0 when
// out of range.
func (c *Controller) Load(p catalog.Playlist, initialIndex int) {
	c.transition.Lock()
	defer c.transition.Unlock()

	prev := c.deactivate()

	c.mu.Lock()
	c.playlist = p
	c.index = 0
	if initialIndex > 0 && initialIndex < len(p.Videos) {
		c.index = initialIndex
	}
	empty := len(p.Videos) == 0
	c.mu.Unlock()

	if empty {
		return
	}
	c.activate(prev)
}

// SetActiveIndex moves the feed to i. Moving to the current index does nothing.
func (c *Controller) SetActiveIndex(i int) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	n := len(c.playlist.Videos)
	if i < 0 || i >= n {
		c.mu.Unlock()
		return fmt.Errorf("set active index %d of %d: %w", i, n, ErrIndexOutOfRange)
	}
	if c.active && i == c.index {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	prev := c.deactivate()

	c.mu.Lock()
	c.index = i
	c.mu.Unlock()

	c.activate(prev)
	return nil
}

// Next advances by one. The feed does not wrap.
func (c *Controller) Next() bool {
	c.mu.Lock()
	i := c.index + 1
	ok := c.active && i < len(c.playlist.Videos)
	c.mu.Unlock()
	if !ok {
		return false
	}
	return c.SetActiveIndex(i) == nil
}

// Prev goes back by one. The feed does not wrap.
func (c *Controller) Prev() bool {
	c.mu.Lock()
	i := c.index - 1
	ok := c.active && i >= 0
	c.mu.Unlock()
	if !ok {
		return false
	}
	return c.SetActiveIndex(i) == nil
}

// deactivate stops the active video, if any, and returns the index it had.
func (c *Controller) deactivate() int {
	c.mu.Lock()
	prev, wasActive := c.index, c.active
	c.active = false
	c.mu.Unlock()

	if wasActive {
		c.cfg.Playback.Deactivate()
	}
	return prev
}

// activate starts the video at the current index: playback first, then
// engagement hydration and the view count in the background.
func (c *Controller) activate(prev int) {
	c.mu.Lock()
	idx := c.index
	v := c.playlist.Videos[idx]
	c.active = true
	c.mu.Unlock()

	c.cfg.Playback.Activate(c.ctx, c.cfg.Media.Media(v))

	if store := c.cfg.Engagement; store != nil {
		store.Ensure(v)
		store.SetActive(v.ID)
		c.goBackground(func(ctx context.Context) {
			if err := store.Hydrate(ctx, v.ID); err != nil {
				slog.Debug("feed: engagement hydration incomplete", "video_id", v.ID, "error", err)
			}
		})
	}
	if views := c.cfg.Views; views != nil {
		c.goBackground(func(ctx context.Context) {
			if err := views.IncrementView(ctx, v.ID); err != nil {
				slog.Debug("feed: view increment failed", "video_id", v.ID, "error", err)
			}
		})
	}

	c.cfg.Bus.Publish(notify.ActiveVideoChanged{Previous: prev, Index: idx, VideoID: v.ID})
}

func (c *Controller) goBackground(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// DoubleTap feeds a tap into the detector. When it completes a double tap the active
// video is liked, exactly as the like button would, and fired is true so the host
// can stop the tap from also toggling playback.
func (c *Controller) DoubleTap(ctx context.Context, now time.Time) (fired bool, err error) {
	if !c.cfg.Taps.Tap(now) {
		return false, nil
	}
	v, ok := c.Active()
	if !ok {
		return true, nil
	}
	c.cfg.Bus.Publish(notify.DoubleTapFired{VideoID: v.ID, At: now})
	if c.cfg.Engagement == nil {
		return true, nil
	}
	return true, c.cfg.Engagement.Like(ctx, v.ID)
}

// Celebrating reports whether double-tap feedback should still be on screen.
func (c *Controller) Celebrating(now time.Time) bool {
	return c.cfg.Taps.Celebrating(now)
}

// TogglePlay is the single-tap action on the active video.
func (c *Controller) TogglePlay(ctx context.Context) {
	c.cfg.Playback.TogglePlay(ctx)
}

func (c *Controller) ToggleReaction(ctx context.Context, kind catalog.Reaction) error {
	v, ok := c.Active()
	if !ok || c.cfg.Engagement == nil {
		return nil
	}
	return c.cfg.Engagement.ToggleReaction(ctx, v.ID, kind)
}

func (c *Controller) ToggleBookmark(ctx context.Context) error {
	v, ok := c.Active()
	if !ok || c.cfg.Engagement == nil {
		return nil
	}
	return c.cfg.Engagement.ToggleBookmark(ctx, v.ID)
}

// Active returns the active video, if the feed has one.
func (c *Controller) Active() (catalog.Video, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return catalog.Video{}, false
	}
	return c.playlist.Videos[c.index], true
}

func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.playlist.Videos)
}

func (c *Controller) Empty() bool {
	return c.Len() == 0
}

func (c *Controller) Playlist() catalog.Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist
}

// Wait blocks until background hydration and view requests have returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close unmounts the feed: playback stops, background requests are cancelled and
// engagement state is discarded.
func (c *Controller) Close() {
	c.transition.Lock()
	c.deactivate()
	c.transition.Unlock()

	c.cancel()
	c.wg.Wait()
	if c.cfg.Engagement != nil {
		c.cfg.Engagement.Reset()
	}
	c.cfg.Taps.Reset()
}
