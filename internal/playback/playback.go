// Package playback owns play/pause/mute for the one media handle bound to the active video.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/reelfeed/reelfeed/internal/notify"
)

// ErrPlaybackRejected marks a play attempt the platform refused, typically autoplay
// blocking. It is never fatal: the host shows a manual play affordance instead.
var ErrPlaybackRejected = errors.New("playback rejected")

// Media is the mounted player for one video.
type Media interface {
	Play(ctx context.Context) error
	Pause()
	SetMuted(muted bool)
	CurrentTime() float64
	Duration() float64
}

// Controller binds to at most one Media at a time. IsPlaying reflects what the media
// actually does, not what was asked of it.
type Controller struct {
	mu       sync.Mutex
	media    Media
	playing  bool
	muted    bool
	rejected error
	bus      *notify.Bus
}

// New returns a controller that starts muted, the autoplay-safe default.
func New(bus *notify.Bus) *Controller {
	return &Controller{muted: true, bus: bus}
}

// Activate binds m and tries to start it. A refused play is swallowed and recorded.
func (c *Controller) Activate(ctx context.Context, m Media) {
	c.mu.Lock()
	if c.media != nil && c.media != m {
		c.media.Pause()
	}
	c.media = m
	c.rejected = nil
	m.SetMuted(c.muted)
	c.startLocked(ctx)
	ev := c.eventLocked()
	c.mu.Unlock()

	c.bus.Publish(ev)
}

// Deactivate pauses the bound media unconditionally and releases it.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	if c.media != nil {
		c.media.Pause()
	}
	c.media = nil
	c.playing = false
	c.rejected = nil
	ev := c.eventLocked()
	c.mu.Unlock()

	c.bus.Publish(ev)
}

// TogglePlay flips between playing and paused. It never fails; a refused play leaves
// the controller paused with Rejected set.
func (c *Controller) TogglePlay(ctx context.Context) {
	c.mu.Lock()
	if c.media == nil {
		c.mu.Unlock()
		return
	}
	if c.playing {
		c.media.Pause()
		c.playing = false
	} else {
		c.rejected = nil
		c.startLocked(ctx)
	}
	ev := c.eventLocked()
	c.mu.Unlock()

	c.bus.Publish(ev)
}

func (c *Controller) ToggleMute() {
	c.mu.Lock()
	muted := !c.muted
	c.mu.Unlock()
	c.SetMuted(muted)
}

// SetMuted changes mute without touching playback. The setting carries over to
// every media bound later.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	if c.media != nil {
		c.media.SetMuted(muted)
	}
	ev := c.eventLocked()
	c.mu.Unlock()

	c.bus.Publish(ev)
}

func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Controller) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Rejected returns the last refused play attempt, wrapping ErrPlaybackRejected, or nil.
func (c *Controller) Rejected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}

// Bound reports whether m is the media currently driven by the controller.
func (c *Controller) Bound(m Media) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media != nil && c.media == m
}

// Progress is currentTime/duration as 0-100. Unknown duration counts as 0.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	m := c.media
	c.mu.Unlock()
	if m == nil {
		return 0
	}
	return progress(m.CurrentTime(), m.Duration())
}

func progress(current, duration float64) float64 {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) || math.IsNaN(current) {
		return 0
	}
	p := current / duration * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (c *Controller) startLocked(ctx context.Context) {
	if err := c.media.Play(ctx); err != nil {
		c.playing = false
		c.rejected = fmt.Errorf("%w: %w", ErrPlaybackRejected, err)
		slog.Debug("playback: play rejected", "error", err)
		return
	}
	c.playing = true
}

func (c *Controller) eventLocked() notify.PlaybackStateChanged {
	return notify.PlaybackStateChanged{
		Playing:  c.playing,
		Muted:    c.muted,
		Rejected: c.rejected != nil,
	}
}
