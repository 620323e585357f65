// Package doubletap turns pointer-down timestamps into double-tap events.
package doubletap

import (
	"sync"
	"time"
)

const (
	DefaultWindow      = 300 * time.Millisecond
	DefaultCelebration = 1000 * time.Millisecond
)

type state int

const (
	idle state = iota
	awaitingSecondTap
)

// Detector is a two-state machine: idle -> awaiting-second-tap -> idle.
// It keeps the last tap and the last fire time, nothing more.
type Detector struct {
	mu          sync.Mutex
	window      time.Duration
	celebration time.Duration
	state       state
	lastTap     time.Time
	lastFired   time.Time
}

type Option func(*Detector)

func WithWindow(d time.Duration) Option {
	return func(det *Detector) { det.window = d }
}

func WithCelebration(d time.Duration) Option {
	return func(det *Detector) { det.celebration = d }
}

func New(opts ...Option) *Detector {
	d := &Detector{window: DefaultWindow, celebration: DefaultCelebration}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tap records a pointer-down at now and reports whether it completed a double tap.
// Only a firing tap should stop propagation; single taps stay with the caller.
func (d *Detector) Tap(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == awaitingSecondTap && now.Sub(d.lastTap) < d.window {
		d.state = idle
		d.lastTap = time.Time{}
		d.lastFired = now
		return true
	}

	d.state = awaitingSecondTap
	d.lastTap = now
	return false
}

// Celebrating reports whether the transient feedback for the last double tap is still showing.
func (d *Detector) Celebrating(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastFired.IsZero() {
		return false
	}
	return now.Sub(d.lastFired) < d.celebration
}

// Awaiting reports whether a first tap is pending and still inside the window at now.
func (d *Detector) Awaiting(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == awaitingSecondTap && now.Sub(d.lastTap) < d.window
}

func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = idle
	d.lastTap = time.Time{}
	d.lastFired = time.Time{}
}
