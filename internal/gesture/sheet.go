// Package gesture maps the vertical drag of the episode sheet onto the visual
// transform of the video layer above it.
package gesture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/reelfeed/reelfeed/internal/notify"
)

const (
	DefaultPeekHeight      = 40
	DefaultOpenFraction    = 0.4
	DefaultMaxCornerRadius = 16
	DefaultElastic         = 0.1
)

var ErrInvalidViewport = errors.New("viewport too small for sheet")

type Options struct {
	// PeekHeight is how much of the sheet stays visible when closed.
	PeekHeight float64
	// OpenFraction places the open bound as a fraction of the viewport height.
	// 0.4 leaves the sheet covering 60% of the screen.
	OpenFraction    float64
	MaxCornerRadius float64
	// Elastic is the damping applied to drag beyond either bound.
	Elastic float64
	Bus     *notify.Bus
}

func (o Options) withDefaults() Options {
	if o.PeekHeight <= 0 {
		o.PeekHeight = DefaultPeekHeight
	}
	if o.OpenFraction <= 0 || o.OpenFraction >= 1 {
		o.OpenFraction = DefaultOpenFraction
	}
	if o.MaxCornerRadius <= 0 {
		o.MaxCornerRadius = DefaultMaxCornerRadius
	}
	if o.Elastic <= 0 || o.Elastic > 1 {
		o.Elastic = DefaultElastic
	}
	return o
}

// Posture is a read-only snapshot; everything except Offset is derived from it.
type Posture struct {
	Offset       float64
	OpenBound    float64
	ClosedBound  float64
	Scale        float64
	CornerRadius float64
	BlurOpacity  float64
}

// Sheet stores a single offset. Scale, corner radius and blur are recomputed on read.
type Sheet struct {
	mu     sync.Mutex
	opts   Options
	height float64
	open   float64
	closed float64
	offset float64
	// raw is the undamped pointer position for the current drag.
	raw float64
}

func New(viewportHeight float64, opts Options) (*Sheet, error) {
	s := &Sheet{opts: opts.withDefaults()}
	if err := s.setBounds(viewportHeight); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sheet) setBounds(h float64) error {
	closed := h - s.opts.PeekHeight
	open := h * s.opts.OpenFraction
	if closed <= 0 || open >= closed {
		return fmt.Errorf("viewport height %.0f: %w", h, ErrInvalidViewport)
	}
	s.height = h
	s.open = open
	s.closed = closed
	s.offset = closed
	s.raw = closed
	return nil
}

// Resize recomputes the bounds for a new viewport height and puts the sheet back
// at the closed bound, whatever it was doing before.
func (s *Sheet) Resize(viewportHeight float64) error {
	s.mu.Lock()
	if err := s.setBounds(viewportHeight); err != nil {
		s.mu.Unlock()
		return err
	}
	p := s.posture()
	s.mu.Unlock()

	s.publish(p)
	return nil
}

// DragTo moves the sheet towards the raw pointer position. Inside the bounds the
// sheet follows 1:1; past them it is damped and then clamped to the elastic margin.
func (s *Sheet) DragTo(raw float64) Posture {
	s.mu.Lock()
	s.raw = raw
	s.offset = s.elastic(raw)
	p := s.posture()
	s.mu.Unlock()

	s.publish(p)
	return p
}

// DragBy applies a relative pointer movement on top of the current drag.
func (s *Sheet) DragBy(delta float64) Posture {
	s.mu.Lock()
	raw := s.raw + delta
	s.mu.Unlock()
	return s.DragTo(raw)
}

// Release ends a drag. There are no snap points: the sheet stays where it was let go,
// except that an elastic overshoot settles on the bound it passed.
func (s *Sheet) Release() Posture {
	s.mu.Lock()
	settled := clamp(s.offset, s.open, s.closed)
	changed := settled != s.offset
	s.offset = settled
	s.raw = settled
	p := s.posture()
	s.mu.Unlock()

	if changed {
		s.publish(p)
	}
	return p
}

func (s *Sheet) Posture() Posture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posture()
}

func (s *Sheet) Offset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

func (s *Sheet) Bounds() (open, closed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open, s.closed
}

// ElasticMargin is the furthest the offset may travel past either bound.
func (s *Sheet) ElasticMargin() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.margin()
}

func (s *Sheet) ScaleAt(y float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scaleAt(y, s.closed)
}

func (s *Sheet) CornerRadiusAt(y float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress(y) * s.opts.MaxCornerRadius
}

func (s *Sheet) BlurOpacityAt(y float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress(y)
}

func (s *Sheet) margin() float64 {
	return s.opts.Elastic * (s.closed - s.open)
}

func (s *Sheet) elastic(raw float64) float64 {
	y := raw
	switch {
	case raw < s.open:
		y = s.open + (raw-s.open)*s.opts.Elastic
	case raw > s.closed:
		y = s.closed + (raw-s.closed)*s.opts.Elastic
	}
	m := s.margin()
	return clamp(y, s.open-m, s.closed+m)
}

// progress is 0 at the closed bound and 1 at the open bound, clamped outside.
func (s *Sheet) progress(y float64) float64 {
	return clamp((s.closed-y)/(s.closed-s.open), 0, 1)
}

func (s *Sheet) posture() Posture {
	return Posture{
		Offset:       s.offset,
		OpenBound:    s.open,
		ClosedBound:  s.closed,
		Scale:        scaleAt(s.offset, s.closed),
		CornerRadius: s.progress(s.offset) * s.opts.MaxCornerRadius,
		BlurOpacity:  s.progress(s.offset),
	}
}

func (s *Sheet) publish(p Posture) {
	s.opts.Bus.Publish(notify.GestureOffsetChanged{
		Offset:       p.Offset,
		Scale:        p.Scale,
		CornerRadius: p.CornerRadius,
		BlurOpacity:  p.BlurOpacity,
	})
}

// scaleAt is linear so the video tracks the finger 1:1.
func scaleAt(y, closed float64) float64 {
	if y >= closed {
		return 1
	}
	return clamp(y/closed, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
