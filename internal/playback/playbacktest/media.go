// Package playbacktest provides an in-memory playback.Media for tests.
package playbacktest

import (
	"context"
	"sync"
)

type Media struct {
	mu      sync.Mutex
	Name    string
	PlayErr error
	Current float64
	Total   float64
	Plays   int
	Pauses  int
	Muted   bool
	playing bool
}

func New(name string) *Media {
	return &Media{Name: name}
}

func (m *Media) Play(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Plays++
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.playing = true
	return nil
}

func (m *Media) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pauses++
	m.playing = false
}

func (m *Media) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Muted = muted
}

func (m *Media) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Current
}

func (m *Media) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Total
}

func (m *Media) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Counts returns plays and pauses seen so far.
func (m *Media) Counts() (plays, pauses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Plays, m.Pauses
}
