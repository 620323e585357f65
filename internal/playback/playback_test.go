package playback

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/reelfeed/reelfeed/internal/notify"
	"github.com/reelfeed/reelfeed/internal/playback/playbacktest"
	"github.com/stretchr/testify/require"
)

var errAutoplayBlocked = errors.New("NotAllowedError: play() failed")

func TestActivateStartsPlaybackMuted(t *testing.T) {
	c := New(nil)
	m := playbacktest.New("v0")

	c.Activate(context.Background(), m)

	require.True(t, c.IsPlaying())
	require.True(t, c.IsMuted())
	require.True(t, m.Muted)
	require.True(t, m.Playing())
	require.NoError(t, c.Rejected())
}

func TestActivateSwallowsRejectedPlay(t *testing.T) {
	c := New(nil)
	m := playbacktest.New("v0")
	m.PlayErr = errAutoplayBlocked

	c.Activate(context.Background(), m)

	require.False(t, c.IsPlaying())
	require.ErrorIs(t, c.Rejected(), ErrPlaybackRejected)
	require.ErrorIs(t, c.Rejected(), errAutoplayBlocked)
}

func TestDeactivatePausesUnconditionally(t *testing.T) {
	c := New(nil)
	m := playbacktest.New("v0")
	m.PlayErr = errAutoplayBlocked
	c.Activate(context.Background(), m)

	c.Deactivate()

	_, pauses := m.Counts()
	require.Equal(t, 1, pauses)
	require.False(t, c.IsPlaying())
	require.False(t, c.Bound(m))
}

func TestActivatePausesPreviousHandle(t *testing.T) {
	c := New(nil)
	first := playbacktest.New("v0")
	second := playbacktest.New("v1")

	c.Activate(context.Background(), first)
	c.Activate(context.Background(), second)

	require.False(t, first.Playing())
	require.True(t, second.Playing())
	require.True(t, c.Bound(second))
}

func TestTogglePlay(t *testing.T) {
	c := New(nil)
	m := playbacktest.New("v0")
	c.Activate(context.Background(), m)

	c.TogglePlay(context.Background())
	require.False(t, c.IsPlaying())
	require.False(t, m.Playing())

	c.TogglePlay(context.Background())
	require.True(t, c.IsPlaying())
	require.True(t, m.Playing())
}

func TestTogglePlayAfterRejectionRetriesManually(t *testing.T) {
	c := New(nil)
	m := playbacktest.New("v0")
	m.PlayErr = errAutoplayBlocked
	c.Activate(context.Background(), m)

	m.PlayErr = nil
	c.TogglePlay(context.Background())

	require.True(t, c.IsPlaying())
	require.NoError(t, c.Rejected())
}

func TestTogglePlayWithoutMediaIsSafe(t *testing.T) {
	c := New(nil)
	require.NotPanics(t, func() { c.TogglePlay(context.Background()) })
	require.False(t, c.IsPlaying())
}

func TestMuteIsIndependentOfPlayback(t *testing.T) {
	c := New(nil)
	m := playbacktest.New("v0")
	c.Activate(context.Background(), m)

	c.ToggleMute()
	require.False(t, c.IsMuted())
	require.False(t, m.Muted)
	require.True(t, c.IsPlaying())

	next := playbacktest.New("v1")
	c.Activate(context.Background(), next)
	require.False(t, next.Muted)
}

func TestProgress(t *testing.T) {
	c := New(nil)
	require.Equal(t, 0.0, c.Progress())

	m := playbacktest.New("v0")
	c.Activate(context.Background(), m)
	m.Current = 12
	require.Equal(t, 0.0, c.Progress())

	m.Total = 48
	require.InDelta(t, 25.0, c.Progress(), 1e-9)

	require.Equal(t, 0.0, progress(3, math.NaN()))
	require.Equal(t, 100.0, progress(60, 48))
}

func TestPublishesPlaybackState(t *testing.T) {
	bus := notify.NewBus()
	var events []notify.PlaybackStateChanged
	bus.Subscribe(func(e notify.Event) {
		if p, ok := e.(notify.PlaybackStateChanged); ok {
			events = append(events, p)
		}
	})
	c := New(bus)
	m := playbacktest.New("v0")
	m.PlayErr = errAutoplayBlocked

	c.Activate(context.Background(), m)
	c.Deactivate()

	require.Len(t, events, 2)
	require.Equal(t, notify.PlaybackStateChanged{Playing: false, Muted: true, Rejected: true}, events[0])
	require.Equal(t, notify.PlaybackStateChanged{Playing: false, Muted: true, Rejected: false}, events[1])
}
