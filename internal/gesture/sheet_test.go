package gesture

import (
	"testing"

	"github.com/reelfeed/reelfeed/internal/notify"
	"github.com/stretchr/testify/require"
)

// 1000px viewport: closed = 960, open = 400, elastic margin = 56.
func newTestSheet(t *testing.T) *Sheet {
	t.Helper()
	s, err := New(1000, Options{})
	require.NoError(t, err)
	return s
}

func TestNewStartsClosed(t *testing.T) {
	s := newTestSheet(t)

	open, closed := s.Bounds()
	require.Equal(t, 400.0, open)
	require.Equal(t, 960.0, closed)
	require.InDelta(t, 56.0, s.ElasticMargin(), 1e-9)

	p := s.Posture()
	require.Equal(t, 960.0, p.Offset)
	require.Equal(t, 1.0, p.Scale)
	require.Equal(t, 0.0, p.CornerRadius)
	require.Equal(t, 0.0, p.BlurOpacity)
}

func TestNewRejectsTinyViewport(t *testing.T) {
	_, err := New(40, Options{})
	require.ErrorIs(t, err, ErrInvalidViewport)
}

func TestScaleEndpointsAndMonotonic(t *testing.T) {
	s := newTestSheet(t)
	open, closed := s.Bounds()

	require.Equal(t, 1.0, s.ScaleAt(closed))
	require.InDelta(t, open/closed, s.ScaleAt(open), 1e-12)
	require.Equal(t, 1.0, s.ScaleAt(closed+30))

	prev := s.ScaleAt(open - s.ElasticMargin())
	for y := open - s.ElasticMargin(); y <= closed+s.ElasticMargin(); y += 7 {
		cur := s.ScaleAt(y)
		require.GreaterOrEqual(t, cur, prev, "scale decreased at y=%v", y)
		prev = cur
	}
}

func TestCornerRadiusAndBlurInterpolate(t *testing.T) {
	s := newTestSheet(t)

	require.Equal(t, 0.0, s.CornerRadiusAt(960))
	require.Equal(t, 16.0, s.CornerRadiusAt(400))
	require.InDelta(t, 8.0, s.CornerRadiusAt(680), 1e-9)
	require.Equal(t, 16.0, s.CornerRadiusAt(100))
	require.Equal(t, 0.0, s.CornerRadiusAt(2000))

	require.Equal(t, 0.0, s.BlurOpacityAt(960))
	require.Equal(t, 1.0, s.BlurOpacityAt(400))
	require.InDelta(t, 0.5, s.BlurOpacityAt(680), 1e-9)
	require.Equal(t, 1.0, s.BlurOpacityAt(0))
}

func TestDragInsideBoundsIsOneToOne(t *testing.T) {
	s := newTestSheet(t)

	p := s.DragTo(700)
	require.Equal(t, 700.0, p.Offset)
	require.InDelta(t, 700.0/960.0, p.Scale, 1e-12)

	p = s.DragBy(-50)
	require.Equal(t, 650.0, p.Offset)
}

func TestDragPastBoundsIsDampedAndClamped(t *testing.T) {
	s := newTestSheet(t)

	p := s.DragTo(300)
	require.InDelta(t, 390.0, p.Offset, 1e-9)

	p = s.DragTo(-10_000)
	require.InDelta(t, 400.0-56.0, p.Offset, 1e-9)

	p = s.DragTo(1060)
	require.InDelta(t, 970.0, p.Offset, 1e-9)
	require.Equal(t, 1.0, p.Scale)

	p = s.DragTo(1e9)
	require.InDelta(t, 960.0+56.0, p.Offset, 1e-9)
}

func TestOffsetAlwaysWithinElasticRange(t *testing.T) {
	s := newTestSheet(t)
	open, closed := s.Bounds()
	m := s.ElasticMargin()

	for _, raw := range []float64{-1e12, -500, 0, 343, 400, 655, 960, 1017, 5000, 1e12} {
		y := s.DragTo(raw).Offset
		require.GreaterOrEqual(t, y, open-m)
		require.LessOrEqual(t, y, closed+m)
	}
}

func TestReleaseDoesNotSnap(t *testing.T) {
	s := newTestSheet(t)

	s.DragTo(612)
	p := s.Release()
	require.Equal(t, 612.0, p.Offset)
}

func TestReleaseSettlesOvershootOnBound(t *testing.T) {
	s := newTestSheet(t)

	s.DragTo(100)
	p := s.Release()
	require.Equal(t, 400.0, p.Offset)

	s.DragTo(5000)
	p = s.Release()
	require.Equal(t, 960.0, p.Offset)
}

func TestResizeWhileHalfOpenResetsToClosed(t *testing.T) {
	bus := notify.NewBus()
	var last notify.GestureOffsetChanged
	bus.Subscribe(func(e notify.Event) {
		if g, ok := e.(notify.GestureOffsetChanged); ok {
			last = g
		}
	})
	s, err := New(1000, Options{Bus: bus})
	require.NoError(t, err)

	s.DragTo(680)
	require.Less(t, s.Posture().Scale, 1.0)

	require.NoError(t, s.Resize(800))

	p := s.Posture()
	require.Equal(t, 760.0, p.Offset)
	require.Equal(t, 760.0, p.ClosedBound)
	require.Equal(t, 320.0, p.OpenBound)
	require.Equal(t, 1.0, p.Scale)
	require.Equal(t, 760.0, last.Offset)
	require.Equal(t, 1.0, last.Scale)
}

func TestResizeToInvalidViewportKeepsState(t *testing.T) {
	s := newTestSheet(t)
	s.DragTo(700)

	require.ErrorIs(t, s.Resize(10), ErrInvalidViewport)
	require.Equal(t, 700.0, s.Offset())
}

func TestCustomOptions(t *testing.T) {
	s, err := New(1000, Options{PeekHeight: 100, OpenFraction: 0.5, MaxCornerRadius: 24, Elastic: 0.5})
	require.NoError(t, err)

	open, closed := s.Bounds()
	require.Equal(t, 500.0, open)
	require.Equal(t, 900.0, closed)
	require.Equal(t, 24.0, s.CornerRadiusAt(open))
	require.InDelta(t, 200.0, s.ElasticMargin(), 1e-9)
	require.InDelta(t, 450.0, s.DragTo(400).Offset, 1e-9)
}
