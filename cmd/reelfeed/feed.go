package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/reelfeed/reelfeed/internal/api"
	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/engagement"
	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/gesture"
	"github.com/reelfeed/reelfeed/internal/notify"
	"github.com/reelfeed/reelfeed/internal/playback"
)

// feedViewportHeight is the phone-sized viewport the sheet bounds are reported for.
const feedViewportHeight = 844

// runFeed swipes through a playlist with the player engine against a running API
// and prints what the player shows for each video once it has hydrated.
func runFeed(ctx context.Context, out io.Writer, cfg config.PlayerConfig, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("feed: expected a playlist slug and an optional start index\n%s", usage)
	}

	session := api.NewSession(cfg.Token)
	client := api.New(cfg.APIURL, session)

	playlist, err := client.GetPlaylist(ctx, args[0])
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	start := 0
	if len(args) == 2 {
		start = feed.ParseInitialIndex(args[1], len(playlist.Videos))
	}

	bus := notify.NewBus()
	store := engagement.NewStore(client, session, bus)
	controller := feed.New(feed.Config{
		Playback:   playback.New(bus),
		Engagement: store,
		Views:      client,
		Media:      feed.MediaFunc(newHeadlessMedia),
		Bus:        bus,
	})
	defer controller.Close()

	sheet, err := gesture.New(feedViewportHeight, gesture.Options{Bus: bus})
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	open, closed := sheet.Bounds()

	fmt.Fprintf(out, "%s: %d videos, signed in: %t, episode sheet %.0f..%.0f\n",
		playlist.Name, len(playlist.Videos), session.Authenticated(), open, closed)

	controller.Load(*playlist, start)
	if controller.Empty() {
		fmt.Fprintln(out, "no videos")
		return nil
	}

	for {
		controller.Wait()
		v, _ := controller.Active()
		st, _ := store.State(v.ID)
		fmt.Fprintf(out, "%d\t%s\tlikes=%d dislikes=%d comments=%d reaction=%s bookmarked=%t\n",
			controller.Index(), v.Title, st.LikeCount, st.DislikeCount, st.CommentCount,
			reactionLabel(st.Reaction), st.Bookmarked)
		if !controller.Next() {
			return nil
		}
	}
}

func reactionLabel(r catalog.Reaction) string {
	if r == catalog.ReactionNone {
		return "none"
	}
	return string(r)
}

// headlessMedia stands in for a video element: play always succeeds and time never
// advances.
type headlessMedia struct {
	mu       sync.Mutex
	duration float64
	muted    bool
	playing  bool
}

func newHeadlessMedia(v catalog.Video) playback.Media {
	return &headlessMedia{duration: float64(v.Duration)}
}

func (m *headlessMedia) Play(context.Context) error {
	m.mu.Lock()
	m.playing = true
	m.mu.Unlock()
	return nil
}

func (m *headlessMedia) Pause() {
	m.mu.Lock()
	m.playing = false
	m.mu.Unlock()
}

func (m *headlessMedia) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
}

func (m *headlessMedia) CurrentTime() float64 { return 0 }

func (m *headlessMedia) Duration() float64 { return m.duration }
