// Package engagement keeps per-video reaction, bookmark and comment-count state,
// applying user actions optimistically and reconciling them with the server.
package engagement

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/notify"
	"github.com/reelfeed/reelfeed/internal/validate"
	"golang.org/x/sync/errgroup"
)

const MaxCommentLength = validate.MaxCommentBodyLength

// Backend is the set of network operations the store consumes.
// Like and Dislike have toggle semantics and return the authoritative reaction.
type Backend interface {
	GetReaction(ctx context.Context, videoID string) (catalog.Reaction, error)
	Like(ctx context.Context, videoID string) (catalog.Reaction, error)
	Dislike(ctx context.Context, videoID string) (catalog.Reaction, error)
	CheckBookmark(ctx context.Context, videoID string) (bool, error)
	ToggleBookmark(ctx context.Context, videoID string) (bool, error)
	GetCommentCount(ctx context.Context, videoID string) (int, error)
	ListComments(ctx context.Context, videoID string) ([]catalog.Comment, error)
	AddComment(ctx context.Context, videoID, content string) (catalog.Comment, error)
}

type Authenticator interface {
	Authenticated() bool
}

// AuthFunc adapts a plain function to Authenticator.
type AuthFunc func() bool

func (f AuthFunc) Authenticated() bool { return f() }

type State struct {
	VideoID      string
	Reaction     catalog.Reaction
	LikeCount    int
	DislikeCount int
	Bookmarked   bool
	CommentCount int
}

func (s State) Liked() bool    { return s.Reaction == catalog.ReactionLike }
func (s State) Disliked() bool { return s.Reaction == catalog.ReactionDislike }

type entry struct {
	state State
	// sequence numbers of the latest dispatched mutation per field
	reactionSeq uint64
	bookmarkSeq uint64
}

type Store struct {
	mu      sync.Mutex
	backend Backend
	auth    Authenticator
	bus     *notify.Bus
	entries map[string]*entry
	active  string
	seq     uint64
}

func NewStore(backend Backend, auth Authenticator, bus *notify.Bus) *Store {
	return &Store{
		backend: backend,
		auth:    auth,
		bus:     bus,
		entries: make(map[string]*entry),
	}
}

// Ensure creates the state for v from its snapshot counts if it does not exist yet.
func (s *Store) Ensure(v catalog.Video) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(v.ID, v.LikeCount, v.DislikeCount).state
}

func (s *Store) ensureLocked(videoID string, likes, dislikes int) *entry {
	e, ok := s.entries[videoID]
	if !ok {
		e = &entry{state: State{
			VideoID:      videoID,
			LikeCount:    max(likes, 0),
			DislikeCount: max(dislikes, 0),
		}}
		s.entries[videoID] = e
	}
	return e
}

// State returns the current state for videoID and whether it exists.
func (s *Store) State(videoID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[videoID]
	if !ok {
		return State{VideoID: videoID}, false
	}
	return e.state, true
}

// SetActive names the video whose hydration results may be committed.
func (s *Store) SetActive(videoID string) {
	s.mu.Lock()
	s.active = videoID
	s.mu.Unlock()
}

func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Reset drops every state; used when the feed goes away.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.active = ""
	s.mu.Unlock()
}

func (s *Store) authenticated() bool {
	return s.auth != nil && s.auth.Authenticated()
}

// Hydrate fetches reaction, bookmark and comment count concurrently. Each call
// fails on its own and leaves its field as it was. Results that arrive after the
// user has moved to another video are discarded. The returned error only
// describes failed fetches; callers log it and carry on.
func (s *Store) Hydrate(ctx context.Context, videoID string) error {
	s.mu.Lock()
	e := s.ensureLocked(videoID, 0, 0)
	reactionSeq, bookmarkSeq := e.reactionSeq, e.bookmarkSeq
	s.mu.Unlock()

	var (
		reaction    catalog.Reaction
		bookmarked  bool
		comments    int
		reactionErr error
		markErr     error
		commentErr  error
	)

	var g errgroup.Group
	g.Go(func() error {
		reaction, reactionErr = s.backend.GetReaction(ctx, videoID)
		if reactionErr == nil && !reaction.Valid() {
			reactionErr = ErrInvalidResponse
		}
		return nil
	})
	g.Go(func() error {
		bookmarked, markErr = s.backend.CheckBookmark(ctx, videoID)
		return nil
	})
	g.Go(func() error {
		comments, commentErr = s.backend.GetCommentCount(ctx, videoID)
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	if s.active != videoID || s.entries[videoID] != e {
		s.mu.Unlock()
		slog.Debug("engagement: discarding stale hydration", "video_id", videoID)
		return nil
	}
	before := e.state
	// a toggle dispatched while we were fetching is newer than what we fetched
	if reactionErr == nil && e.reactionSeq == reactionSeq {
		e.state.Reaction = reaction
	}
	if markErr == nil && e.bookmarkSeq == bookmarkSeq {
		e.state.Bookmarked = bookmarked
	}
	if commentErr == nil {
		e.state.CommentCount = max(comments, 0)
	}
	after := e.state
	s.mu.Unlock()

	s.publish(before, after)

	var errs []error
	if reactionErr != nil {
		errs = append(errs, &NetworkError{Op: "get reaction", VideoID: videoID, Err: reactionErr})
	}
	if markErr != nil {
		errs = append(errs, &NetworkError{Op: "check bookmark", VideoID: videoID, Err: markErr})
	}
	if commentErr != nil {
		errs = append(errs, &NetworkError{Op: "get comment count", VideoID: videoID, Err: commentErr})
	}
	return errors.Join(errs...)
}

// Like pushes the video towards liked: a liked video stays liked, a disliked one
// switches over. This is what a double tap does.
func (s *Store) Like(ctx context.Context, videoID string) error {
	return s.toggleReaction(ctx, videoID, catalog.ReactionLike, func(st State) bool {
		return !st.Liked()
	})
}

// ToggleReaction applies kind the way the like and dislike buttons do: the same kind
// clears it, the other kind switches over.
func (s *Store) ToggleReaction(ctx context.Context, videoID string, kind catalog.Reaction) error {
	if kind != catalog.ReactionLike && kind != catalog.ReactionDislike {
		return errors.New("engagement: reaction kind must be like or dislike")
	}
	return s.toggleReaction(ctx, videoID, kind, nil)
}

// snapshot-before, apply-optimistic, commit-or-revert. The snapshot belongs to this
// invocation, so overlapping toggles roll back independently.
func (s *Store) toggleReaction(ctx context.Context, videoID string, kind catalog.Reaction, want func(State) bool) error {
	if !s.authenticated() {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	e := s.ensureLocked(videoID, 0, 0)
	if want != nil && !want(e.state) {
		s.mu.Unlock()
		return nil
	}
	before := e.state
	e.state = applyReaction(before, kind)
	s.seq++
	seq := s.seq
	e.reactionSeq = seq
	optimistic := e.state
	s.mu.Unlock()

	s.publish(before, optimistic)

	call := s.backend.Like
	op := "like"
	if kind == catalog.ReactionDislike {
		call = s.backend.Dislike
		op = "dislike"
	}
	confirmed, err := call(ctx, videoID)
	if err == nil && !confirmed.Valid() {
		err = ErrInvalidResponse
	}

	s.mu.Lock()
	if s.entries[videoID] != e {
		s.mu.Unlock()
		if err != nil {
			return &NetworkError{Op: op, VideoID: videoID, Err: err}
		}
		return nil
	}
	current := e.state
	if err != nil {
		e.state.Reaction = before.Reaction
		e.state.LikeCount = before.LikeCount
		e.state.DislikeCount = before.DislikeCount
	} else if e.reactionSeq == seq {
		// the server owns the flag; counts only follow it by the usual deltas
		e.state = moveReaction(e.state, confirmed)
	}
	after := e.state
	s.mu.Unlock()

	s.publish(current, after)

	if err != nil {
		slog.Warn("engagement: reaction rolled back", "video_id", videoID, "op", op, "error", err)
		return &NetworkError{Op: op, VideoID: videoID, Err: err}
	}
	return nil
}

// moveReaction sets the reaction to target, taking one off the count it leaves and
// adding one to the count it enters.
func moveReaction(st State, target catalog.Reaction) State {
	if st.Reaction == target {
		return st
	}
	if st.Reaction != catalog.ReactionNone {
		st = adjust(st, st.Reaction, -1)
	}
	st.Reaction = target
	if target != catalog.ReactionNone {
		st = adjust(st, target, +1)
	}
	return st
}

// applyReaction keeps the counts consistent with the reaction flag: the same kind
// clears the reaction, any other kind switches to it.
func applyReaction(st State, kind catalog.Reaction) State {
	if st.Reaction == kind {
		return moveReaction(st, catalog.ReactionNone)
	}
	return moveReaction(st, kind)
}

func adjust(st State, kind catalog.Reaction, delta int) State {
	switch kind {
	case catalog.ReactionLike:
		st.LikeCount = max(st.LikeCount+delta, 0)
	case catalog.ReactionDislike:
		st.DislikeCount = max(st.DislikeCount+delta, 0)
	}
	return st
}

func (s *Store) ToggleBookmark(ctx context.Context, videoID string) error {
	if !s.authenticated() {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	e := s.ensureLocked(videoID, 0, 0)
	before := e.state
	e.state.Bookmarked = !before.Bookmarked
	s.seq++
	seq := s.seq
	e.bookmarkSeq = seq
	optimistic := e.state
	s.mu.Unlock()

	s.publish(before, optimistic)

	confirmed, err := s.backend.ToggleBookmark(ctx, videoID)

	s.mu.Lock()
	if s.entries[videoID] != e {
		s.mu.Unlock()
		if err != nil {
			return &NetworkError{Op: "toggle bookmark", VideoID: videoID, Err: err}
		}
		return nil
	}
	current := e.state
	if err != nil {
		e.state.Bookmarked = before.Bookmarked
	} else if e.bookmarkSeq == seq {
		e.state.Bookmarked = confirmed
	}
	after := e.state
	s.mu.Unlock()

	s.publish(current, after)

	if err != nil {
		slog.Warn("engagement: bookmark rolled back", "video_id", videoID, "error", err)
		return &NetworkError{Op: "toggle bookmark", VideoID: videoID, Err: err}
	}
	return nil
}

func (s *Store) Comments(ctx context.Context, videoID string) ([]catalog.Comment, error) {
	comments, err := s.backend.ListComments(ctx, videoID)
	if err != nil {
		return nil, &NetworkError{Op: "list comments", VideoID: videoID, Err: err}
	}
	return comments, nil
}

// AddComment posts content and bumps the comment count once the server accepted it.
func (s *Store) AddComment(ctx context.Context, videoID, content string) (catalog.Comment, error) {
	if !s.authenticated() {
		return catalog.Comment{}, ErrUnauthenticated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return catalog.Comment{}, ErrEmptyComment
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return catalog.Comment{}, ErrCommentTooLong
	}

	comment, err := s.backend.AddComment(ctx, videoID, content)
	if err != nil {
		return catalog.Comment{}, &NetworkError{Op: "add comment", VideoID: videoID, Err: err}
	}

	s.mu.Lock()
	e := s.ensureLocked(videoID, 0, 0)
	before := e.state
	e.state.CommentCount++
	after := e.state
	s.mu.Unlock()

	s.publish(before, after)
	return comment, nil
}

func (s *Store) publish(before, after State) {
	fields := changedFields(before, after)
	if len(fields) == 0 {
		return
	}
	s.bus.Publish(notify.EngagementChanged{VideoID: after.VideoID, Fields: fields})
}

func changedFields(a, b State) []notify.Field {
	var fields []notify.Field
	if a.Reaction != b.Reaction {
		fields = append(fields, notify.FieldReaction)
	}
	if a.LikeCount != b.LikeCount {
		fields = append(fields, notify.FieldLikeCount)
	}
	if a.DislikeCount != b.DislikeCount {
		fields = append(fields, notify.FieldDislikeCount)
	}
	if a.Bookmarked != b.Bookmarked {
		fields = append(fields, notify.FieldBookmarked)
	}
	if a.CommentCount != b.CommentCount {
		fields = append(fields, notify.FieldCommentCount)
	}
	return fields
}
