// Package api talks to the reelfeed REST API on behalf of the player engine.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/engagement"
	"github.com/reelfeed/reelfeed/internal/feed"
)

var (
	_ engagement.Backend       = (*Client)(nil)
	_ engagement.Authenticator = (*Session)(nil)
	_ feed.ViewCounter         = (*Client)(nil)
)

const maxResponseBodyBytes = 1 << 20

var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx response. Message is the server's {"error": ...} text.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// Is matches ErrUnauthorized and engagement.ErrUnauthenticated on a 401, so a
// rejected token reaches the player as a sign-in prompt.
func (e *StatusError) Is(target error) bool {
	if e.StatusCode != http.StatusUnauthorized {
		return false
	}
	return target == ErrUnauthorized || target == engagement.ErrUnauthenticated
}

type Client struct {
	baseURL    string
	session    *Session
	httpClient *http.Client
}

func New(baseURL string, session *Session) *Client {
	if session == nil {
		session = NewSession("")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Session() *Session {
	return c.session
}

type reactionResponse struct {
	Reaction *string `json:"reaction"`
}

type bookmarkResponse struct {
	Bookmarked bool `json:"bookmarked"`
}

type countResponse struct {
	Count int `json:"count"`
}

type addCommentRequest struct {
	Content string `json:"content"`
}

func (c *Client) GetPlaylist(ctx context.Context, slug string) (*catalog.Playlist, error) {
	var p catalog.Playlist
	if err := c.do(ctx, http.MethodGet, "/api/playlists/"+url.PathEscape(slug), nil, &p); err != nil {
		return nil, fmt.Errorf("get playlist %s: %w", slug, err)
	}
	return &p, nil
}

func (c *Client) GetReaction(ctx context.Context, videoID string) (catalog.Reaction, error) {
	return c.reaction(ctx, http.MethodGet, "/api/reactions/"+url.PathEscape(videoID))
}

func (c *Client) Like(ctx context.Context, videoID string) (catalog.Reaction, error) {
	return c.reaction(ctx, http.MethodPost, "/api/reactions/"+url.PathEscape(videoID)+"/like")
}

func (c *Client) Dislike(ctx context.Context, videoID string) (catalog.Reaction, error) {
	return c.reaction(ctx, http.MethodPost, "/api/reactions/"+url.PathEscape(videoID)+"/dislike")
}

func (c *Client) reaction(ctx context.Context, method, path string) (catalog.Reaction, error) {
	var resp reactionResponse
	if err := c.do(ctx, method, path, nil, &resp); err != nil {
		return "", err
	}
	if resp.Reaction == nil {
		return catalog.ReactionNone, nil
	}
	r := catalog.Reaction(*resp.Reaction)
	if !r.Valid() {
		return "", fmt.Errorf("unknown reaction %q", *resp.Reaction)
	}
	return r, nil
}

func (c *Client) CheckBookmark(ctx context.Context, videoID string) (bool, error) {
	var resp bookmarkResponse
	if err := c.do(ctx, http.MethodGet, "/api/bookmarks/"+url.PathEscape(videoID)+"/check", nil, &resp); err != nil {
		return false, err
	}
	return resp.Bookmarked, nil
}

func (c *Client) ToggleBookmark(ctx context.Context, videoID string) (bool, error) {
	var resp bookmarkResponse
	if err := c.do(ctx, http.MethodPost, "/api/bookmarks/"+url.PathEscape(videoID), nil, &resp); err != nil {
		return false, err
	}
	return resp.Bookmarked, nil
}

func (c *Client) GetCommentCount(ctx context.Context, videoID string) (int, error) {
	var resp countResponse
	if err := c.do(ctx, http.MethodGet, "/api/comments/"+url.PathEscape(videoID)+"/count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) ListComments(ctx context.Context, videoID string) ([]catalog.Comment, error) {
	var comments []catalog.Comment
	if err := c.do(ctx, http.MethodGet, "/api/comments/"+url.PathEscape(videoID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) AddComment(ctx context.Context, videoID, content string) (catalog.Comment, error) {
	var comment catalog.Comment
	body := addCommentRequest{Content: content}
	if err := c.do(ctx, http.MethodPost, "/api/comments/"+url.PathEscape(videoID), body, &comment); err != nil {
		return catalog.Comment{}, err
	}
	return comment, nil
}

func (c *Client) IncrementView(ctx context.Context, videoID string) error {
	return c.do(ctx, http.MethodPost, "/api/videos/"+url.PathEscape(videoID)+"/view", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errBody)
		return &StatusError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
