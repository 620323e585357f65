// Package catalog holds the playlist and video records the feed navigates.
package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Reaction string

const (
	ReactionNone    Reaction = ""
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

func (r Reaction) Valid() bool {
	switch r {
	case ReactionNone, ReactionLike, ReactionDislike:
		return true
	}
	return false
}

// Video is immutable once loaded into a feed. LikeCount and DislikeCount are the
// server snapshot at load time; displayed counts live in the engagement store.
type Video struct {
	ID           string    `json:"video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	MediaURL     string    `json:"video_url"`
	PosterURL    string    `json:"thumbnail_url"`
	Duration     int       `json:"duration"`
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
	ViewCount    int       `json:"view_count"`
	Category     string    `json:"category"`
	PlaylistID   string    `json:"playlist_id"`
	PlaylistSlug string    `json:"playlist_slug,omitempty"`
	PlaylistName string    `json:"playlist_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Playlist struct {
	ID           string  `json:"playlist_id"`
	Slug         string  `json:"slug"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Videos       []Video `json:"videos"`
}

type Comment struct {
	ID        string    `json:"comment_id"`
	VideoID   string    `json:"video_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// FormatCount renders engagement counts the way the action rail shows them: 999, 1.2K, 3.4M.
func FormatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64) + "K"
	default:
		return strconv.Itoa(n)
	}
}

// FormatDuration returns "N mins" for the episode list, or "" when the duration is unknown.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%d mins", seconds/60)
}

// ShareURL links to the player page for a playlist, opened at the given feed index.
func ShareURL(baseURL, slug string, index int) string {
	if slug == "" {
		slug = "video"
	}
	u := strings.TrimRight(baseURL, "/") + "/player/" + url.PathEscape(slug)
	if index > 0 {
		u += "?v=" + strconv.Itoa(index)
	}
	return u
}
