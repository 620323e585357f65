package validate

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Text limits shared by the server handlers and the player engine.
const (
	MaxCommentBodyLength  = 5000
	MaxPlaylistSlugLength = 100
)

// checkLen counts characters, not bytes, so multi-byte text gets the same limit.
func checkLen(value string, max int, field string) string {
	if utf8.RuneCountInString(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func CommentBody(s string) string {
	if s == "" {
		return "comment is required"
	}
	return checkLen(s, MaxCommentBodyLength, "comment")
}

func PlaylistSlug(s string) string {
	if s == "" {
		return "playlist slug is required"
	}
	if msg := checkLen(s, MaxPlaylistSlugLength, "playlist slug"); msg != "" {
		return msg
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return "playlist slug may only contain lowercase letters, digits, '-' and '_'"
		}
	}
	return ""
}

func VideoID(s string) string {
	if _, err := uuid.Parse(s); err != nil {
		return "invalid video id"
	}
	return ""
}
