package engagement

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the user has to sign in first. Returned directly it
	// means nothing was mutated. A NetworkError can also match it when the server
	// rejected the credentials; the change has been rolled back by then.
	ErrUnauthenticated = errors.New("sign in required")
	// ErrNetworkFailure is wrapped by every NetworkError.
	ErrNetworkFailure = errors.New("network failure")

	ErrEmptyComment    = errors.New("comment is empty")
	ErrCommentTooLong  = fmt.Errorf("comment must be %d characters or fewer", MaxCommentLength)
	ErrInvalidResponse = errors.New("invalid server response")
)

// NetworkError reports a failed backend call for one video. Toggle failures have
// already been rolled back by the time the caller sees it.
type NetworkError struct {
	Op      string
	VideoID string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("engagement: %s %s: %v", e.Op, e.VideoID, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetworkFailure, e.Err}
}
