package repository

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/confsync/confsync/internal/remote"
)

var (
	// ErrSyncFailed is returned when the full-state fetch of Update fails
	// for any reason; the cached data is left untouched.
	ErrSyncFailed = errors.New("schedule synchronization failed")
	// ErrUnauthorized is returned by mutations attempted without a
	// verified voting code.
	ErrUnauthorized = errors.New("no verified voting code")
	// ErrIncorrectCode is returned when the service rejects a voting code.
	ErrIncorrectCode = errors.New("voting code not accepted")
	// ErrVerificationFailed is returned when code verification fails for
	// any reason other than a rejected code.
	ErrVerificationFailed = errors.New("voting code verification failed")
	// ErrTooEarlyVote is returned when a rating arrives before the
	// session's voting window opens.
	ErrTooEarlyVote = errors.New("voting has not opened yet")
	// ErrTooLateVote is returned when a rating arrives after the session's
	// voting window closed.
	ErrTooLateVote = errors.New("voting has closed")
	// ErrCannotPostVote is returned for every other failed rating
	// submission.
	ErrCannotPostVote = errors.New("rating could not be submitted")
	// ErrCannotDeleteVote is returned when retracting a rating fails.
	ErrCannotDeleteVote = errors.New("rating could not be removed")
	// ErrCannotFavorite is returned when a favorite toggle fails remotely.
	ErrCannotFavorite = errors.New("favorite could not be updated")
)

// ErrSessionNotFound is returned by SetFavorite when the target session is
// missing from the cached schedule. Clients have historically seen this case
// as an authorization failure, so the sentinel also matches
// errors.Is(err, ErrUnauthorized); new callers can match it specifically.
var ErrSessionNotFound error = sessionNotFoundError{}

type sessionNotFoundError struct{}

func (sessionNotFoundError) Error() string { return "session not found in cached schedule" }

func (sessionNotFoundError) Is(target error) bool { return target == ErrUnauthorized }

// mapVerifyError classifies a failed code verification. Status 406 means the
// service rejected the code itself.
func mapVerifyError(err error) error {
	if remote.StatusCode(err) == http.StatusNotAcceptable {
		return fmt.Errorf("%w: %v", ErrIncorrectCode, err)
	}
	return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
}

// mapVoteError classifies a failed rating submission by the service's
// voting-window status codes.
func mapVoteError(err error) error {
	switch remote.StatusCode(err) {
	case remote.StatusTooEarly:
		return fmt.Errorf("%w: %v", ErrTooEarlyVote, err)
	case remote.StatusTooLate:
		return fmt.Errorf("%w: %v", ErrTooLateVote, err)
	}
	return fmt.Errorf("%w: %v", ErrCannotPostVote, err)
}
