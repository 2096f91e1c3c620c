// Package remote talks to the conference service. The repository consumes
// the Service interface; Client is the HTTP implementation of it.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/confsync/confsync/internal/schedule"
)

// Non-standard status codes the conference service answers vote submissions
// with when the session's voting window is not open.
const (
	StatusTooEarly = 477
	StatusTooLate  = 478
)

// Service is the remote conference API as the sync layer consumes it.
// A userID of "" means an anonymous call.
type Service interface {
	// GetAll fetches the full conference state, personalized when a userID
	// is given.
	GetAll(ctx context.Context, userID string) (schedule.AllData, error)

	// VerifyCode submits a one-time voting code for verification.
	VerifyCode(ctx context.Context, code string) error

	// PostVote submits a rating for a session.
	PostVote(ctx context.Context, vote schedule.Vote, userID string) error

	// DeleteVote retracts the user's rating for the session named in vote.
	DeleteVote(ctx context.Context, vote schedule.Vote, userID string) error

	// PostFavorite marks a session as favorite.
	PostFavorite(ctx context.Context, favorite schedule.Favorite, userID string) error

	// DeleteFavorite unmarks a session as favorite.
	DeleteFavorite(ctx context.Context, favorite schedule.Favorite, userID string) error
}

// StatusError is returned for responses outside the 2xx range. The status
// code is what the repository classifies domain errors from.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("conference service responded %d", e.Status)
	}
	return fmt.Sprintf("conference service responded %d: %s", e.Status, e.Body)
}

// StatusCode extracts the HTTP status carried by err, or 0 when err has no
// status (transport failures, decode failures, cancellations).
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return 0
}
