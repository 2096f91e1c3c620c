package schedule

import (
	"fmt"
	"time"
)

// Rating is the small integer code a user can assign to a session.
// The zero value means "no rating" and is never a valid vote payload.
type Rating int8

const (
	RatingDown Rating = 1
	RatingOK   Rating = 2
	RatingUp   Rating = 3
)

// Valid reports whether r is one of the known rating codes.
func (r Rating) Valid() bool {
	switch r {
	case RatingDown, RatingOK, RatingUp:
		return true
	}
	return false
}

func (r Rating) String() string {
	switch r {
	case RatingDown:
		return "down"
	case RatingOK:
		return "ok"
	case RatingUp:
		return "up"
	}
	return fmt.Sprintf("rating(%d)", int8(r))
}

// ParseRating maps the user-facing rating names to their codes.
func ParseRating(s string) (Rating, error) {
	switch s {
	case "down":
		return RatingDown, nil
	case "ok":
		return RatingOK, nil
	case "up":
		return RatingUp, nil
	}
	return 0, fmt.Errorf("unknown rating %q (want up, ok or down)", s)
}

// Session is a single schedule entry as returned by the conference service.
// Content is owned by the service; this layer only mirrors it. IsFavorite is
// filled in on personalized fetches and stays false on anonymous ones.
type Session struct {
	ID         string    `json:"id" validate:"required"`
	Title      string    `json:"title" validate:"required"`
	Abstract   string    `json:"abstract,omitempty"`
	Speakers   []string  `json:"speakers,omitempty"`
	Room       string    `json:"room,omitempty"`
	Track      string    `json:"track,omitempty"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
	IsFavorite bool      `json:"isFavorite,omitempty"`
}

// Vote pairs a session with the rating the user gave it. Server payloads
// carry at most one vote per session.
type Vote struct {
	SessionID string `json:"sessionId" validate:"required"`
	Rating    Rating `json:"rating" validate:"min=1,max=3"`
}

// Favorite is the wire record sent when toggling a session's favorite state.
type Favorite struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// AllData is the full-state payload of the conference service: every session
// plus the caller's vote list. Favorite flags and votes carry data only when
// the fetch was personalized with a user id.
type AllData struct {
	Sessions []Session `json:"sessions" validate:"dive"`
	Votes    []Vote    `json:"votes" validate:"dive"`
}

// FavoriteSessions returns the subset of sessions the service flagged as
// favorited, in session order.
func (d AllData) FavoriteSessions() []Session {
	var favorites []Session
	for _, s := range d.Sessions {
		if s.IsFavorite {
			favorites = append(favorites, s)
		}
	}
	return favorites
}

// SessionByID looks a session up by its id.
func (d AllData) SessionByID(id string) (Session, bool) {
	for _, s := range d.Sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}
