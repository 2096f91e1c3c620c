package confmock

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/confsync/confsync/internal/schedule"
)

// Outcomes the handlers translate into HTTP statuses.
var (
	errUnknownCode    = errors.New("unknown voting code")
	errUnknownSession = errors.New("unknown session")
	errVotingNotOpen  = errors.New("voting has not opened for this session")
	errVotingClosed   = errors.New("voting has closed")
)

// State is the live side of the mock service: the fixture currently served
// plus per-user favorites and votes, which exist only in memory and are
// dropped on restart.
type State struct {
	mu        sync.RWMutex
	doc       Document
	votes     map[string]map[string]schedule.Rating // code -> session id -> rating
	favorites map[string]map[string]bool            // code -> favorited session ids
	now       func() time.Time
}

// NewState serves the given fixture. A nil now falls back to time.Now; tests
// inject a fixed clock to pin the voting window.
func NewState(doc Document, now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	doc.ApplyDefaults()
	return &State{
		doc:       doc,
		votes:     map[string]map[string]schedule.Rating{},
		favorites: map[string]map[string]bool{},
		now:       now,
	}
}

// Fixture returns a copy of the fixture currently served.
func (s *State) Fixture() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneDocLocked()
}

// ReplaceFixture swaps the served fixture. Per-user votes and favorites
// survive the swap; votes referencing sessions that disappeared stay until
// the user retracts them.
func (s *State) ReplaceFixture(doc Document) {
	doc.ApplyDefaults()
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}

// ValidCode reports whether the service accepts this voting code.
func (s *State) ValidCode(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validCodeLocked(code)
}

// AllFor builds the full-state payload for a user. An empty code yields the
// anonymous view: no favorite flags, no votes. Votes are emitted in session
// id order so unchanged state always serializes identically.
func (s *State) AllFor(code string) schedule.AllData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := slices.Clone(s.doc.Sessions)
	if code == "" {
		for i := range sessions {
			sessions[i].IsFavorite = false
		}
		return schedule.AllData{Sessions: sessions}
	}

	favs := s.favorites[code]
	for i := range sessions {
		sessions[i].IsFavorite = favs[sessions[i].ID]
	}

	var votes []schedule.Vote
	for id, rating := range s.votes[code] {
		votes = append(votes, schedule.Vote{SessionID: id, Rating: rating})
	}
	slices.SortFunc(votes, func(a, b schedule.Vote) int {
		return strings.Compare(a.SessionID, b.SessionID)
	})

	return schedule.AllData{Sessions: sessions, Votes: votes}
}

// AddVote records a rating, honoring the voting window: before the session
// starts is too early, after the conference-wide close is too late. A second
// vote for the same session replaces the first; the server keeps at most one
// vote per session.
func (s *State) AddVote(code, sessionID string, rating schedule.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validCodeLocked(code) {
		return errUnknownCode
	}
	session, found := s.sessionLocked(sessionID)
	if !found {
		return errUnknownSession
	}

	now := s.now()
	if now.Before(session.StartsAt) {
		return errVotingNotOpen
	}
	if now.After(s.doc.Conference.VotingClosesAt) {
		return errVotingClosed
	}

	if s.votes[code] == nil {
		s.votes[code] = map[string]schedule.Rating{}
	}
	s.votes[code][sessionID] = rating
	return nil
}

// RemoveVote drops the user's rating for a session. Retracting a vote that
// was never cast is fine.
func (s *State) RemoveVote(code, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validCodeLocked(code) {
		return errUnknownCode
	}
	delete(s.votes[code], sessionID)
	return nil
}

// AddFavorite marks a session as favorited by the user.
func (s *State) AddFavorite(code, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validCodeLocked(code) {
		return errUnknownCode
	}
	if _, found := s.sessionLocked(sessionID); !found {
		return errUnknownSession
	}

	if s.favorites[code] == nil {
		s.favorites[code] = map[string]bool{}
	}
	s.favorites[code][sessionID] = true
	return nil
}

// RemoveFavorite unmarks a session. Unmarking a session that was never
// favorited is fine.
func (s *State) RemoveFavorite(code, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validCodeLocked(code) {
		return errUnknownCode
	}
	delete(s.favorites[code], sessionID)
	return nil
}

// AddSession appends a session to the served fixture.
func (s *State) AddSession(session schedule.Session) {
	s.mu.Lock()
	s.doc.Sessions = append(slices.Clone(s.doc.Sessions), session)
	s.mu.Unlock()
}

func (s *State) validCodeLocked(code string) bool {
	return code != "" && slices.Contains(s.doc.Codes, code)
}

func (s *State) sessionLocked(id string) (schedule.Session, bool) {
	for _, session := range s.doc.Sessions {
		if session.ID == id {
			return session, true
		}
	}
	return schedule.Session{}, false
}

func (s *State) cloneDocLocked() Document {
	doc := s.doc
	doc.Sessions = slices.Clone(s.doc.Sessions)
	doc.Codes = slices.Clone(s.doc.Codes)
	return doc
}
