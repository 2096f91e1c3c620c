// Package repository implements the data repository façade of the sync
// layer: it owns the cached conference state, the full-synchronization and
// mutation operations against the remote service, the mapping of transport
// failures onto domain error kinds, and the refresh notifications.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/confsync/confsync/internal/cache"
	"github.com/confsync/confsync/internal/logger"
	"github.com/confsync/confsync/internal/notify"
	"github.com/confsync/confsync/internal/prefs"
	"github.com/confsync/confsync/internal/remote"
	"github.com/confsync/confsync/internal/schedule"
)

// Cache keys, one per bound field. Fixed constants namespaced per
// installation.
const (
	keySessions        = "confsync.sessions"
	keyFavorites       = "confsync.favorites"
	keyVotes           = "confsync.votes"
	keyUserID          = "confsync.userId"
	keyPrivacyAccepted = "confsync.privacyAccepted"
)

// Repository is the data-facing contract of the sync layer. Application code
// reads the cached collections synchronously, calls the mutation and
// synchronization operations, and registers a refresh listener to hear about
// cache changes those operations cause.
type Repository interface {
	Update(ctx context.Context) error
	VerifyAndSetCode(ctx context.Context, code string) error
	AddRating(ctx context.Context, sessionID string, rating schedule.Rating) error
	RemoveRating(ctx context.Context, sessionID string) error
	SetFavorite(ctx context.Context, sessionID string, favorite bool) error
	AcceptPrivacyPolicy()

	Sessions() []schedule.Session
	Favorites() []schedule.Session
	Votes() []schedule.Vote
	Rating(sessionID string) (schedule.Rating, bool)
	IsFavorite(sessionID string) bool
	Session(sessionID string) (schedule.Session, bool)
	UserID() string
	LoggedIn() bool
	PrivacyPolicyAccepted() bool

	RegisterRefreshListener(fn func())
}

// ConferenceRepository is the Repository implementation backed by a
// prefs.Store and a remote.Service. One mutex serializes access to the
// bindings, which do not lock themselves; remote calls never run under the
// lock, and listeners fire only after it is released. Concurrent mutations
// are last-write-wins, as callers needing stricter ordering serialize
// externally.
type ConferenceRepository struct {
	service   remote.Service
	listeners notify.Registry

	mu        sync.RWMutex
	sessions  *cache.Value[[]schedule.Session]
	favorites *cache.Value[[]schedule.Session]
	votes     *cache.Value[[]schedule.Vote]
	userID    *cache.Value[string]
	privacy   *cache.Flag
}

var _ Repository = (*ConferenceRepository)(nil)

// NewConferenceRepository binds the cached fields to store and wires the
// remote service. The bindings load here, so a fresh repository starts from
// whatever the previous run persisted.
func NewConferenceRepository(store prefs.Store, service remote.Service) *ConferenceRepository {
	return &ConferenceRepository{
		service:   service,
		sessions:  cache.NewValue[[]schedule.Session](store, keySessions),
		favorites: cache.NewValue[[]schedule.Session](store, keyFavorites),
		votes:     cache.NewValue[[]schedule.Vote](store, keyVotes),
		userID:    cache.NewValue[string](store, keyUserID),
		privacy:   cache.NewFlag(store, keyPrivacyAccepted, false),
	}
}

// Update fetches the full conference state, personalized when logged in, and
// reconciles the cached sessions, favorites and votes in one step. Any fetch
// failure surfaces as ErrSyncFailed with the cache untouched. Listeners fire
// exactly once, and only when the reconciled triple actually differs from
// what was cached before.
func (r *ConferenceRepository) Update(ctx context.Context) error {
	userID, _ := r.currentUser()

	data, err := r.service.GetAll(ctx, userID)
	if err != nil {
		logger.WithComponent("repo").Warnf("full synchronization failed: %v", err)
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	incoming := snapshot{
		Sessions:  data.Sessions,
		Favorites: data.FavoriteSessions(),
		Votes:     data.Votes,
	}

	r.mu.Lock()
	changed := !incoming.equal(r.snapshotLocked())
	if changed {
		r.sessions.Set(incoming.Sessions)
		r.favorites.Set(incoming.Favorites)
		r.votes.Set(incoming.Votes)
	}
	r.mu.Unlock()

	if !changed {
		logger.WithComponent("repo").Debugf("synchronization brought no changes")
		return nil
	}

	logger.WithComponent("repo").Infof("cache updated: %d sessions, %d favorites, %d votes",
		len(incoming.Sessions), len(incoming.Favorites), len(incoming.Votes))
	r.listeners.NotifyAll()
	return nil
}

// VerifyAndSetCode submits a one-time voting code to the service. Once
// accepted, the code is persisted as the user id for all later personalized
// calls. A rejected code surfaces ErrIncorrectCode, anything else
// ErrVerificationFailed. No listener notification either way.
func (r *ConferenceRepository) VerifyAndSetCode(ctx context.Context, code string) error {
	if err := r.service.VerifyCode(ctx, code); err != nil {
		logger.WithComponent("repo").Debugf("code verification failed: %v", err)
		return mapVerifyError(err)
	}

	r.mu.Lock()
	r.userID.Set(code)
	r.mu.Unlock()

	logger.WithComponent("repo").Info("voting code verified")
	return nil
}

// AddRating submits a rating for a session. The vote is network-confirmed:
// it is appended to the cached votes only after the service accepted it, and
// an existing vote for the same session is not removed until the next Update
// reconciles against the server. Listeners fire exactly once whether the
// submission succeeded or failed, so callers waiting on the outcome always
// leave their loading state.
func (r *ConferenceRepository) AddRating(ctx context.Context, sessionID string, rating schedule.Rating) error {
	userID, ok := r.currentUser()
	if !ok {
		return ErrUnauthorized
	}
	defer r.listeners.NotifyAll()

	vote := schedule.Vote{SessionID: sessionID, Rating: rating}
	if err := r.service.PostVote(ctx, vote, userID); err != nil {
		logger.WithComponent("repo").Debugf("vote for %s failed: %v", sessionID, err)
		return mapVoteError(err)
	}

	r.mu.Lock()
	votes, _ := r.votes.Get()
	r.votes.Set(append(slices.Clone(votes), vote))
	r.mu.Unlock()
	return nil
}

// RemoveRating retracts the user's rating for a session. On success every
// cached vote for that session is dropped; any failure surfaces
// ErrCannotDeleteVote. Listeners fire exactly once regardless of outcome.
func (r *ConferenceRepository) RemoveRating(ctx context.Context, sessionID string) error {
	userID, ok := r.currentUser()
	if !ok {
		return ErrUnauthorized
	}
	defer r.listeners.NotifyAll()

	if err := r.service.DeleteVote(ctx, schedule.Vote{SessionID: sessionID}, userID); err != nil {
		logger.WithComponent("repo").Debugf("vote removal for %s failed: %v", sessionID, err)
		return fmt.Errorf("%w: %v", ErrCannotDeleteVote, err)
	}

	r.mu.Lock()
	votes, _ := r.votes.Get()
	kept := make([]schedule.Vote, 0, len(votes))
	for _, v := range votes {
		if v.SessionID != sessionID {
			kept = append(kept, v)
		}
	}
	r.votes.Set(kept)
	r.mu.Unlock()
	return nil
}

// SetFavorite marks or unmarks a session as favorite, service first. When
// favoriting, the confirmed session is resolved against the cached schedule
// and appended to the cached favorites; a session missing locally surfaces
// ErrSessionNotFound without touching the favorites. Listeners fire exactly
// once regardless of outcome.
func (r *ConferenceRepository) SetFavorite(ctx context.Context, sessionID string, favorite bool) error {
	userID, ok := r.currentUser()
	if !ok {
		return ErrUnauthorized
	}
	defer r.listeners.NotifyAll()

	ref := schedule.Favorite{SessionID: sessionID}
	if favorite {
		if err := r.service.PostFavorite(ctx, ref, userID); err != nil {
			logger.WithComponent("repo").Debugf("favorite %s failed: %v", sessionID, err)
			return fmt.Errorf("%w: %v", ErrCannotFavorite, err)
		}

		r.mu.Lock()
		session, found := r.sessionLocked(sessionID)
		if !found {
			r.mu.Unlock()
			logger.WithComponent("repo").Warnf("favorited session %s is not in the cached schedule", sessionID)
			return fmt.Errorf("favorite %s: %w", sessionID, ErrSessionNotFound)
		}
		favorites, _ := r.favorites.Get()
		r.favorites.Set(append(slices.Clone(favorites), session))
		r.mu.Unlock()
		return nil
	}

	if err := r.service.DeleteFavorite(ctx, ref, userID); err != nil {
		logger.WithComponent("repo").Debugf("unfavorite %s failed: %v", sessionID, err)
		return fmt.Errorf("%w: %v", ErrCannotFavorite, err)
	}

	r.mu.Lock()
	favorites, _ := r.favorites.Get()
	kept := make([]schedule.Session, 0, len(favorites))
	for _, s := range favorites {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	r.favorites.Set(kept)
	r.mu.Unlock()
	return nil
}

// AcceptPrivacyPolicy persists the acceptance flag. Local only: no service
// call, no listener notification.
func (r *ConferenceRepository) AcceptPrivacyPolicy() {
	r.mu.Lock()
	r.privacy.Set(true)
	r.mu.Unlock()
}

// Sessions returns the cached schedule, empty until the first successful
// Update. The returned slice is the caller's to keep.
func (r *ConferenceRepository) Sessions() []schedule.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions, _ := r.sessions.Get()
	return slices.Clone(sessions)
}

// Favorites returns the cached favorite sessions.
func (r *ConferenceRepository) Favorites() []schedule.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	favorites, _ := r.favorites.Get()
	return slices.Clone(favorites)
}

// Votes returns the cached vote list.
func (r *ConferenceRepository) Votes() []schedule.Vote {
	r.mu.RLock()
	defer r.mu.RUnlock()
	votes, _ := r.votes.Get()
	return slices.Clone(votes)
}

// Rating returns the cached rating for a session, if any. When duplicate
// votes exist the first one wins until the next Update reconciles them.
func (r *ConferenceRepository) Rating(sessionID string) (schedule.Rating, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	votes, _ := r.votes.Get()
	for _, v := range votes {
		if v.SessionID == sessionID {
			return v.Rating, true
		}
	}
	return 0, false
}

// IsFavorite reports whether the session is in the cached favorites.
func (r *ConferenceRepository) IsFavorite(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	favorites, _ := r.favorites.Get()
	for _, s := range favorites {
		if s.ID == sessionID {
			return true
		}
	}
	return false
}

// Session looks a session up in the cached schedule.
func (r *ConferenceRepository) Session(sessionID string) (schedule.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionLocked(sessionID)
}

// UserID returns the verified voting code, or "" when not logged in.
func (r *ConferenceRepository) UserID() string {
	id, _ := r.currentUser()
	return id
}

// LoggedIn reports whether a verified voting code is present.
func (r *ConferenceRepository) LoggedIn() bool {
	_, ok := r.currentUser()
	return ok
}

// PrivacyPolicyAccepted reports the persisted acceptance flag.
func (r *ConferenceRepository) PrivacyPolicyAccepted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.privacy.Get()
}

// RegisterRefreshListener appends fn to the refresh listeners. Listeners run
// synchronously on the goroutine that performed the triggering operation, in
// registration order.
func (r *ConferenceRepository) RegisterRefreshListener(fn func()) {
	r.listeners.Register(fn)
}

func (r *ConferenceRepository) currentUser() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.userID.Get()
	return id, ok && id != ""
}

func (r *ConferenceRepository) sessionLocked(id string) (schedule.Session, bool) {
	sessions, _ := r.sessions.Get()
	for _, s := range sessions {
		if s.ID == id {
			return s, true
		}
	}
	return schedule.Session{}, false
}

// snapshot is the cached triple in comparable form.
type snapshot struct {
	Sessions  []schedule.Session `json:"sessions"`
	Favorites []schedule.Session `json:"favorites"`
	Votes     []schedule.Vote    `json:"votes"`
}

func (r *ConferenceRepository) snapshotLocked() snapshot {
	sessions, _ := r.sessions.Get()
	favorites, _ := r.favorites.Get()
	votes, _ := r.votes.Get()
	return snapshot{Sessions: sessions, Favorites: favorites, Votes: votes}
}

// equal compares by serialized value with nil and empty slices treated
// alike, so a never-synchronized cache matches an empty payload.
func (s snapshot) equal(other snapshot) bool {
	a, errA := json.Marshal(s.normalized())
	b, errB := json.Marshal(other.normalized())
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func (s snapshot) normalized() snapshot {
	if s.Sessions == nil {
		s.Sessions = []schedule.Session{}
	}
	if s.Favorites == nil {
		s.Favorites = []schedule.Session{}
	}
	if s.Votes == nil {
		s.Votes = []schedule.Vote{}
	}
	return s
}
