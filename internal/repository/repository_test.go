package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confsync/confsync/internal/prefs"
	"github.com/confsync/confsync/internal/remote"
	"github.com/confsync/confsync/internal/schedule"
)

// fakeService is a scriptable remote.Service double recording every call.
type fakeService struct {
	data   schedule.AllData
	getErr error

	verifyErr     error
	postVoteErr   error
	deleteVoteErr error
	postFavErr    error
	deleteFavErr  error

	fetches      []string // user ids seen by GetAll
	verified     []string
	postedVotes  []schedule.Vote
	deletedVotes []schedule.Vote
	postedFavs   []schedule.Favorite
	deletedFavs  []schedule.Favorite
}

func (f *fakeService) GetAll(_ context.Context, userID string) (schedule.AllData, error) {
	f.fetches = append(f.fetches, userID)
	if f.getErr != nil {
		return schedule.AllData{}, f.getErr
	}
	return f.data, nil
}

func (f *fakeService) VerifyCode(_ context.Context, code string) error {
	f.verified = append(f.verified, code)
	return f.verifyErr
}

func (f *fakeService) PostVote(_ context.Context, vote schedule.Vote, _ string) error {
	f.postedVotes = append(f.postedVotes, vote)
	return f.postVoteErr
}

func (f *fakeService) DeleteVote(_ context.Context, vote schedule.Vote, _ string) error {
	f.deletedVotes = append(f.deletedVotes, vote)
	return f.deleteVoteErr
}

func (f *fakeService) PostFavorite(_ context.Context, fav schedule.Favorite, _ string) error {
	f.postedFavs = append(f.postedFavs, fav)
	return f.postFavErr
}

func (f *fakeService) DeleteFavorite(_ context.Context, fav schedule.Favorite, _ string) error {
	f.deletedFavs = append(f.deletedFavs, fav)
	return f.deleteFavErr
}

// serverData is the personalized payload used across tests: two sessions,
// the first favorited and rated.
func serverData() schedule.AllData {
	start := time.Date(2026, 5, 21, 9, 0, 0, 0, time.UTC)
	return schedule.AllData{
		Sessions: []schedule.Session{
			{ID: "s1", Title: "Opening Keynote", StartsAt: start, EndsAt: start.Add(time.Hour), IsFavorite: true},
			{ID: "s2", Title: "Generics in Practice", StartsAt: start.Add(time.Hour), EndsAt: start.Add(2 * time.Hour)},
		},
		Votes: []schedule.Vote{{SessionID: "s1", Rating: schedule.RatingUp}},
	}
}

func login(t *testing.T, repo *ConferenceRepository) {
	t.Helper()
	require.NoError(t, repo.VerifyAndSetCode(context.Background(), "code-1"))
}

func countNotifications(repo *ConferenceRepository) *int {
	n := new(int)
	repo.RegisterRefreshListener(func() { *n++ })
	return n
}

func TestUpdate_ChangedDataNotifiesOnce(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)

	var seenSessions, seenFavorites []schedule.Session
	var seenVotes []schedule.Vote
	notified := 0
	repo.RegisterRefreshListener(func() {
		notified++
		seenSessions = repo.Sessions()
		seenFavorites = repo.Favorites()
		seenVotes = repo.Votes()
	})

	require.NoError(t, repo.Update(context.Background()))

	assert.Equal(t, 1, notified)
	require.Len(t, repo.Sessions(), 2)
	require.Len(t, repo.Favorites(), 1)
	assert.Equal(t, "s1", repo.Favorites()[0].ID)
	require.Len(t, repo.Votes(), 1)

	// Listeners must observe the fully swapped triple, never a mix.
	assert.Equal(t, repo.Sessions(), seenSessions)
	assert.Equal(t, repo.Favorites(), seenFavorites)
	assert.Equal(t, repo.Votes(), seenVotes)
}

func TestUpdate_UnchangedDataStaysQuiet(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	notified := countNotifications(repo)

	require.NoError(t, repo.Update(context.Background()))
	require.NoError(t, repo.Update(context.Background()))

	assert.Equal(t, 1, *notified, "second sync with identical data must not notify")
}

func TestUpdate_EmptyPayloadOnFreshCache(t *testing.T) {
	svc := &fakeService{}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	notified := countNotifications(repo)

	require.NoError(t, repo.Update(context.Background()))

	assert.Zero(t, *notified, "never-synchronized cache equals an empty payload")
	assert.Empty(t, repo.Sessions())
}

func TestUpdate_FetchFailureLeavesCacheAlone(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	require.NoError(t, repo.Update(context.Background()))
	notified := countNotifications(repo)

	before := repo.Sessions()
	svc.getErr = errors.New("connection reset")

	err := repo.Update(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.Equal(t, before, repo.Sessions())
	assert.Len(t, repo.Favorites(), 1)
	assert.Len(t, repo.Votes(), 1)
	assert.Zero(t, *notified)
}

func TestUpdate_SendsUserID(t *testing.T) {
	svc := &fakeService{}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)

	require.NoError(t, repo.Update(context.Background()))
	login(t, repo)
	require.NoError(t, repo.Update(context.Background()))

	require.Len(t, svc.fetches, 2)
	assert.Empty(t, svc.fetches[0], "anonymous before login")
	assert.Equal(t, "code-1", svc.fetches[1])
}

func TestVerifyAndSetCode(t *testing.T) {
	t.Run("rejected code", func(t *testing.T) {
		svc := &fakeService{verifyErr: &remote.StatusError{Status: 406}}
		repo := NewConferenceRepository(prefs.NewMemory(), svc)
		notified := countNotifications(repo)

		err := repo.VerifyAndSetCode(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrIncorrectCode)
		assert.False(t, repo.LoggedIn())
		assert.Empty(t, repo.UserID())
		assert.Zero(t, *notified)
	})

	t.Run("transport failure", func(t *testing.T) {
		svc := &fakeService{verifyErr: errors.New("timeout")}
		repo := NewConferenceRepository(prefs.NewMemory(), svc)

		err := repo.VerifyAndSetCode(context.Background(), "abc")
		assert.ErrorIs(t, err, ErrVerificationFailed)
		assert.False(t, repo.LoggedIn())
	})

	t.Run("accepted code becomes user id", func(t *testing.T) {
		svc := &fakeService{}
		repo := NewConferenceRepository(prefs.NewMemory(), svc)
		notified := countNotifications(repo)

		require.NoError(t, repo.VerifyAndSetCode(context.Background(), "code-7"))
		assert.True(t, repo.LoggedIn())
		assert.Equal(t, "code-7", repo.UserID())
		assert.Equal(t, []string{"code-7"}, svc.verified)
		assert.Zero(t, *notified, "login does not notify")
	})
}

func TestAddRating_Unauthorized(t *testing.T) {
	svc := &fakeService{}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	notified := countNotifications(repo)

	err := repo.AddRating(context.Background(), "s1", schedule.RatingUp)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, svc.postedVotes, "no network call without a user id")
	assert.Empty(t, repo.Votes())
	assert.Zero(t, *notified)
}

func TestAddRating_AppendsAfterConfirmation(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	login(t, repo)
	require.NoError(t, repo.Update(context.Background()))
	notified := countNotifications(repo)

	require.NoError(t, repo.AddRating(context.Background(), "s2", schedule.RatingOK))

	assert.Equal(t, 1, *notified)
	require.Len(t, svc.postedVotes, 1)
	assert.Equal(t, schedule.Vote{SessionID: "s2", Rating: schedule.RatingOK}, svc.postedVotes[0])
	require.Len(t, repo.Votes(), 2)

	rating, ok := repo.Rating("s2")
	require.True(t, ok)
	assert.Equal(t, schedule.RatingOK, rating)
}

func TestAddRating_DoesNotDeduplicate(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	login(t, repo)
	require.NoError(t, repo.Update(context.Background()))

	require.NoError(t, repo.AddRating(context.Background(), "s2", schedule.RatingOK))
	require.NoError(t, repo.AddRating(context.Background(), "s2", schedule.RatingUp))

	votes := repo.Votes()
	var forS2 []schedule.Vote
	for _, v := range votes {
		if v.SessionID == "s2" {
			forS2 = append(forS2, v)
		}
	}
	require.Len(t, forS2, 2, "a second vote is appended, not merged")

	// The first cached vote wins lookups until the next sync reconciles.
	rating, ok := repo.Rating("s2")
	require.True(t, ok)
	assert.Equal(t, schedule.RatingOK, rating)
}

func TestAddRating_FailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"window not open", &remote.StatusError{Status: remote.StatusTooEarly}, ErrTooEarlyVote},
		{"window closed", &remote.StatusError{Status: remote.StatusTooLate}, ErrTooLateVote},
		{"server error", &remote.StatusError{Status: 500}, ErrCannotPostVote},
		{"transport failure", errors.New("connection refused"), ErrCannotPostVote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{data: serverData()}
			repo := NewConferenceRepository(prefs.NewMemory(), svc)
			login(t, repo)
			require.NoError(t, repo.Update(context.Background()))
			notified := countNotifications(repo)

			svc.postVoteErr = tt.err
			err := repo.AddRating(context.Background(), "s2", schedule.RatingUp)

			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, repo.Votes(), 1, "failed vote must not reach the cache")
			assert.Equal(t, 1, *notified, "failed mutations still notify once")
		})
	}
}

func TestRemoveRating(t *testing.T) {
	t.Run("drops every vote for the session", func(t *testing.T) {
		svc := &fakeService{data: serverData()}
		repo := NewConferenceRepository(prefs.NewMemory(), svc)
		login(t, repo)
		require.NoError(t, repo.Update(context.Background()))
		require.NoError(t, repo.AddRating(context.Background(), "s1", schedule.RatingOK)) // duplicate for s1
		notified := countNotifications(repo)

		require.NoError(t, repo.RemoveRating(context.Background(), "s1"))

		assert.Equal(t, 1, *notified)
		assert.Empty(t, repo.Votes())
		_, ok := repo.Rating("s1")
		assert.False(t, ok)
		require.Len(t, svc.deletedVotes, 1)
		assert.Equal(t, "s1", svc.deletedVotes[0].SessionID)
		assert.Zero(t, svc.deletedVotes[0].Rating, "placeholder vote carries no rating")
	})

	t.Run("failure keeps the vote", func(t *testing.T) {
		svc := &fakeService{data: serverData()}
		repo := NewConferenceRepository(prefs.NewMemory(), svc)
		login(t, repo)
		require.NoError(t, repo.Update(context.Background()))
		notified := countNotifications(repo)

		svc.deleteVoteErr = &remote.StatusError{Status: 500}
		err := repo.RemoveRating(context.Background(), "s1")

		assert.ErrorIs(t, err, ErrCannotDeleteVote)
		assert.Len(t, repo.Votes(), 1)
		assert.Equal(t, 1, *notified)
	})

	t.Run("unauthorized", func(t *testing.T) {
		svc := &fakeService{}
		repo := NewConferenceRepository(prefs.NewMemory(), svc)
		notified := countNotifications(repo)

		err := repo.RemoveRating(context.Background(), "s1")
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Empty(t, svc.deletedVotes)
		assert.Zero(t, *notified)
	})
}

func TestSetFavorite_AddsKnownSession(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	login(t, repo)
	require.NoError(t, repo.Update(context.Background()))
	notified := countNotifications(repo)

	require.NoError(t, repo.SetFavorite(context.Background(), "s2", true))

	assert.Equal(t, 1, *notified)
	assert.True(t, repo.IsFavorite("s2"))
	require.Len(t, repo.Favorites(), 2)
	assert.Equal(t, "s2", repo.Favorites()[1].ID, "new favorite is appended")
	require.Len(t, svc.postedFavs, 1)
	assert.Equal(t, "s2", svc.postedFavs[0].SessionID)
}

func TestSetFavorite_UnknownSession(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	login(t, repo)
	require.NoError(t, repo.Update(context.Background()))
	notified := countNotifications(repo)

	err := repo.SetFavorite(context.Background(), "ghost", true)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, err, ErrUnauthorized, "kept for callers matching the historical kind")
	assert.Len(t, repo.Favorites(), 1, "favorites must stay untouched")
	assert.Equal(t, 1, *notified)
	assert.Len(t, svc.postedFavs, 1, "the service call happens before the local lookup")
}

func TestSetFavorite_Remove(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	login(t, repo)
	require.NoError(t, repo.Update(context.Background()))
	notified := countNotifications(repo)

	require.NoError(t, repo.SetFavorite(context.Background(), "s1", false))

	assert.Equal(t, 1, *notified)
	assert.False(t, repo.IsFavorite("s1"))
	assert.Empty(t, repo.Favorites())
	require.Len(t, svc.deletedFavs, 1)
	assert.Equal(t, "s1", svc.deletedFavs[0].SessionID)
}

func TestSetFavorite_RemoteFailure(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	login(t, repo)
	require.NoError(t, repo.Update(context.Background()))
	notified := countNotifications(repo)

	svc.postFavErr = &remote.StatusError{Status: 502}
	err := repo.SetFavorite(context.Background(), "s2", true)

	assert.ErrorIs(t, err, ErrCannotFavorite)
	assert.Len(t, repo.Favorites(), 1)
	assert.Equal(t, 1, *notified)
}

func TestAcceptPrivacyPolicy(t *testing.T) {
	store := prefs.NewMemory()
	svc := &fakeService{}
	repo := NewConferenceRepository(store, svc)
	notified := countNotifications(repo)

	assert.False(t, repo.PrivacyPolicyAccepted())
	repo.AcceptPrivacyPolicy()
	assert.True(t, repo.PrivacyPolicyAccepted())
	assert.Zero(t, *notified)
	assert.Empty(t, svc.fetches)

	// The flag survives a restart on the same store.
	again := NewConferenceRepository(store, svc)
	assert.True(t, again.PrivacyPolicyAccepted())
}

func TestRepository_ReadsPersistedStateOffline(t *testing.T) {
	store := prefs.NewMemory()
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(store, svc)
	login(t, repo)
	require.NoError(t, repo.Update(context.Background()))

	offline := &fakeService{getErr: errors.New("no network")}
	restarted := NewConferenceRepository(store, offline)

	assert.Empty(t, offline.fetches, "reads never touch the network")
	assert.Len(t, restarted.Sessions(), 2)
	assert.Len(t, restarted.Favorites(), 1)
	assert.Len(t, restarted.Votes(), 1)
	assert.True(t, restarted.LoggedIn())
}

func TestRepository_CorruptCacheReadsAsEmpty(t *testing.T) {
	store := prefs.NewMemory()
	require.NoError(t, store.PutString(keySessions, "{definitely not json"))
	require.NoError(t, store.PutString(keyVotes, "42"))

	repo := NewConferenceRepository(store, &fakeService{})

	assert.Empty(t, repo.Sessions())
	assert.Empty(t, repo.Votes())
	_, ok := repo.Rating("s1")
	assert.False(t, ok)
}

func TestSessionLookup(t *testing.T) {
	svc := &fakeService{data: serverData()}
	repo := NewConferenceRepository(prefs.NewMemory(), svc)
	require.NoError(t, repo.Update(context.Background()))

	s, ok := repo.Session("s2")
	require.True(t, ok)
	assert.Equal(t, "Generics in Practice", s.Title)

	_, ok = repo.Session("missing")
	assert.False(t, ok)
}
