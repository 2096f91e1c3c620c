package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockUpdater implements Updater for testing
type mockUpdater struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockUpdater) Update(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *mockUpdater) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewSyncScheduler(t *testing.T) {
	repo := &mockUpdater{}

	scheduler := NewSyncScheduler(repo, 30*time.Second)

	if scheduler == nil {
		t.Fatal("expected scheduler to be created")
	}
	if scheduler.interval != 30*time.Second {
		t.Errorf("expected interval to be 30s, got %v", scheduler.interval)
	}
}

func TestSyncScheduler_LastResult_Empty(t *testing.T) {
	scheduler := NewSyncScheduler(&mockUpdater{}, 30*time.Second)

	at, err := scheduler.LastResult()
	if !at.IsZero() {
		t.Errorf("expected zero time before any refresh, got %v", at)
	}
	if err != nil {
		t.Errorf("expected nil error before any refresh, got %v", err)
	}
}

func TestSyncScheduler_Tick_Success(t *testing.T) {
	repo := &mockUpdater{}
	scheduler := NewSyncScheduler(repo, 30*time.Second)

	scheduler.tick(context.Background())

	if repo.callCount() != 1 {
		t.Errorf("expected 1 update call, got %d", repo.callCount())
	}
	at, err := scheduler.LastResult()
	if at.IsZero() {
		t.Error("expected last sync time to be recorded")
	}
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestSyncScheduler_Tick_Failure(t *testing.T) {
	refreshErr := errors.New("service unreachable")
	repo := &mockUpdater{err: refreshErr}
	scheduler := NewSyncScheduler(repo, 30*time.Second)

	scheduler.tick(context.Background())

	at, err := scheduler.LastResult()
	if at.IsZero() {
		t.Error("expected the failed refresh to be recorded too")
	}
	if !errors.Is(err, refreshErr) {
		t.Errorf("expected the refresh error to be recorded, got %v", err)
	}
}

func TestSyncScheduler_Start_ContextCancel(t *testing.T) {
	repo := &mockUpdater{}
	scheduler := NewSyncScheduler(repo, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	scheduler.Start(ctx)

	// Let it tick a few times
	time.Sleep(70 * time.Millisecond)

	cancel()

	// Give time to stop
	time.Sleep(50 * time.Millisecond)
	stopped := repo.callCount()

	if stopped == 0 {
		t.Error("expected at least one refresh before cancellation")
	}

	// No further refreshes after cancellation
	time.Sleep(60 * time.Millisecond)
	if repo.callCount() != stopped {
		t.Errorf("expected no refreshes after cancel, got %d more", repo.callCount()-stopped)
	}
}

// TestSyncScheduler_ConcurrentTick simulates ticks taking longer than the
// interval. Run with -race.
func TestSyncScheduler_ConcurrentTick(t *testing.T) {
	repo := &mockUpdater{}
	scheduler := NewSyncScheduler(repo, 30*time.Second)

	var wg sync.WaitGroup
	const numTicks = 20

	ctx := context.Background()
	for i := 0; i < numTicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.tick(ctx)
		}()
	}

	wg.Wait()

	if repo.callCount() != numTicks {
		t.Errorf("expected %d update calls, got %d", numTicks, repo.callCount())
	}
}
