// Package confmock implements a small stand-in for the production conference
// service: the same HTTP surface the sync layer talks to, backed by a JSON
// fixture file for the schedule and in-memory per-user state for favorites
// and votes. It exists so the CLI and integration tests run without the real
// backend.
package confmock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"

	"github.com/confsync/confsync/internal/schedule"
)

// Conference holds the fixture-level settings of the mocked event.
type Conference struct {
	Name           string    `json:"name" validate:"required"`
	VotingClosesAt time.Time `json:"votingClosesAt" validate:"required"`
}

// Document is the persisted fixture: the schedule being served, the event
// settings, and the voting codes the service accepts. Per-user favorites and
// votes are runtime state and never written here.
type Document struct {
	Conference Conference         `json:"conference"`
	Sessions   []schedule.Session `json:"sessions" validate:"dive"`
	Codes      []string           `json:"codes"`
}

// ApplyDefaults sets fallback values after decode.
func (d *Document) ApplyDefaults() {
	if d.Sessions == nil {
		d.Sessions = []schedule.Session{}
	}
	if d.Codes == nil {
		d.Codes = []string{}
	}
}

// Equal compares two fixture documents by serialized value.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	a, errA := json.Marshal(d)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// FixtureStore handles disk persistence and watching of the fixture file.
type FixtureStore struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	logger    *log.Logger
	mu        sync.Mutex
}

// NewFixtureStore creates a store for the given fixture file path.
func NewFixtureStore(path string) (*FixtureStore, error) {
	if path == "" {
		return nil, errors.New("fixture file path is required")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" || dir == "." {
		dir = "."
	}

	logger := log.New(os.Stdout, "[fixture] ", log.LstdFlags)
	v := validator.New()
	return &FixtureStore{path: path, dir: dir, base: base, validator: v, logger: logger}, nil
}

// Load reads the fixture file, parses and validates it.
func (s *FixtureStore) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUnlocked()
}

func (s *FixtureStore) loadUnlocked() (*Document, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open fixture file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode fixture file: %w", err)
	}

	doc.ApplyDefaults()

	if s.validator != nil {
		if err := s.validator.Struct(&doc); err != nil {
			return nil, fmt.Errorf("validate fixture file: %w", err)
		}
	}

	return &doc, nil
}

// Save validates and writes the fixture atomically to disk.
func (s *FixtureStore) Save(doc *Document) error {
	if doc == nil {
		return errors.New("fixture document is nil")
	}
	if s.validator != nil {
		if err := s.validator.Struct(doc); err != nil {
			return fmt.Errorf("validate before save: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUnlocked(doc)
}

func (s *FixtureStore) saveUnlocked(doc *Document) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, s.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), s.path); err != nil {
		return fmt.Errorf("replace fixture file: %w", err)
	}

	return nil
}

// StartWatcher reloads state when the fixture file changes on disk. It
// watches the parent directory (not the file) so atomic replace sequences
// (temp+rename) are still observed, filters events by basename and debounces
// them to avoid double reloads on write+chmod/rename cycles. The caller owns
// the provided context: cancel it to stop the goroutine and close the
// watcher cleanly.
func (s *FixtureStore) StartWatcher(ctx context.Context, state *State) error {
	onChange := s.MakeWatcherCallback(state)
	if onChange == nil {
		return errors.New("onChange callback is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		// debounce coalesces bursty fsnotify events into a single reload.
		var debounce *time.Timer
		scheduleReload := func() {
			if debounce != nil {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
			}
			debounce = time.AfterFunc(200*time.Millisecond, onChange)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != s.base {
					continue
				}
				// Write/Create/Chmod cover normal edits and atomic replace;
				// Remove/Rename means the file was swapped, wait for the
				// follow-up Create.
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod|fsnotify.Remove|fsnotify.Rename) != 0 {
					scheduleReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Printf("watcher error: %v", err)
			}
		}
	}()

	return nil
}

// MakeWatcherCallback returns a callback that reloads the fixture from disk
// and swaps it into state when the content actually changed. Own saves come
// back through the watcher too; the equality check turns those into no-ops.
func (s *FixtureStore) MakeWatcherCallback(state *State) func() {
	return func() {
		diskDoc, err := s.Load()
		if err != nil {
			s.logger.Printf("fixture reload failed: %v", err)
			return
		}

		current := state.Fixture()
		if diskDoc.Equal(&current) {
			return
		}

		state.ReplaceFixture(*diskDoc)
		s.logger.Printf("fixture reloaded: %d sessions, %d codes", len(diskDoc.Sessions), len(diskDoc.Codes))
	}
}
