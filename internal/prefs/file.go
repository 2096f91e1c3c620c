package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/confsync/confsync/internal/logger"
)

// fileDocument is the persisted JSON structure of a File store.
type fileDocument struct {
	Strings  map[string]string `json:"strings"`
	Booleans map[string]bool   `json:"booleans"`
}

// File is a Store persisted as a single JSON document. The document is read
// once when the store opens; every Put rewrites it atomically (temp file +
// fsync + rename) so a crash mid-write never leaves a torn file behind.
type File struct {
	path string
	dir  string
	base string

	mu  sync.Mutex
	doc fileDocument
}

// OpenFile opens (or initializes) the file-backed store at path. A missing
// file starts empty; an unreadable or corrupt file is logged and also starts
// empty, so a damaged cache degrades to "nothing cached" instead of failing.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("prefs file path is required")
	}

	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}

	f := &File{
		path: path,
		dir:  dir,
		base: filepath.Base(path),
		doc:  fileDocument{Strings: map[string]string{}, Booleans: map[string]bool{}},
	}
	f.load()
	return f, nil
}

// load reads the document from disk. Caller must not hold the lock.
func (f *File) load() {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithComponent("prefs").Warnf("read %s: %v, starting empty", f.path, err)
		}
		return
	}

	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.WithComponent("prefs").Warnf("decode %s: %v, starting empty", f.path, err)
		return
	}
	if doc.Strings == nil {
		doc.Strings = map[string]string{}
	}
	if doc.Booleans == nil {
		doc.Booleans = map[string]bool{}
	}

	f.mu.Lock()
	f.doc = doc
	f.mu.Unlock()
}

func (f *File) GetString(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Strings[key]
}

func (f *File) PutString(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc.Strings[key] = value
	return f.saveLocked()
}

func (f *File) GetBoolean(key string, def bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.doc.Booleans[key]; ok {
		return v
	}
	return def
}

func (f *File) PutBoolean(key string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc.Booleans[key] = value
	return f.saveLocked()
}

// saveLocked writes the document atomically. Caller must hold the lock.
func (f *File) saveLocked() error {
	payload, err := json.MarshalIndent(f.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	tmpFile, err := os.CreateTemp(f.dir, f.base+".tmp-")
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

	if err := os.Rename(tmpFile.Name(), f.path); err != nil {
		return fmt.Errorf("replace prefs file: %w", err)
	}

	return nil
}
