package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/confsync/confsync/internal/logger"
)

const (
	stringBucket  = "strings"
	booleanBucket = "booleans"
)

// Bolt is a Store backed by a bbolt database. Unlike the file store it never
// rewrites the whole document, so it suits caches that grow beyond a handful
// of keys or see writes from several goroutines.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the bbolt-backed store at path.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, errors.New("prefs db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open prefs db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{stringBucket, booleanBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Bolt) GetString(key string) string {
	var value string
	err := b.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket([]byte(stringBucket)).Get([]byte(key)); raw != nil {
			value = string(raw)
		}
		return nil
	})
	if err != nil {
		logger.WithComponent("prefs").Warnf("read %s: %v", key, err)
	}
	return value
}

func (b *Bolt) PutString(key, value string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(stringBucket)).Put([]byte(key), []byte(value))
	})
}

func (b *Bolt) GetBoolean(key string, def bool) bool {
	value := def
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(booleanBucket)).Get([]byte(key))
		if raw == nil {
			return nil
		}
		parsed, err := strconv.ParseBool(string(raw))
		if err != nil {
			// Corrupt value counts as absent.
			return nil
		}
		value = parsed
		return nil
	})
	if err != nil {
		logger.WithComponent("prefs").Warnf("read %s: %v", key, err)
	}
	return value
}

func (b *Bolt) PutBoolean(key string, value bool) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(booleanBucket)).Put([]byte(key), []byte(strconv.FormatBool(value)))
	})
}
