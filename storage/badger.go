package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-hclog"

	"qcache/config"
)

const gcInterval = 5 * time.Minute

// BadgerStorage implements Storage on BadgerDB. Keys and values live under
// the cache files directory; the value log lives under the cache
// write-ahead log directory.
type BadgerStorage struct {
	db     *badger.DB
	logger hclog.Logger
	stop   chan struct{}
	done   chan struct{}
}

// NewBadgerStorage opens the cache store at the resolved cache paths.
func NewBadgerStorage(paths config.Paths, logger hclog.Logger) (*BadgerStorage, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	opts := badger.DefaultOptions(paths.CacheFiles).
		WithValueDir(paths.CacheAof).
		WithLogger(nil).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &BadgerStorage{
		db:     db,
		logger: logger.Named("cache"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.runGC()

	return s, nil
}

// runGC runs the value log garbage collector periodically
func (s *BadgerStorage) runGC() {
	defer close(s.done)
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(0.7); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("value log gc failed", "error", err)
			}
		}
	}
}

// Set stores a key-value pair with optional TTL
func (s *BadgerStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get retrieves a value by key
func (s *BadgerStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		found = true
		value, err = item.ValueCopy(nil)
		return err
	})

	return value, found, err
}

// Delete removes one or more keys
func (s *BadgerStorage) Delete(ctx context.Context, keys ...string) (int, error) {
	deleted := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if _, err := txn.Get([]byte(key)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})

	return deleted, err
}

// Exists checks if a key exists
func (s *BadgerStorage) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			exists = true
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})

	return exists, err
}

// Keys returns up to limit keys starting with prefix, in key order. A limit
// of zero or less means no limit.
func (s *BadgerStorage) Keys(ctx context.Context, prefix string, limit int) ([]string, error) {
	var keys []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(keys) >= limit {
				break
			}
			key := string(it.Item().Key())
			if !strings.HasPrefix(key, prefix) {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})

	return keys, err
}

// Checkpoint writes a full backup of the store to path. The file is
// replaced atomically.
func (s *BadgerStorage) Checkpoint(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	since, err := s.db.Backup(tmp, 0)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("checkpoint rename: %w", err)
	}

	s.logger.Info("wrote checkpoint", "path", path, "version", since)
	return nil
}

// Restore loads a checkpoint written by Checkpoint into the store.
func (s *BadgerStorage) Restore(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := s.db.Load(file, 256); err != nil {
		return fmt.Errorf("restore checkpoint: %w", err)
	}
	s.logger.Info("restored checkpoint", "path", path)
	return nil
}

// Close stops background work and closes the database
func (s *BadgerStorage) Close() error {
	close(s.stop)
	<-s.done
	return s.db.Close()
}
