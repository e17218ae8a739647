// Package cache provides a disk-backed TTL cache for fetched sales records,
// keyed by (source, date range). Every failure mode reads as a cache miss:
// the caller re-fetches and the cache heals on the next write.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"

	"saleschecker/pkg/marketplace"
)

const (
	// DefaultTTL mirrors how quickly marketplace order data goes stale.
	DefaultTTL = 2 * time.Hour

	fileExt = ".msgpack"
	keyDate = "20060102"
)

// Store is a disk-backed TTL cache. Entry freshness is judged by file
// modification time, so a Put refreshes the clock without touching any
// bookkeeping. Writes go through a temp file and rename so readers never
// observe a half-written entry.
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// Option configures a new Store.
type Option func(*Store)

// WithTTL overrides the entry lifetime. Zero or negative keeps the default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the wall clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Store rooted at dir. The directory is created lazily on
// first write.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// keyFor builds the entry filename for a (source, range) key. Source names
// come from user config, so they are sanitised into a filesystem-safe token.
func (s *Store) keyFor(source string, start, end time.Time) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, source)
	name := fmt.Sprintf("%s_%s_%s%s", clean, start.Format(keyDate), end.Format(keyDate), fileExt)
	return filepath.Join(s.dir, name)
}

// Get returns the cached records for the key if a fresh entry exists.
// Missing files, expired entries, and undecodable payloads are all misses.
func (s *Store) Get(source string, start, end time.Time) ([]marketplace.SalesRecord, bool) {
	path := s.keyFor(source, start, end)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if s.now().Sub(info.ModTime()) >= s.ttl {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logx.Errorf("cache: read %s: %v", path, err)
		return nil, false
	}
	var records []marketplace.SalesRecord
	if err := msgpack.Unmarshal(data, &records); err != nil {
		logx.Errorf("cache: corrupt entry %s: %v", path, err)
		return nil, false
	}
	return records, true
}

// Put stores records under the key, resetting its TTL. Empty record sets are
// not written; an empty fetch should not mask a later non-empty one for the
// whole TTL.
func (s *Store) Put(source string, start, end time.Time, records []marketplace.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cache: create dir: %w", err)
	}

	data, err := msgpack.Marshal(records)
	if err != nil {
		return fmt.Errorf("cache: encode records: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: close entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.keyFor(source, start, end)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: publish entry: %w", err)
	}
	return nil
}

// Clear removes every cache entry, returning the number removed.
func (s *Store) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache: list entries: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("cache: remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
