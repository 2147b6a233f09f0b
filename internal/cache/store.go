package cache

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guiyumin/vfeed/internal/extractor"
	"github.com/spf13/afero"
)

// DefaultFile is the snapshot file name used when none is configured
const DefaultFile = "videos.json"

// Snapshot is the record list served to readers together with the time it
// was fetched. A Snapshot is never modified after it is published.
type Snapshot struct {
	FetchedAt time.Time
	Records   []extractor.Record
}

// Empty reports whether the snapshot has never been filled
func (s Snapshot) Empty() bool {
	return s.FetchedAt.IsZero() && len(s.Records) == 0
}

// Store owns the in-memory snapshot and its durable copy.
//
// Reads are lock-free; Replace and Persist are serialized by mu.
type Store struct {
	fs   afero.Fs
	path string
	now  func() time.Time

	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used to stamp replaced snapshots
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store backed by path on fs. Call Load to pick up a
// snapshot left by a previous run.
func New(fs afero.Fs, path string, opts ...Option) *Store {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFile
	}
	s := &Store{
		fs:   fs,
		path: filepath.Clean(path),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&Snapshot{Records: []extractor.Record{}})
	return s
}

// Path returns the durable snapshot path
func (s *Store) Path() string {
	return s.path
}

// Current returns the present snapshot
func (s *Store) Current() Snapshot {
	return *s.current.Load()
}

// IsStale reports whether the snapshot is at least ttl old at now.
// A zero or negative ttl is always stale.
func (s *Store) IsStale(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(s.Current().FetchedAt) >= ttl
}

// Replace publishes records as the new snapshot, stamped with the current time
func (s *Store) Replace(records []extractor.Record) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = []extractor.Record{}
	}
	snap := &Snapshot{
		FetchedAt: s.now(),
		Records:   records,
	}
	s.current.Store(snap)
	return *snap
}

// restore publishes a snapshot read from disk
func (s *Store) restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&snap)
}
