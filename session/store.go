package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned when no user is logged in.
var ErrNoSession = errors.New("no active session")

// ErrRedisUnavailable wraps Redis failures from RedisStore.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrStorageUnavailable wraps filesystem failures from FileStore.
var ErrStorageUnavailable = errors.New("session storage unavailable")

// Store holds the single authenticated user record.
//
// Save replaces the whole record (login), Replace merges a Patch into the
// existing one (successful mutation), Clear removes it (logout, account
// deactivation). Load and Replace return ErrNoSession when nothing is stored.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, r Record) error
	Replace(ctx context.Context, p Patch) (Record, error)
	Clear(ctx context.Context) error
}

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	record *Record
	now    func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Load(context.Context) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return Record{}, ErrNoSession
	}
	return *s.record, nil
}

func (s *MemoryStore) Save(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = &r
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, p Patch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return Record{}, ErrNoSession
	}
	next := applyPatch(*s.record, p, s.now())
	s.record = &next
	return next, nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}

func applyPatch(r Record, p Patch, now time.Time) Record {
	if p.Empty() {
		return r
	}
	r.User = p.Apply(r.User)
	r.UpdatedAt = now.Unix()
	return r
}
