package fakebackend

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/gestionlocal/cuenta/internal/stores"
)

// PinStore holds the single active PIN challenge. *stores.PinStore keeps it
// in Redis; the default keeps it in memory.
type PinStore interface {
	Save(ctx context.Context, record *stores.PinRecord, ttl time.Duration) error
	Consume(ctx context.Context, hash [32]byte) (*stores.PinRecord, error)
}

type memoryPins struct {
	now         func() time.Time
	maxAttempts int

	mu      sync.Mutex
	rec     *stores.PinRecord
	expires time.Time
}

// newMemoryPins returns the in-memory store. maxAttempts <= 0 allows
// unlimited wrong guesses.
func newMemoryPins(now func() time.Time, maxAttempts int) *memoryPins {
	return &memoryPins{now: now, maxAttempts: maxAttempts}
}

func (m *memoryPins) Save(_ context.Context, record *stores.PinRecord, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.rec = &cp
	m.expires = m.now().Add(ttl)
	return nil
}

func (m *memoryPins) Consume(_ context.Context, hash [32]byte) (*stores.PinRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.rec
	if rec == nil {
		return nil, stores.ErrPinNotFound
	}
	if m.now().After(m.expires) {
		m.rec = nil
		return nil, stores.ErrPinNotFound
	}
	if subtle.ConstantTimeCompare(rec.Hash[:], hash[:]) != 1 {
		rec.Attempts++
		if m.maxAttempts > 0 && int(rec.Attempts) >= m.maxAttempts {
			m.rec = nil
			return nil, stores.ErrPinAttemptsExceeded
		}
		return nil, stores.ErrPinMismatch
	}
	m.rec = nil
	return rec, nil
}

// pinRejected reports whether err is an ordinary wrong or stale PIN rather
// than a storage failure.
func pinRejected(err error) bool {
	return errors.Is(err, stores.ErrPinNotFound) ||
		errors.Is(err, stores.ErrPinMismatch) ||
		errors.Is(err, stores.ErrPinAttemptsExceeded)
}
