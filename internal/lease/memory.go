package lease

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Acquire takes the lease if it is free or expired.
func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[name]; ok && now.Before(e.expiresAt) {
		return "", ErrHeld
	}

	token := newToken()
	l.entries[name] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

// Release frees the lease when token still owns it.
func (l *MemoryLocker) Release(_ context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[name]; ok && e.token == token {
		delete(l.entries, name)
	}
	return nil
}

// Extend pushes the expiry out when token still owns an unexpired lease.
func (l *MemoryLocker) Extend(_ context.Context, name, token string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[name]
	if !ok || e.token != token || !now.Before(e.expiresAt) {
		return ErrLost
	}
	e.expiresAt = now.Add(ttl)
	l.entries[name] = e
	return nil
}
