// Package lease guards a refresh against concurrent execution.
//
// A lease is a named lock with a TTL. The holder proves ownership with the
// token returned by Acquire, so an expired holder cannot release a lease that
// has since been taken by someone else.
package lease

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrHeld is returned by Acquire when another holder owns the lease.
var ErrHeld = errors.New("lease held")

// ErrLost is returned by Extend when token no longer owns the lease.
var ErrLost = errors.New("lease lost")

// Locker acquires and releases named leases.
type Locker interface {
	// Acquire takes the lease for ttl. Returns ErrHeld if it is taken.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, err error)

	// Release frees the lease if token still owns it. Releasing a lease that
	// expired or changed hands is a no-op.
	Release(ctx context.Context, name, token string) error

	// Extend resets the lease expiry to ttl from now. Returns ErrLost if
	// token no longer owns the lease.
	Extend(ctx context.Context, name, token string, ttl time.Duration) error
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
