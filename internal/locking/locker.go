// Package locking serializes check-then-write sequences per key and retries
// transient persistence conflicts.
package locking

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrLockContention      = errors.New("lock_contention")
	ErrStaleWrite          = errors.New("stale_write")
	ErrPersistenceConflict = errors.New("persistence_conflict")
)

// Locker grants exclusive access to a key until release is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func TechKey(techProfileID fmt.Stringer) string {
	return "booking:tech:" + techProfileID.String()
}

func UserKey(userID fmt.Stringer) string {
	return "ledger:user:" + userID.String()
}
