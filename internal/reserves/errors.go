package reserves

import (
	"errors"
	"fmt"
)

var (
	ErrPoolNotFound      = errors.New("pool not found")
	ErrUpstream          = errors.New("upstream unavailable")
	ErrInconsistentState = errors.New("inconsistent snapshot state")
)

// SyncError reports which stage of a pool synchronization failed. It wraps
// one of the package sentinels together with the underlying cause.
type SyncError struct {
	PoolID int64
	Stage  string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync pool %d: %s: %v", e.PoolID, e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
