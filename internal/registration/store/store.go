// Package store persists registration snapshots keyed by payment reference.
//
// Error contract: Get returns ErrNotFound when no entry exists for the
// reference, including when a stored entry is corrupted beyond parsing.
// A corrupted entry must read as absent, never as a failure, because the
// reconciliation fallback path treats absence as "no snapshot to fall
// back on" and proceeds gracefully.
package store

import (
	"context"

	"regpay/internal/registration"
	"regpay/internal/sentinel"
)

// ErrNotFound is returned when no snapshot exists for a reference.
var ErrNotFound = sentinel.ErrNotFound

// KeyPrefix namespaces snapshot keys in shared backends, mirroring the
// registration_<reference> layout the browser build used.
const KeyPrefix = "registration_"

// Key returns the namespaced storage key for a reference.
func Key(reference string) string {
	return KeyPrefix + reference
}

// Store is the snapshot persistence contract. Put must complete before the
// caller hands the payment-provider redirect URL to the browser; Get is read
// by the reconciliation engine when the browser returns.
type Store interface {
	Put(ctx context.Context, snapshot *registration.Snapshot) error
	Get(ctx context.Context, reference string) (*registration.Snapshot, error)
}
