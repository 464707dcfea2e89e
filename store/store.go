// Package store persists agent identities. The production implementation
// rides NATS JetStream KV; an in-memory implementation backs tests and
// single-process development.
//
// Correctness of concurrent key rotation depends on CompareAndSwapActiveKey
// being atomic at the storage layer, not on any in-process lock: multiple
// server processes may race on the same identity.
package store

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/agora-commons/agora/identity"
)

var (
	// ErrNotFound means the identity does not exist. Distinct from
	// ErrUnavailable: "not found" is an authoritative answer, "unavailable"
	// is the absence of one.
	ErrNotFound = errors.New("identity not found")

	// ErrCASConflict means a compare-and-swap lost the race to a concurrent
	// writer. The caller may retry with fresh state.
	ErrCASConflict = errors.New("identity record changed concurrently")

	// ErrUnavailable wraps storage outages and timeouts. Never treated as a
	// rejection by callers.
	ErrUnavailable = errors.New("identity store unavailable")
)

// Store is the identity persistence interface consumed by the verifier and
// the rotation manager.
type Store interface {
	// LookupByFingerprint returns the identity with the given fingerprint,
	// or ErrNotFound.
	LookupByFingerprint(ctx context.Context, fingerprint string) (*identity.Identity, error)

	// LookupByPublicKey returns the identity that has ever bound pub, or
	// ErrNotFound. Superseded keys still resolve: attribution of historical
	// actions must survive rotation.
	LookupByPublicKey(ctx context.Context, pub ed25519.PublicKey) (*identity.Identity, error)

	// CreateIdentity binds pub to a new identity with create-or-fetch
	// semantics: if pub is already bound, the existing identity is returned
	// and no second identity is created. Safe under concurrent first
	// contact.
	CreateIdentity(ctx context.Context, pub ed25519.PublicKey) (*identity.Identity, error)

	// CompareAndSwapActiveKey atomically supersedes expectedOld with newKey:
	// the active history entry is marked superseded at now, a new active
	// entry for newKey is appended, CurrentPublicKey is swapped, and the
	// identity's rotation floor advances to rotationTS. The whole transition
	// commits only if expectedOld is still the active key; otherwise
	// ErrCASConflict.
	CompareAndSwapActiveKey(ctx context.Context, fingerprint string, expectedOld, newKey ed25519.PublicKey, now time.Time, rotationTS int64) (*identity.Identity, error)
}
