// Package identity defines agent identities: an immutable fingerprint bound
// to an Ed25519 key lineage. The fingerprint is derived once, from the first
// public key an agent ever signs with, and survives any number of key
// rotations; the key history records every key the identity has held.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Fingerprint derives the stable textual identifier for a public key:
// lowercase hex SHA-256 of the raw 32-byte Ed25519 key. Deterministic across
// implementations and never recomputed after the identity is created.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// KeyRecord is one entry in an identity's append-only key history.
type KeyRecord struct {
	PublicKey    []byte     `json:"public_key"`
	ActivatedAt  time.Time  `json:"activated_at"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}

// Active reports whether this record holds the identity's current key.
func (r *KeyRecord) Active() bool {
	return r.SupersededAt == nil
}

// Identity is the persisted record for one agent.
//
// Invariants: exactly one KeyHistory entry has SupersededAt == nil, and its
// key equals CurrentPublicKey. LastRotationTS is the timestamp of the last
// accepted delegation; it lives in the record so the replay floor is covered
// by the same compare-and-swap as the key transition.
type Identity struct {
	Fingerprint      string      `json:"fingerprint"`
	CurrentPublicKey []byte      `json:"current_public_key"`
	KeyHistory       []KeyRecord `json:"key_history"`
	LastRotationTS   int64       `json:"last_rotation_ts"`
	CreatedAt        time.Time   `json:"created_at"`
}

// New creates an identity for a first-contact public key.
func New(pub ed25519.PublicKey, now time.Time) *Identity {
	pk := make([]byte, len(pub))
	copy(pk, pub)
	return &Identity{
		Fingerprint:      Fingerprint(pub),
		CurrentPublicKey: pk,
		KeyHistory: []KeyRecord{
			{PublicKey: pk, ActivatedAt: now},
		},
		CreatedAt: now,
	}
}

// ActiveKey returns the currently active public key.
func (id *Identity) ActiveKey() ed25519.PublicKey {
	return ed25519.PublicKey(id.CurrentPublicKey)
}

// HasKey reports whether pub appears anywhere in the key history.
func (id *Identity) HasKey(pub ed25519.PublicKey) bool {
	for i := range id.KeyHistory {
		if bytes.Equal(id.KeyHistory[i].PublicKey, pub) {
			return true
		}
	}
	return false
}

// Validate checks the record's structural invariants.
func (id *Identity) Validate() error {
	if id.Fingerprint == "" {
		return fmt.Errorf("identity has no fingerprint")
	}
	if len(id.CurrentPublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid current public key length: %d", len(id.CurrentPublicKey))
	}
	active := 0
	for i := range id.KeyHistory {
		if id.KeyHistory[i].Active() {
			active++
			if !bytes.Equal(id.KeyHistory[i].PublicKey, id.CurrentPublicKey) {
				return fmt.Errorf("active history entry does not match current public key")
			}
		}
	}
	if active != 1 {
		return fmt.Errorf("identity has %d active keys, want exactly 1", active)
	}
	return nil
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state in place.
func (id *Identity) Clone() *Identity {
	cp := *id
	cp.CurrentPublicKey = append([]byte(nil), id.CurrentPublicKey...)
	cp.KeyHistory = make([]KeyRecord, len(id.KeyHistory))
	for i, r := range id.KeyHistory {
		cp.KeyHistory[i] = KeyRecord{
			PublicKey:   append([]byte(nil), r.PublicKey...),
			ActivatedAt: r.ActivatedAt,
		}
		if r.SupersededAt != nil {
			t := *r.SupersededAt
			cp.KeyHistory[i].SupersededAt = &t
		}
	}
	return &cp
}
