package store

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/agora-commons/agora/identity"
)

// Memory is an in-process Store. It honors the same CAS semantics as the
// NATS implementation so concurrency tests exercise the real contract.
type Memory struct {
	mu         sync.Mutex
	identities map[string]*identity.Identity // fingerprint -> record
	keyIndex   map[string]string             // key fingerprint -> identity fingerprint
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		identities: make(map[string]*identity.Identity),
		keyIndex:   make(map[string]string),
	}
}

func (m *Memory) LookupByFingerprint(ctx context.Context, fingerprint string) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.identities[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	return id.Clone(), nil
}

func (m *Memory) LookupByPublicKey(ctx context.Context, pub ed25519.PublicKey) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fp, ok := m.keyIndex[identity.Fingerprint(pub)]
	if !ok {
		return nil, ErrNotFound
	}
	id, ok := m.identities[fp]
	if !ok {
		return nil, ErrNotFound
	}
	return id.Clone(), nil
}

func (m *Memory) CreateIdentity(ctx context.Context, pub ed25519.PublicKey) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	keyFP := identity.Fingerprint(pub)
	if fp, ok := m.keyIndex[keyFP]; ok {
		if existing, ok := m.identities[fp]; ok {
			return existing.Clone(), nil
		}
	}

	id := identity.New(pub, time.Now().UTC())
	m.identities[id.Fingerprint] = id
	m.keyIndex[keyFP] = id.Fingerprint
	return id.Clone(), nil
}

func (m *Memory) CompareAndSwapActiveKey(ctx context.Context, fingerprint string, expectedOld, newKey ed25519.PublicKey, now time.Time, rotationTS int64) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.identities[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	if !bytes.Equal(id.CurrentPublicKey, expectedOld) {
		return nil, ErrCASConflict
	}

	applyRotation(id, newKey, now, rotationTS)
	m.keyIndex[identity.Fingerprint(newKey)] = id.Fingerprint
	return id.Clone(), nil
}

// applyRotation performs the in-record transition shared by both store
// implementations: supersede the active entry, append the new one, swap the
// pointer, advance the replay floor.
func applyRotation(id *identity.Identity, newKey ed25519.PublicKey, now time.Time, rotationTS int64) {
	supersededAt := now
	for i := range id.KeyHistory {
		if id.KeyHistory[i].Active() {
			id.KeyHistory[i].SupersededAt = &supersededAt
		}
	}
	pk := make([]byte, len(newKey))
	copy(pk, newKey)
	id.KeyHistory = append(id.KeyHistory, identity.KeyRecord{
		PublicKey:   pk,
		ActivatedAt: now,
	})
	id.CurrentPublicKey = pk
	id.LastRotationTS = rotationTS
}
