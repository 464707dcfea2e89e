package store

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/agora-commons/agora/identity"
)

// Bucket names for identity persistence.
const (
	BucketIdentities = "AGORA_IDENTITIES" // fingerprint -> identity record
	BucketKeys       = "AGORA_KEYS"       // key fingerprint -> identity fingerprint
)

// NATS is a Store backed by two JetStream KV buckets. The identities bucket
// holds the record keyed by fingerprint; the keys bucket indexes every public
// key ever bound (including superseded ones) back to its identity. The keys
// bucket's Create is the uniqueness constraint that makes first contact
// idempotent across processes, and the identities bucket's revision-checked
// Update is the rotation CAS.
type NATS struct {
	identities jetstream.KeyValue
	keys       jetstream.KeyValue
}

// NewNATS creates the buckets if needed and returns a Store.
func NewNATS(ctx context.Context, js jetstream.JetStream) (*NATS, error) {
	identities, err := getOrCreateBucket(ctx, js, BucketIdentities)
	if err != nil {
		return nil, fmt.Errorf("create identities bucket: %w", err)
	}
	keys, err := getOrCreateBucket(ctx, js, BucketKeys)
	if err != nil {
		return nil, fmt.Errorf("create keys bucket: %w", err)
	}
	return &NATS{identities: identities, keys: keys}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "agora identity storage",
	})
}

func (n *NATS) LookupByFingerprint(ctx context.Context, fingerprint string) (*identity.Identity, error) {
	id, _, err := n.getIdentity(ctx, fingerprint)
	return id, err
}

func (n *NATS) getIdentity(ctx context.Context, fingerprint string) (*identity.Identity, uint64, error) {
	entry, err := n.identities.Get(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("%w: get identity: %w", ErrUnavailable, err)
	}
	var id identity.Identity
	if err := json.Unmarshal(entry.Value(), &id); err != nil {
		return nil, 0, fmt.Errorf("corrupt identity record %s: %w", fingerprint, err)
	}
	return &id, entry.Revision(), nil
}

func (n *NATS) LookupByPublicKey(ctx context.Context, pub ed25519.PublicKey) (*identity.Identity, error) {
	entry, err := n.keys.Get(ctx, identity.Fingerprint(pub))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get key index: %w", ErrUnavailable, err)
	}
	return n.LookupByFingerprint(ctx, string(entry.Value()))
}

func (n *NATS) CreateIdentity(ctx context.Context, pub ed25519.PublicKey) (*identity.Identity, error) {
	id := identity.New(pub, time.Now().UTC())

	// The key-index Create is the uniqueness constraint on the bound key: a
	// concurrent first contact for the same key loses here and fetches the
	// winner's identity instead of creating a duplicate.
	keyFP := identity.Fingerprint(pub)
	if _, err := n.keys.Create(ctx, keyFP, []byte(id.Fingerprint)); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			existing, lookupErr := n.LookupByPublicKey(ctx, pub)
			if lookupErr == nil {
				return existing, nil
			}
			if !errors.Is(lookupErr, ErrNotFound) {
				return nil, lookupErr
			}
			// Index entry without a record: a previous create was cut short
			// between the two writes. Fall through and write the record.
		} else {
			return nil, fmt.Errorf("%w: create key index: %w", ErrUnavailable, err)
		}
	}

	data, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal identity: %w", err)
	}
	if _, err := n.identities.Create(ctx, id.Fingerprint, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return n.LookupByFingerprint(ctx, id.Fingerprint)
		}
		return nil, fmt.Errorf("%w: create identity: %w", ErrUnavailable, err)
	}
	return id, nil
}

func (n *NATS) CompareAndSwapActiveKey(ctx context.Context, fingerprint string, expectedOld, newKey ed25519.PublicKey, now time.Time, rotationTS int64) (*identity.Identity, error) {
	id, revision, err := n.getIdentity(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(id.CurrentPublicKey, expectedOld) {
		// A concurrent rotation already committed.
		return nil, ErrCASConflict
	}

	applyRotation(id, newKey, now, rotationTS)

	data, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal identity: %w", err)
	}
	if _, err := n.identities.Update(ctx, fingerprint, data, revision); err != nil {
		if isWrongLastRevision(err) {
			return nil, ErrCASConflict
		}
		return nil, fmt.Errorf("%w: update identity: %w", ErrUnavailable, err)
	}

	// Index the new key for lookup-by-key. Put is idempotent; a failure here
	// leaves the rotation committed and the index entry is rewritten on the
	// next rotation of this identity.
	if _, err := n.keys.Put(ctx, identity.Fingerprint(newKey), []byte(fingerprint)); err != nil {
		return nil, fmt.Errorf("%w: index rotated key: %w", ErrUnavailable, err)
	}
	return id, nil
}

// isWrongLastRevision detects a revision-check failure on KV Update, which is
// how JetStream reports a lost CAS.
func isWrongLastRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}
