package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/agora-commons/agora/identity"
	"github.com/agora-commons/agora/store"
)

// Default clock-skew windows for delegation timestamps.
const (
	DefaultMaxPastSkew   = time.Hour
	DefaultMaxFutureSkew = 10 * time.Minute
)

// RotateRequest carries a delegation proof: the current private key signs
// the canonical triple {fingerprint, new_public_key, timestamp}.
type RotateRequest struct {
	Fingerprint         string
	NewPublicKey        ed25519.PublicKey
	DelegationSignature []byte
	Timestamp           int64 // epoch seconds
}

// RotatorConfig tunes freshness checks. Zero values select defaults.
type RotatorConfig struct {
	MaxPastSkew   time.Duration
	MaxFutureSkew time.Duration
	Clock         clock.Clock
}

// Rotator atomically transitions an identity's active key. There is no
// in-process locking: mutual exclusion of concurrent rotations comes
// entirely from the store's compare-and-swap, so the manager is safe across
// independent server processes.
type Rotator struct {
	store         store.Store
	clk           clock.Clock
	maxPastSkew   time.Duration
	maxFutureSkew time.Duration
	log           *zap.Logger
}

// NewRotator creates a Rotator over the given identity store.
func NewRotator(st store.Store, cfg RotatorConfig, log *zap.Logger) *Rotator {
	if cfg.MaxPastSkew <= 0 {
		cfg.MaxPastSkew = DefaultMaxPastSkew
	}
	if cfg.MaxFutureSkew <= 0 {
		cfg.MaxFutureSkew = DefaultMaxFutureSkew
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Rotator{
		store:         st,
		clk:           cfg.Clock,
		maxPastSkew:   cfg.MaxPastSkew,
		maxFutureSkew: cfg.MaxFutureSkew,
		log:           log,
	}
}

// Rotate validates the delegation proof and commits the key transition.
//
// Validation order: resolve the identity, check timestamp freshness and
// strict monotonicity against the last accepted rotation, verify the
// delegation signature under the currently active key, then commit via CAS.
// The fingerprint is never recomputed; identity continuity holds across
// unlimited rotations.
func (r *Rotator) Rotate(ctx context.Context, req *RotateRequest) (*identity.Identity, error) {
	if len(req.NewPublicKey) != ed25519.PublicKeySize {
		return nil, newError(CodeInvalidDelegation, "malformed new public key")
	}

	id, err := r.store.LookupByFingerprint(ctx, req.Fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The fingerprint is in the request URL the caller already
			// knows, so 404 leaks nothing here.
			e := newError(CodeUnknownIdentity, "fingerprint does not resolve to an identity")
			e.Status = http.StatusNotFound
			return nil, e
		}
		return nil, storeError("lookup identity", err)
	}

	now := r.clk.Now()
	ts := time.Unix(req.Timestamp, 0)
	if ts.Before(now.Add(-r.maxPastSkew)) || ts.After(now.Add(r.maxFutureSkew)) {
		return nil, newError(CodeStaleTimestamp, "delegation timestamp outside the accepted clock-skew window")
	}
	if req.Timestamp <= id.LastRotationTS {
		return nil, newError(CodeReplayedDelegation, "delegation timestamp does not advance past the last accepted rotation")
	}

	activeKey := id.ActiveKey()
	if err := verifyDelegation(activeKey, req.Fingerprint, req.NewPublicKey, req.Timestamp, req.DelegationSignature); err != nil {
		return nil, wrapError(CodeInvalidDelegation, "delegation signature does not verify under the active key", err)
	}

	updated, err := r.store.CompareAndSwapActiveKey(ctx, req.Fingerprint, activeKey, req.NewPublicKey, now.UTC(), req.Timestamp)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrCASConflict):
			return nil, newError(CodeConcurrentRotation, "a concurrent rotation committed first, retry with fresh state")
		case errors.Is(err, store.ErrNotFound):
			return nil, newError(CodeUnknownIdentity, "identity disappeared during rotation")
		default:
			return nil, storeError("commit rotation", err)
		}
	}

	r.log.Info("key rotated",
		zap.String("fingerprint", updated.Fingerprint),
		zap.Int("key_history_len", len(updated.KeyHistory)),
		zap.Int64("rotation_ts", req.Timestamp))
	return updated, nil
}
