package auth

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"

	"go.uber.org/zap"

	"github.com/agora-commons/agora/identity"
	"github.com/agora-commons/agora/store"
)

// Verifier authenticates signed payloads. Stateless between calls: every
// payload is independently resolved and verified, and no trust is cached.
type Verifier struct {
	store store.Store
	log   *zap.Logger
}

// NewVerifier creates a Verifier over the given identity store.
func NewVerifier(st store.Store, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{store: st, log: log}
}

// Verify authenticates payload and returns the author's fingerprint.
//
// The payload must carry a "signature" field plus either "public_key"
// (first contact) or "fingerprint". On a first contact that verifies, the
// identity is created in the store with create-or-fetch semantics. A
// signature that is valid only under a superseded key is rejected with
// STALE_KEY: retired credentials do not authenticate.
func (v *Verifier) Verify(ctx context.Context, payload map[string]interface{}) (string, error) {
	sigField, _ := payload[FieldSignature].(string)
	if sigField == "" {
		return "", newError(CodeMissingSignature, "payload has no signature")
	}

	canonical, err := CanonicalPayloadBytes(payload)
	if err != nil {
		return "", wrapError(CodeSignatureMismatch, "payload cannot be canonicalized", err)
	}

	sig, err := DecodeSignature(sigField)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return "", newError(CodeSignatureMismatch, "malformed signature encoding")
	}

	if pkField, ok := payload[FieldPublicKey].(string); ok && pkField != "" {
		return v.verifyFirstContact(ctx, pkField, canonical, sig)
	}

	fpField, _ := payload[FieldFingerprint].(string)
	if fpField == "" {
		return "", newError(CodeSignatureMismatch, "payload claims no signer")
	}
	return v.verifyKnown(ctx, fpField, canonical, sig)
}

// verifyFirstContact handles payloads carrying an embedded public key. The
// key may turn out to be already bound; in that case it must still be the
// identity's active key.
func (v *Verifier) verifyFirstContact(ctx context.Context, pkField string, canonical, sig []byte) (string, error) {
	pub, err := identity.DecodePublicKey(pkField)
	if err != nil {
		return "", wrapError(CodeSignatureMismatch, "malformed public key", err)
	}
	if !ed25519.Verify(pub, canonical, sig) {
		return "", newError(CodeSignatureMismatch, "signature does not verify")
	}

	// Identity creation happens only after the signature checks out; an
	// unverified payload never mutates the store.
	id, err := v.store.CreateIdentity(ctx, pub)
	if err != nil {
		return "", storeError("create identity", err)
	}
	if !bytes.Equal(id.CurrentPublicKey, pub) {
		return "", newError(CodeStaleKey, "key has been superseded by rotation")
	}

	v.log.Info("payload verified",
		zap.String("fingerprint", id.Fingerprint),
		zap.Bool("first_contact", len(id.KeyHistory) == 1))
	return id.Fingerprint, nil
}

// verifyKnown handles payloads claiming authorship by fingerprint. Only the
// currently active key may authenticate.
func (v *Verifier) verifyKnown(ctx context.Context, fingerprint string, canonical, sig []byte) (string, error) {
	id, err := v.store.LookupByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", newError(CodeUnknownIdentity, "fingerprint does not resolve to an identity")
		}
		return "", storeError("lookup identity", err)
	}

	if !ed25519.Verify(id.ActiveKey(), canonical, sig) {
		// Distinguish a retired credential from a bad signature so the
		// caller learns to rotate its view of the key, not to retry.
		for i := range id.KeyHistory {
			rec := &id.KeyHistory[i]
			if rec.Active() {
				continue
			}
			if ed25519.Verify(ed25519.PublicKey(rec.PublicKey), canonical, sig) {
				return "", newError(CodeStaleKey, "signature valid only under a superseded key")
			}
		}
		return "", newError(CodeSignatureMismatch, "signature does not verify")
	}

	v.log.Info("payload verified", zap.String("fingerprint", id.Fingerprint))
	return id.Fingerprint, nil
}

// storeError maps store failures: "not found" is an authoritative rejection
// handled by callers, anything else is a retryable outage and must never be
// conflated with a rejection.
func storeError(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(CodeUnknownIdentity, "identity not found")
	}
	return wrapError(CodeStoreUnavailable, op+" failed, retry later", err)
}
