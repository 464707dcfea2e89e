// Package auth authenticates every mutating action on the platform. The
// Verifier resolves and checks the signature on a payload, returning the
// acting fingerprint; the Rotator transitions an identity's active key via a
// delegation signature chain. Nothing downstream of this package may run for
// a mutating request until one of the two has succeeded.
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/agora-commons/agora/pkg/wire"
)

// Reserved field names in signed payloads.
const (
	FieldSignature   = "signature"
	FieldPublicKey   = "public_key"
	FieldFingerprint = "fingerprint"
)

// CanonicalPayloadBytes strips the signature field and encodes the remaining
// fields as canonical JSON. These are the bytes a client signs: the wire
// contract is sorted keys, verbatim number tokens, encoding/json string
// escaping (see pkg/wire).
func CanonicalPayloadBytes(payload map[string]interface{}) ([]byte, error) {
	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == FieldSignature {
			continue
		}
		fields[k] = v
	}
	return wire.MarshalCanonicalJSON(fields)
}

// SignPayload signs every field of payload except "signature" and returns a
// copy with the signature attached (base64url). Client-side helper used by
// the CLI and tests; the server only ever verifies.
func SignPayload(priv ed25519.PrivateKey, payload map[string]interface{}) (map[string]interface{}, error) {
	canonical, err := CanonicalPayloadBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	signed := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		signed[k] = v
	}
	signed[FieldSignature] = base64.RawURLEncoding.EncodeToString(ed25519.Sign(priv, canonical))
	return signed, nil
}

// DelegationSignable is the canonical CBOR structure a rotation delegation
// signature covers. It is signed by the identity's current private key; the
// new key is introduced without ever proving anything itself.
type DelegationSignable struct {
	Fingerprint  string `cbor:"fingerprint"`
	NewPublicKey []byte `cbor:"new_public_key"`
	Timestamp    int64  `cbor:"timestamp"`
}

// SignDelegation signs the canonical delegation triple with the current
// private key. Client-side helper.
func SignDelegation(priv ed25519.PrivateKey, fingerprint string, newKey ed25519.PublicKey, timestamp int64) ([]byte, error) {
	tbs, err := wire.MarshalCBOR(&DelegationSignable{
		Fingerprint:  fingerprint,
		NewPublicKey: newKey,
		Timestamp:    timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal delegation signable: %w", err)
	}
	return ed25519.Sign(priv, tbs), nil
}

func verifyDelegation(pub ed25519.PublicKey, fingerprint string, newKey ed25519.PublicKey, timestamp int64, sig []byte) error {
	tbs, err := wire.MarshalCBOR(&DelegationSignable{
		Fingerprint:  fingerprint,
		NewPublicKey: newKey,
		Timestamp:    timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal delegation signable: %w", err)
	}
	if !ed25519.Verify(pub, tbs, sig) {
		return fmt.Errorf("delegation signature does not verify")
	}
	return nil
}

// DecodeSignature accepts both base64url and standard base64, matching what
// clients in the wild actually send.
func DecodeSignature(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.StdEncoding.DecodeString(s)
	}
	return b, err
}
