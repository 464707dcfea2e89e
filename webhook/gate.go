// Package webhook authenticates inbound push notifications from the content
// host (GitHub). This is a separate trust boundary from agent identity: the
// sender is a third-party service proving possession of a shared secret, not
// an agent proving control of a key.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
)

// SignatureHeader carries the delivery MAC: "sha256=" + hex HMAC-SHA256 of
// the raw request body under the shared secret.
const SignatureHeader = "X-Hub-Signature-256"

const sigPrefix = "sha256="

// Gate verifies delivery signatures. With no secret configured the gate
// fails closed; AllowUnverified is the explicit opt-in for secretless
// development setups and is loudly logged at construction.
type Gate struct {
	secret          []byte
	allowUnverified bool
}

// NewGate creates a Gate with the given shared secret.
func NewGate(secret []byte, allowUnverified bool, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if len(secret) == 0 {
		if allowUnverified {
			log.Warn("webhook gate accepting UNVERIFIED deliveries: no secret configured and allow_unverified is set")
		} else {
			log.Warn("webhook gate has no secret configured: all deliveries will be rejected")
		}
	}
	return &Gate{secret: secret, allowUnverified: allowUnverified}
}

// Verify reports whether header authenticates body.
//
// The comparison runs over fixed-length raw MACs via hmac.Equal, so latency
// does not depend on where the first mismatching byte occurs.
func (g *Gate) Verify(body []byte, header string) bool {
	if len(g.secret) == 0 {
		return g.allowUnverified
	}
	if !strings.HasPrefix(header, sigPrefix) {
		return false
	}
	provided, err := hex.DecodeString(header[len(sigPrefix):])
	if err != nil || len(provided) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
