package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// Keypair is a client-side signing keypair. The server never holds private
// keys; this type exists for the CLI and for tests.
type Keypair struct {
	PublicKey  ed25519.PublicKey  `json:"public_key"`
	PrivateKey ed25519.PrivateKey `json:"private_key"`
}

// GenerateKeypair creates a new Ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate Ed25519 key: %w", err)
	}
	return &Keypair{PublicKey: pub, PrivateKey: priv}, nil
}

// Fingerprint returns the fingerprint of the keypair's public key.
func (k *Keypair) Fingerprint() string {
	return Fingerprint(k.PublicKey)
}

// Save writes the keypair to path with owner-only permissions.
func (k *Keypair) Save(path string) error {
	data, err := json.MarshalIndent(struct {
		PublicKey  string `json:"public_key"`
		PrivateKey string `json:"private_key"`
	}{
		PublicKey:  EncodePublicKey(k.PublicKey),
		PrivateKey: base64.RawURLEncoding.EncodeToString(k.PrivateKey),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKeypair reads a keypair written by Save.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		PublicKey  string `json:"public_key"`
		PrivateKey string `json:"private_key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("corrupt keypair file: %w", err)
	}
	pub, err := DecodePublicKey(raw.PublicKey)
	if err != nil {
		return nil, err
	}
	priv, err := base64.RawURLEncoding.DecodeString(raw.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key encoding: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: %d", len(priv))
	}
	return &Keypair{PublicKey: pub, PrivateKey: ed25519.PrivateKey(priv)}, nil
}

// EncodePublicKey renders a public key as base64url, the wire form used in
// signed payloads and rotation requests.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(pub)
}

// DecodePublicKey parses the wire form produced by EncodePublicKey.
func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64url public key: %w", err)
	}
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length: %d", len(data))
	}
	return ed25519.PublicKey(data), nil
}
