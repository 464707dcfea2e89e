package auth

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-commons/agora/identity"
	"github.com/agora-commons/agora/store"
)

const baseTime = 1700000000 // fixed epoch for deterministic freshness checks

type rotationFixture struct {
	store   *store.Memory
	rotator *Rotator
	clock   *clock.Mock
	kp      *identity.Keypair
	fp      string
}

func newRotationFixture(t *testing.T) *rotationFixture {
	t.Helper()
	st := store.NewMemory()
	mock := clock.NewMock()
	mock.Set(time.Unix(baseTime, 0))

	kp, err := identity.GenerateKeypair()
	require.NoError(t, err)
	id, err := st.CreateIdentity(context.Background(), kp.PublicKey)
	require.NoError(t, err)

	return &rotationFixture{
		store:   st,
		rotator: NewRotator(st, RotatorConfig{Clock: mock}, nil),
		clock:   mock,
		kp:      kp,
		fp:      id.Fingerprint,
	}
}

func (f *rotationFixture) delegation(t *testing.T, signer *identity.Keypair, newKey ed25519.PublicKey, ts int64) *RotateRequest {
	t.Helper()
	sig, err := SignDelegation(signer.PrivateKey, f.fp, newKey, ts)
	require.NoError(t, err)
	return &RotateRequest{
		Fingerprint:         f.fp,
		NewPublicKey:        newKey,
		DelegationSignature: sig,
		Timestamp:           ts,
	}
}

func TestRotateSuccess(t *testing.T) {
	f := newRotationFixture(t)
	newKP, _ := identity.GenerateKeypair()

	updated, err := f.rotator.Rotate(context.Background(), f.delegation(t, f.kp, newKP.PublicKey, baseTime+5))
	require.NoError(t, err)
	require.NoError(t, updated.Validate())

	assert.Equal(t, f.fp, updated.Fingerprint)
	assert.Equal(t, []byte(newKP.PublicKey), updated.CurrentPublicKey)
	require.Len(t, updated.KeyHistory, 2)
	assert.NotNil(t, updated.KeyHistory[0].SupersededAt)
	assert.True(t, updated.KeyHistory[1].Active())
	assert.EqualValues(t, baseTime+5, updated.LastRotationTS)
}

func TestRotateFingerprintStableAcrossManyRotations(t *testing.T) {
	f := newRotationFixture(t)
	current := f.kp

	for i := 1; i <= 5; i++ {
		next, _ := identity.GenerateKeypair()
		updated, err := f.rotator.Rotate(context.Background(),
			f.delegation(t, current, next.PublicKey, baseTime+int64(i)))
		require.NoError(t, err)
		assert.Equal(t, f.fp, updated.Fingerprint)
		assert.Len(t, updated.KeyHistory, i+1)
		current = next
	}
}

func TestRotateUnknownIdentity(t *testing.T) {
	f := newRotationFixture(t)
	newKP, _ := identity.GenerateKeypair()

	req := f.delegation(t, f.kp, newKP.PublicKey, baseTime+5)
	req.Fingerprint = "0000000000000000000000000000000000000000000000000000000000000000"

	_, err := f.rotator.Rotate(context.Background(), req)
	assertCode(t, err, CodeUnknownIdentity)
	e, _ := AsError(err)
	assert.Equal(t, 404, e.Status)
}

func TestRotateTimestampOutsideSkewWindow(t *testing.T) {
	f := newRotationFixture(t)
	newKP, _ := identity.GenerateKeypair()

	tooOld := baseTime - int64(DefaultMaxPastSkew/time.Second) - 1
	_, err := f.rotator.Rotate(context.Background(), f.delegation(t, f.kp, newKP.PublicKey, tooOld))
	assertCode(t, err, CodeStaleTimestamp)

	tooNew := baseTime + int64(DefaultMaxFutureSkew/time.Second) + 1
	_, err = f.rotator.Rotate(context.Background(), f.delegation(t, f.kp, newKP.PublicKey, tooNew))
	assertCode(t, err, CodeStaleTimestamp)
}

func TestRotateReplayedDelegation(t *testing.T) {
	f := newRotationFixture(t)
	kp2, _ := identity.GenerateKeypair()
	kp3, _ := identity.GenerateKeypair()

	first := f.delegation(t, f.kp, kp2.PublicKey, baseTime+10)
	_, err := f.rotator.Rotate(context.Background(), first)
	require.NoError(t, err)

	// Byte-identical replay of the accepted delegation.
	_, err = f.rotator.Rotate(context.Background(), first)
	assertCode(t, err, CodeReplayedDelegation)

	// A fresh delegation with an equal-or-older timestamp is also a replay.
	_, err = f.rotator.Rotate(context.Background(), f.delegation(t, kp2, kp3.PublicKey, baseTime+10))
	assertCode(t, err, CodeReplayedDelegation)

	// Strictly newer timestamp proceeds.
	_, err = f.rotator.Rotate(context.Background(), f.delegation(t, kp2, kp3.PublicKey, baseTime+11))
	require.NoError(t, err)
}

func TestRotateDelegationMustComeFromActiveKey(t *testing.T) {
	f := newRotationFixture(t)
	newKP, _ := identity.GenerateKeypair()

	// Signed by the new key instead of the current one: the not-yet-trusted
	// key may never vouch for itself.
	_, err := f.rotator.Rotate(context.Background(), f.delegation(t, newKP, newKP.PublicKey, baseTime+5))
	assertCode(t, err, CodeInvalidDelegation)
}

func TestRotateTamperedTriple(t *testing.T) {
	f := newRotationFixture(t)
	newKP, _ := identity.GenerateKeypair()

	req := f.delegation(t, f.kp, newKP.PublicKey, baseTime+5)
	req.Timestamp = baseTime + 6 // signature covers +5

	_, err := f.rotator.Rotate(context.Background(), req)
	assertCode(t, err, CodeInvalidDelegation)
}

func TestRotateMalformedNewKey(t *testing.T) {
	f := newRotationFixture(t)

	_, err := f.rotator.Rotate(context.Background(), &RotateRequest{
		Fingerprint:  f.fp,
		NewPublicKey: []byte("short"),
		Timestamp:    baseTime + 5,
	})
	assertCode(t, err, CodeInvalidDelegation)
}

func TestRotateLostCASMapsToConcurrentRotation(t *testing.T) {
	f := newRotationFixture(t)
	newKP, _ := identity.GenerateKeypair()

	contended := &contendedStore{Store: f.store}
	r := NewRotator(contended, RotatorConfig{Clock: f.clock}, nil)

	_, err := r.Rotate(context.Background(), f.delegation(t, f.kp, newKP.PublicKey, baseTime+5))
	assertCode(t, err, CodeConcurrentRotation)
	e, _ := AsError(err)
	assert.Equal(t, 409, e.Status)
	assert.True(t, e.Retryable())
}

// contendedStore loses every CAS, simulating a concurrent rotation that
// commits between this handler's read and its write.
type contendedStore struct {
	store.Store
}

func (c *contendedStore) CompareAndSwapActiveKey(ctx context.Context, fp string, expectedOld, newKey ed25519.PublicKey, now time.Time, rotationTS int64) (*identity.Identity, error) {
	return nil, store.ErrCASConflict
}
