package verifier

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/challenge"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/identity"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

type fixture struct {
	registry *identity.Registry
	issuer   *challenge.Issuer
	verifier *Verifier
	scheme   schnorr.Scheme
}

func newFixture(t *testing.T, scheme schnorr.Scheme, cfg challenge.Config) *fixture {
	t.Helper()
	registry := identity.NewRegistry(storage.NewMemoryStore(), scheme, nil)
	issuer := challenge.NewIssuer(registry, scheme.Params(), cfg, nil)
	return &fixture{
		registry: registry,
		issuer:   issuer,
		verifier: New(registry, issuer, scheme, nil),
		scheme:   scheme,
	}
}

func toyPow(t *testing.T) schnorr.Scheme {
	t.Helper()
	params, err := field.NewParams(big.NewInt(23), big.NewInt(5))
	require.NoError(t, err)
	return schnorr.NewPowScheme(params)
}

func fixedChallenge(v int64) challenge.Config {
	return challenge.Config{Random: func() (*big.Int, error) { return big.NewInt(v), nil }}
}

func TestToyRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, toyPow(t), fixedChallenge(5))

	require.NoError(t, f.registry.Register(ctx, "alice", big.NewInt(7)))

	c, err := f.issuer.Issue(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(5), c.Value.Int64())

	proof := &schnorr.Proof{Response: big.NewInt(17)}
	ok, err := f.verifier.Verify(ctx, "alice", c.Value, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// Replaying the same transcript must fail on the challenge, not the proof
	ok, err = f.verifier.Verify(ctx, "alice", c.Value, proof)
	assert.False(t, ok)
	assert.True(t, zkerr.IsChallengeError(err), "got %v", err)
}

func TestWrongProofIsNotAnError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, toyPow(t), fixedChallenge(5))
	require.NoError(t, f.registry.Register(ctx, "alice", big.NewInt(7)))

	c, _ := f.issuer.Issue(ctx, "alice")
	ok, err := f.verifier.Verify(ctx, "alice", c.Value, &schnorr.Proof{Response: big.NewInt(16)})
	require.NoError(t, err)
	assert.False(t, ok)

	// The challenge was consumed by the failed attempt
	ok, err = f.verifier.Verify(ctx, "alice", c.Value, &schnorr.Proof{Response: big.NewInt(17)})
	assert.False(t, ok)
	assert.True(t, errors.Is(err, zkerr.ErrNoSuchChallenge), "got %v", err)
}

func TestUnknownUser(t *testing.T) {
	f := newFixture(t, toyPow(t), fixedChallenge(5))

	ok, err := f.verifier.Verify(context.Background(), "ghost", big.NewInt(5), &schnorr.Proof{Response: big.NewInt(17)})
	assert.False(t, ok)
	assert.True(t, errors.Is(err, zkerr.ErrUnknownUser), "got %v", err)

	ok, err = f.verifier.Verify(context.Background(), "ghost", nil, nil)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, zkerr.ErrUnknownUser), "got %v", err)
}

func TestChallengeErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, toyPow(t), fixedChallenge(5))
	require.NoError(t, f.registry.Register(ctx, "alice", big.NewInt(7)))

	ok, err := f.verifier.Verify(ctx, "alice", big.NewInt(5), &schnorr.Proof{Response: big.NewInt(17)})
	assert.False(t, ok)
	assert.True(t, errors.Is(err, zkerr.ErrNoSuchChallenge), "got %v", err)

	f.issuer.Issue(ctx, "alice")
	ok, err = f.verifier.Verify(ctx, "alice", big.NewInt(6), &schnorr.Proof{Response: big.NewInt(17)})
	assert.False(t, ok)
	assert.True(t, errors.Is(err, zkerr.ErrChallengeMismatch), "got %v", err)
}

func TestSchnorrEndToEnd(t *testing.T) {
	ctx := context.Background()
	scheme := schnorr.NewSchnorrScheme(field.DefaultParams())
	f := newFixture(t, scheme, challenge.Config{})

	var x, v *big.Int
	for {
		var err error
		x, err = schnorr.GenerateSecret(scheme.Params())
		require.NoError(t, err)
		v, err = scheme.VerificationValue(x)
		require.NoError(t, err)
		if scheme.ValidateVerificationValue(v) == nil {
			break
		}
	}
	require.NoError(t, f.registry.Register(ctx, "alice", v))

	c, err := f.issuer.Issue(ctx, "alice")
	require.NoError(t, err)

	proof, err := scheme.Prove(x, c.Value)
	require.NoError(t, err)

	ok, err := f.verifier.Verify(ctx, "alice", c.Value, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// A proof built for one challenge does not answer the next one
	next, err := f.issuer.Issue(ctx, "alice")
	require.NoError(t, err)
	ok, err = f.verifier.Verify(ctx, "alice", next.Value, proof)
	require.NoError(t, err)
	assert.False(t, ok)
}
