package auth

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/jwt"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func toyScheme(t *testing.T) schnorr.Scheme {
	t.Helper()
	params, err := field.NewParams(big.NewInt(23), big.NewInt(5))
	require.NoError(t, err)
	return schnorr.NewPowScheme(params)
}

func testSigner(t *testing.T) *jwt.ES256Signer {
	t.Helper()
	key, err := jwt.GenerateES256KeyPair()
	require.NoError(t, err)
	signer, err := jwt.NewES256Signer(key, "test-key", "https://zkid.test")
	require.NoError(t, err)
	return signer
}

func toyService(t *testing.T, clk *clock) *Service {
	t.Helper()
	return NewService(storage.NewMemoryStore(), toyScheme(t), testSigner(t), Config{
		Issuer:          "https://zkid.test",
		Audience:        "zkid-api",
		TokenTTL:        5 * time.Minute,
		ChallengeTTL:    time.Minute,
		SessionTTL:      time.Hour,
		Now:             clk.Now,
		ChallengeSource: func() (*big.Int, error) { return big.NewInt(5), nil },
	}, nil)
}

func TestService_ToyRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	svc := toyService(t, clk)

	_, err := svc.Register(ctx, RegisterRequest{UserID: "alice", VerificationValue: "7"})
	require.NoError(t, err)

	ch, err := svc.Challenge(ctx, ChallengeRequest{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "5", ch.Challenge)
	assert.Equal(t, clk.now.Unix(), ch.IssuedAt)
	assert.Equal(t, clk.now.Add(time.Minute).Unix(), ch.ExpiresAt)

	resp, err := svc.Verify(ctx, VerifyRequest{UserID: "alice", Challenge: "5", Proof: "17"})
	require.NoError(t, err)
	require.True(t, resp.Verified)
	require.NotNil(t, resp.Token)
	assert.Equal(t, "alice", resp.Token.UserID)
	assert.NotEmpty(t, resp.Token.TokenID)
	assert.Equal(t, clk.now.Add(time.Hour).Unix(), resp.Token.ExpiresAt)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(300), resp.ExpiresIn)

	valid := svc.ValidateSession(ctx, ValidateRequest{UserID: "alice", Token: *resp.Token})
	assert.True(t, valid.Valid)

	// The challenge is single use
	_, err = svc.Verify(ctx, VerifyRequest{UserID: "alice", Challenge: "5", Proof: "17"})
	assert.True(t, zkerr.IsChallengeError(err), "got %v", err)
}

func TestService_WrongProof(t *testing.T) {
	ctx := context.Background()
	svc := toyService(t, &clock{now: time.Now()})

	_, err := svc.Register(ctx, RegisterRequest{UserID: "alice", VerificationValue: "7"})
	require.NoError(t, err)
	_, err = svc.Challenge(ctx, ChallengeRequest{UserID: "alice"})
	require.NoError(t, err)

	resp, err := svc.Verify(ctx, VerifyRequest{UserID: "alice", Challenge: "5", Proof: "16"})
	require.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Nil(t, resp.Token)
	assert.Empty(t, resp.AccessToken)

	// A failed attempt burns the challenge too
	_, err = svc.Verify(ctx, VerifyRequest{UserID: "alice", Challenge: "5", Proof: "17"})
	assert.True(t, errors.Is(err, zkerr.ErrNoSuchChallenge), "got %v", err)
}

func TestService_ExpiredChallenge(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Now()}
	svc := toyService(t, clk)

	_, err := svc.Register(ctx, RegisterRequest{UserID: "alice", VerificationValue: "7"})
	require.NoError(t, err)
	_, err = svc.Challenge(ctx, ChallengeRequest{UserID: "alice"})
	require.NoError(t, err)

	clk.Advance(time.Minute)

	_, err = svc.Verify(ctx, VerifyRequest{UserID: "alice", Challenge: "5", Proof: "17"})
	assert.True(t, errors.Is(err, zkerr.ErrNoSuchChallenge), "got %v", err)
}

func TestService_RegisterErrors(t *testing.T) {
	ctx := context.Background()
	svc := toyService(t, &clock{now: time.Now()})

	_, err := svc.Register(ctx, RegisterRequest{UserID: "alice", VerificationValue: "7"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  RegisterRequest
		code zkerr.Code
	}{
		{"duplicate", RegisterRequest{UserID: "alice", VerificationValue: "9"}, zkerr.CodeAlreadyRegistered},
		{"blank user", RegisterRequest{UserID: "", VerificationValue: "9"}, zkerr.CodeInvalidInput},
		{"not a number", RegisterRequest{UserID: "bob", VerificationValue: "nine"}, zkerr.CodeInvalidInput},
		{"negative", RegisterRequest{UserID: "bob", VerificationValue: "-9"}, zkerr.CodeInvalidInput},
		{"out of field", RegisterRequest{UserID: "bob", VerificationValue: "23"}, zkerr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			assert.Equal(t, tt.code, zkerr.CodeOf(err), "got %v", err)
		})
	}
}

func TestService_ChallengeUnknownUser(t *testing.T) {
	svc := toyService(t, &clock{now: time.Now()})

	_, err := svc.Challenge(context.Background(), ChallengeRequest{UserID: "nobody"})
	assert.True(t, errors.Is(err, zkerr.ErrUnknownUser), "got %v", err)
	assert.Zero(t, svc.Challenges().Pending())
}

func TestService_ValidateSession(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Now()}
	svc := toyService(t, clk)

	_, err := svc.Register(ctx, RegisterRequest{UserID: "alice", VerificationValue: "7"})
	require.NoError(t, err)
	_, err = svc.Challenge(ctx, ChallengeRequest{UserID: "alice"})
	require.NoError(t, err)
	resp, err := svc.Verify(ctx, VerifyRequest{UserID: "alice", Challenge: "5", Proof: "17"})
	require.NoError(t, err)
	token := *resp.Token

	t.Run("WrongUser", func(t *testing.T) {
		assert.False(t, svc.ValidateSession(ctx, ValidateRequest{UserID: "bob", Token: token}).Valid)
	})

	t.Run("WrongTokenID", func(t *testing.T) {
		forged := token
		forged.TokenID = "not-the-token"
		assert.False(t, svc.ValidateSession(ctx, ValidateRequest{UserID: "alice", Token: forged}).Valid)
	})

	t.Run("Malformed", func(t *testing.T) {
		assert.False(t, svc.ValidateSession(ctx, ValidateRequest{UserID: "alice"}).Valid)
	})

	t.Run("Expired", func(t *testing.T) {
		clk.Advance(time.Hour)
		assert.False(t, svc.ValidateSession(ctx, ValidateRequest{UserID: "alice", Token: token}).Valid)

		// Expired sessions are removed on sight
		_, err := svc.RevokeSession(ctx, RevokeRequest{UserID: "alice"})
		assert.True(t, errors.Is(err, zkerr.ErrNoActiveSession), "got %v", err)
	})
}

func TestService_RevokeSession(t *testing.T) {
	ctx := context.Background()
	svc := toyService(t, &clock{now: time.Now()})

	_, err := svc.Register(ctx, RegisterRequest{UserID: "alice", VerificationValue: "7"})
	require.NoError(t, err)
	_, err = svc.Challenge(ctx, ChallengeRequest{UserID: "alice"})
	require.NoError(t, err)
	resp, err := svc.Verify(ctx, VerifyRequest{UserID: "alice", Challenge: "5", Proof: "17"})
	require.NoError(t, err)

	revoked, err := svc.RevokeSession(ctx, RevokeRequest{UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, revoked.Revoked)

	assert.False(t, svc.ValidateSession(ctx, ValidateRequest{UserID: "alice", Token: *resp.Token}).Valid)

	_, err = svc.RevokeSession(ctx, RevokeRequest{UserID: "alice"})
	assert.True(t, errors.Is(err, zkerr.ErrNoActiveSession), "got %v", err)
}

func TestService_SchnorrRoundTrip(t *testing.T) {
	ctx := context.Background()
	scheme := schnorr.NewSchnorrScheme(field.DefaultParams())
	svc := NewService(storage.NewMemoryStore(), scheme, nil, Config{}, nil)

	secret, err := schnorr.GenerateSecret(scheme.Params())
	require.NoError(t, err)
	v, err := scheme.VerificationValue(secret)
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{UserID: "alice", VerificationValue: field.FormatDecimal(v)})
	require.NoError(t, err)

	ch, err := svc.Challenge(ctx, ChallengeRequest{UserID: "alice"})
	require.NoError(t, err)
	c, err := field.ParseDecimal(ch.Challenge)
	require.NoError(t, err)

	proof, err := scheme.Prove(secret, c)
	require.NoError(t, err)

	t.Run("MissingCommitment", func(t *testing.T) {
		_, err := svc.Verify(ctx, VerifyRequest{
			UserID:    "alice",
			Challenge: ch.Challenge,
			Proof:     field.FormatDecimal(proof.Response),
		})
		assert.Equal(t, zkerr.CodeInvalidInput, zkerr.CodeOf(err))
	})

	t.Run("Valid", func(t *testing.T) {
		resp, err := svc.Verify(ctx, VerifyRequest{
			UserID:     "alice",
			Challenge:  ch.Challenge,
			Proof:      field.FormatDecimal(proof.Response),
			Commitment: field.FormatDecimal(proof.Commitment),
		})
		require.NoError(t, err)
		assert.True(t, resp.Verified)
		// No signer, no access token
		assert.Empty(t, resp.AccessToken)
	})
}

func TestService_UserInfoAndStats(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	svc := toyService(t, clk)

	_, err := svc.Register(ctx, RegisterRequest{UserID: "alice", VerificationValue: "7"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{UserID: "bob", VerificationValue: "11"})
	require.NoError(t, err)
	_, err = svc.Challenge(ctx, ChallengeRequest{UserID: "bob"})
	require.NoError(t, err)

	info, err := svc.UserInfo(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, info.Registered)
	assert.Equal(t, schnorr.SchemePow, info.Scheme)

	_, err = svc.UserInfo(ctx, "carol")
	assert.True(t, errors.Is(err, zkerr.ErrUnknownUser))

	users, err := svc.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Identities)
	assert.Equal(t, 0, stats.Sessions)
	assert.Equal(t, 1, stats.PendingChallenges)

	params := svc.Params()
	assert.Equal(t, "23", params.P)
	assert.Equal(t, "5", params.G)
	assert.Equal(t, int64(60), params.ChallengeTTL)
	assert.Equal(t, int64(3600), params.SessionTTL)

	assert.NoError(t, svc.Health(ctx))
}
