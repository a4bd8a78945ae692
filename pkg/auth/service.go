// Package auth exposes the identification protocol as a service with
// decimal-string request and response types, and serves it over HTTP.
package auth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/challenge"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/identity"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/jwt"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/session"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/verifier"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// Config contains configuration for the service
type Config struct {
	Issuer       string        // JWT issuer
	Audience     string        // JWT audience
	TokenTTL     time.Duration // Access token lifetime, capped by the session
	ChallengeTTL time.Duration // Challenge lifetime
	SessionTTL   time.Duration // Session lifetime

	// Now replaces time.Now in every component when set.
	Now func() time.Time

	// ChallengeSource replaces the uniform challenge draw when set.
	ChallengeSource func() (*big.Int, error)
}

// Service wires the identity registry, challenge issuer, proof verifier and
// session manager behind one API.
type Service struct {
	store    storage.Store
	scheme   schnorr.Scheme
	registry *identity.Registry
	issuer   *challenge.Issuer
	verifier *verifier.Verifier
	sessions *session.Manager
	signer   jwt.TokenSigner
	config   Config
	logger   logging.Logger
}

// NewService builds the service over store. signer may be nil, in which case
// successful verifications return a session token but no access token.
func NewService(store storage.Store, scheme schnorr.Scheme, signer jwt.TokenSigner, config Config, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	registry := identity.NewRegistry(store, scheme, logger)
	issuer := challenge.NewIssuer(registry, scheme.Params(), challenge.Config{
		TTL:    config.ChallengeTTL,
		Now:    config.Now,
		Random: config.ChallengeSource,
	}, logger)
	sessions := session.NewManager(store,
		session.WithTTL(config.SessionTTL),
		session.WithClock(config.Now),
		session.WithLogger(logger),
	)

	return &Service{
		store:    store,
		scheme:   scheme,
		registry: registry,
		issuer:   issuer,
		verifier: verifier.New(registry, issuer, scheme, logger),
		sessions: sessions,
		signer:   signer,
		config:   config,
		logger:   logger.With("component", "auth"),
	}
}

// Sessions returns the session manager.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Challenges returns the challenge issuer.
func (s *Service) Challenges() *challenge.Issuer {
	return s.issuer
}

// Register handles user registration
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if err := identity.ValidateUserID(req.UserID); err != nil {
		return nil, err
	}

	v, err := field.ParseDecimal(req.VerificationValue)
	if err != nil {
		return nil, fmt.Errorf("verification_value: %w", err)
	}

	if err := s.registry.Register(ctx, req.UserID, v); err != nil {
		return nil, err
	}

	return &RegisterResponse{Message: fmt.Sprintf("user %s registered", req.UserID)}, nil
}

// Challenge issues a fresh challenge for a registered user
func (s *Service) Challenge(ctx context.Context, req ChallengeRequest) (*ChallengeResponse, error) {
	if err := identity.ValidateUserID(req.UserID); err != nil {
		return nil, err
	}

	c, err := s.issuer.Issue(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	return &ChallengeResponse{
		Challenge: field.FormatDecimal(c.Value),
		IssuedAt:  c.IssuedAt.Unix(),
		ExpiresAt: c.ExpiresAt.Unix(),
	}, nil
}

// Verify checks a proof and, on success, opens a session.
// A wrong proof is reported as Verified=false with a nil error.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if err := identity.ValidateUserID(req.UserID); err != nil {
		return nil, err
	}

	c, err := field.ParseDecimal(req.Challenge)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	proof, err := s.parseProof(req)
	if err != nil {
		return nil, err
	}

	ok, err := s.verifier.Verify(ctx, req.UserID, c, proof)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &VerifyResponse{Verified: false}, nil
	}

	sess, err := s.sessions.Issue(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	resp := &VerifyResponse{
		Verified: true,
		Token:    tokenFromSession(sess),
	}

	if s.signer != nil {
		now := s.config.Now()
		accessToken, expiresAt, err := jwt.MintSessionToken(s.signer, s.config.Issuer, s.config.Audience, jwt.SessionToken{
			UserID:    sess.UserID,
			TokenID:   sess.TokenID,
			ExpiresAt: sess.ExpiresAt,
			Scheme:    s.scheme.Name(),
			Group:     jwt.GroupName(s.scheme.Params().P.BitLen()),
		}, s.config.TokenTTL, now)
		if err != nil {
			return nil, fmt.Errorf("failed to mint access token: %w", err)
		}
		resp.AccessToken = accessToken
		resp.TokenType = "Bearer"
		resp.ExpiresIn = int64(expiresAt.Sub(now).Seconds())
	}

	return resp, nil
}

func (s *Service) parseProof(req VerifyRequest) (*schnorr.Proof, error) {
	response, err := field.ParseDecimal(req.Proof)
	if err != nil {
		return nil, fmt.Errorf("proof: %w", err)
	}

	proof := &schnorr.Proof{Response: response}

	if s.scheme.Name() == schnorr.SchemeSchnorr {
		if req.Commitment == "" {
			return nil, zkerr.Invalid("commitment is required for the schnorr scheme")
		}
		commitment, err := field.ParseDecimal(req.Commitment)
		if err != nil {
			return nil, fmt.Errorf("commitment: %w", err)
		}
		proof.Commitment = commitment
	}

	return proof, nil
}

// ValidateSession reports whether the presented token is the user's live
// session. Malformed or mismatched tokens are simply invalid.
func (s *Service) ValidateSession(ctx context.Context, req ValidateRequest) *ValidateResponse {
	if req.UserID == "" || req.Token.TokenID == "" {
		return &ValidateResponse{Valid: false}
	}
	if req.Token.UserID != "" && req.Token.UserID != req.UserID {
		return &ValidateResponse{Valid: false}
	}

	return &ValidateResponse{Valid: s.sessions.Validate(ctx, req.UserID, req.Token.TokenID)}
}

// RevokeSession ends the user's session
func (s *Service) RevokeSession(ctx context.Context, req RevokeRequest) (*RevokeResponse, error) {
	if err := identity.ValidateUserID(req.UserID); err != nil {
		return nil, err
	}

	if err := s.sessions.Revoke(ctx, req.UserID); err != nil {
		return nil, err
	}

	return &RevokeResponse{Revoked: true}, nil
}

// UserInfo reports the registration status of a user
func (s *Service) UserInfo(ctx context.Context, userID string) (*UserInfoResponse, error) {
	ident, err := s.registry.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserInfoResponse{
		UserID:       ident.UserID,
		Registered:   true,
		RegisteredAt: ident.CreatedAt.Unix(),
		Scheme:       s.scheme.Name(),
	}, nil
}

// Users lists registered user IDs in order
func (s *Service) Users(ctx context.Context) ([]string, error) {
	identities, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(identities))
	for _, ident := range identities {
		users = append(users, ident.UserID)
	}
	return users, nil
}

// Params describes the group and timings clients need to take part
func (s *Service) Params() *ParamsResponse {
	params := s.scheme.Params()
	return &ParamsResponse{
		P:            field.FormatDecimal(params.P),
		G:            field.FormatDecimal(params.G),
		Scheme:       s.scheme.Name(),
		ChallengeTTL: int64(s.issuer.TTL().Seconds()),
		SessionTTL:   int64(s.sessions.TTL().Seconds()),
	}
}

// Stats returns storage and in-memory counters
func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage stats: %w", err)
	}

	return &StatsResponse{
		Identities:        stats.Identities,
		Sessions:          stats.Sessions,
		PendingChallenges: s.issuer.Pending(),
	}, nil
}

// Health checks the backing store
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("storage unavailable: %w", err)
	}
	return nil
}

func tokenFromSession(sess *storage.Session) *Token {
	return &Token{
		UserID:    sess.UserID,
		TokenID:   sess.TokenID,
		IssuedAt:  sess.IssuedAt.Unix(),
		ExpiresAt: sess.ExpiresAt.Unix(),
	}
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Code  zkerr.Code `json:"code"`
	Error string     `json:"error"`
}

func newErrorResponse(err error) errorResponse {
	var zerr *zkerr.Error
	if errors.As(err, &zerr) {
		return errorResponse{Code: zerr.Code, Error: err.Error()}
	}
	return errorResponse{Code: zkerr.CodeInternal, Error: "internal error"}
}
