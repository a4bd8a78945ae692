// Package client talks to the identity service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/auth"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/prover"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// Client is an HTTP client for the identity service
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the service at baseURL
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Register binds userID to v
func (c *Client) Register(ctx context.Context, userID string, v *big.Int) error {
	return c.do(ctx, http.MethodPost, "/register", "", auth.RegisterRequest{
		UserID:            userID,
		VerificationValue: field.FormatDecimal(v),
	}, nil)
}

// Challenge requests a fresh challenge for userID
func (c *Client) Challenge(ctx context.Context, userID string) (*big.Int, error) {
	var resp auth.ChallengeResponse
	if err := c.do(ctx, http.MethodPost, "/challenge", "", auth.ChallengeRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}

	challenge, err := field.ParseDecimal(resp.Challenge)
	if err != nil {
		return nil, fmt.Errorf("server sent a malformed challenge: %w", err)
	}
	return challenge, nil
}

// Verify submits proof for challenge. A rejected proof comes back as
// Verified=false with a nil error.
func (c *Client) Verify(ctx context.Context, userID string, challenge *big.Int, proof *schnorr.Proof) (*auth.VerifyResponse, error) {
	req := auth.VerifyRequest{
		UserID:    userID,
		Challenge: field.FormatDecimal(challenge),
		Proof:     field.FormatDecimal(proof.Response),
	}
	if proof.Commitment != nil {
		req.Commitment = field.FormatDecimal(proof.Commitment)
	}

	var resp auth.VerifyResponse
	status, body, err := c.send(ctx, http.MethodPost, "/verify", "", req)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK, status == http.StatusUnauthorized:
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &resp, nil
	default:
		return nil, responseError(status, body)
	}
}

// Login runs challenge, proof and verification for the wallet's user
func (c *Client) Login(ctx context.Context, w *prover.Wallet) (*auth.VerifyResponse, error) {
	challenge, err := c.Challenge(ctx, w.UserID())
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	proof, err := w.Prove(challenge)
	if err != nil {
		return nil, err
	}

	resp, err := c.Verify(ctx, w.UserID(), challenge, proof)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return resp, nil
}

// ValidateSession reports whether token is the user's live session
func (c *Client) ValidateSession(ctx context.Context, userID string, token auth.Token) (bool, error) {
	var resp auth.ValidateResponse
	if err := c.do(ctx, http.MethodPost, "/session/validate", "", auth.ValidateRequest{UserID: userID, Token: token}, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// RevokeSession ends the user's session
func (c *Client) RevokeSession(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/session/revoke", "", auth.RevokeRequest{UserID: userID}, nil)
}

// UserInfo reports the registration status of userID
func (c *Client) UserInfo(ctx context.Context, userID string) (*auth.UserInfoResponse, error) {
	var resp auth.UserInfoResponse
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Params fetches the server's group and builds the matching scheme
func (c *Client) Params(ctx context.Context) (schnorr.Scheme, error) {
	var resp auth.ParamsResponse
	if err := c.do(ctx, http.MethodGet, "/params", "", nil, &resp); err != nil {
		return nil, err
	}

	p, err := field.ParseDecimal(resp.P)
	if err != nil {
		return nil, fmt.Errorf("server sent a malformed modulus: %w", err)
	}
	g, err := field.ParseDecimal(resp.G)
	if err != nil {
		return nil, fmt.Errorf("server sent a malformed generator: %w", err)
	}
	params, err := field.NewParams(p, g)
	if err != nil {
		return nil, err
	}

	return schnorr.FromName(resp.Scheme, params)
}

// Me calls the bearer-authenticated identity endpoint
func (c *Client) Me(ctx context.Context, accessToken string) (*auth.MeResponse, error) {
	var resp auth.MeResponse
	if err := c.do(ctx, http.MethodGet, "/me", accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JWKS fetches the keys the service signs access tokens with
func (c *Client) JWKS(ctx context.Context) (jwk.Set, error) {
	status, body, err := c.send(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch JWKS: HTTP %d", status)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return set, nil
}

// Sessions adapts the service's session validation endpoint for use by a
// relying party's middleware.
func (c *Client) Sessions() *RemoteSessions {
	return &RemoteSessions{client: c}
}

// RemoteSessions validates sessions against the identity service
type RemoteSessions struct {
	client *Client
}

// Validate reports whether tokenID is the user's live session. Transport
// failures count as invalid.
func (s *RemoteSessions) Validate(ctx context.Context, userID, tokenID string) bool {
	valid, err := s.client.ValidateSession(ctx, userID, auth.Token{UserID: userID, TokenID: tokenID})
	return err == nil && valid
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, dst interface{}) error {
	status, respBody, err := c.send(ctx, method, path, bearer, body)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return responseError(status, respBody)
	}

	if dst != nil {
		if err := json.Unmarshal(respBody, dst); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path, bearer string, body interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// responseError turns an error body back into a *zkerr.Error when it carries
// a code, so callers can match it with errors.Is.
func responseError(status int, body []byte) error {
	var e struct {
		Code  zkerr.Code `json:"code"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Code != "" {
		return zkerr.New(e.Code, e.Error)
	}
	return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
}
