// Package jwt mints and verifies the access tokens that wrap an identification
// session. A token names the session it was minted for, so a guard can check
// the session is still live and honor revocation.
package jwt

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// AlgorithmES256 is the only signing algorithm issued and accepted.
const AlgorithmES256 = "ES256"

// TokenSigner defines the interface for JWT signing
type TokenSigner interface {
	// Sign creates a JWT with the given claims
	Sign(claims jwt.Claims) (string, error)

	// JWKS returns the public keys for JWT verification
	JWKS() jwk.Set

	// Algorithm returns the signing algorithm
	Algorithm() string
}

// TokenVerifier defines the interface for JWT verification
type TokenVerifier interface {
	// Verify verifies a JWT and returns the claims
	Verify(token string, expectedAudience string) (*Claims, error)
}

// Claims are the claims of a session access token.
// Subject is the user ID and ID (jti) is the session token ID.
type Claims struct {
	ZK *ZKClaims `json:"zk,omitempty"`
	jwt.RegisteredClaims
}

// ZKClaims describe how the subject proved their identity.
type ZKClaims struct {
	Scheme string `json:"scheme"` // "pow" or "schnorr"
	Group  string `json:"grp"`    // group identifier, see GroupName
}

// UserID returns the subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenID returns the session token ID carried in jti.
func (c *Claims) TokenID() string {
	return c.ID
}

// ES256Signer implements JWT signing using ECDSA P-256
type ES256Signer struct {
	privateKey *ecdsa.PrivateKey
	keyID      string
	issuer     string
	jwks       jwk.Set
}

// NewES256Signer creates a new ES256 JWT signer
func NewES256Signer(privateKey *ecdsa.PrivateKey, keyID, issuer string) (*ES256Signer, error) {
	publicJWK, err := jwk.FromRaw(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from public key: %w", err)
	}

	if err := publicJWK.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}

	if err := publicJWK.Set(jwk.AlgorithmKey, AlgorithmES256); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	if err := publicJWK.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("failed to set key usage: %w", err)
	}

	jwks := jwk.NewSet()
	if err := jwks.AddKey(publicJWK); err != nil {
		return nil, fmt.Errorf("failed to build JWKS: %w", err)
	}

	return &ES256Signer{
		privateKey: privateKey,
		keyID:      keyID,
		issuer:     issuer,
		jwks:       jwks,
	}, nil
}

// Issuer returns the issuer the signer was configured with.
func (s *ES256Signer) Issuer() string {
	return s.issuer
}

// Sign creates a JWT with the given claims
func (s *ES256Signer) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyID

	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// JWKS returns the public keys for JWT verification
func (s *ES256Signer) JWKS() jwk.Set {
	return s.jwks
}

// Algorithm returns the signing algorithm
func (s *ES256Signer) Algorithm() string {
	return AlgorithmES256
}

// JWTVerifier checks tokens against an issuer's JWKS.
type JWTVerifier struct {
	issuerJWKS jwk.Set
	issuer     string
	now        func() time.Time
}

// NewJWTVerifier creates a verifier. When issuer is non-empty the iss claim
// must match it.
func NewJWTVerifier(issuerJWKS jwk.Set, issuer string) *JWTVerifier {
	return &JWTVerifier{
		issuerJWKS: issuerJWKS,
		issuer:     issuer,
		now:        time.Now,
	}
}

// Verify verifies a JWT and returns the claims
func (v *JWTVerifier) Verify(tokenString string, expectedAudience string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{AlgorithmES256}),
		jwt.WithAudience(expectedAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid JWT")
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("token does not name a session")
	}

	return claims, nil
}

func (v *JWTVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("missing key ID")
	}

	key, ok := v.issuerJWKS.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("key not found: %s", kid)
	}

	var publicKey interface{}
	if err := key.Raw(&publicKey); err != nil {
		return nil, fmt.Errorf("failed to extract public key: %w", err)
	}

	return publicKey, nil
}

// SessionToken describes the session an access token is minted for.
type SessionToken struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
	Scheme    string
	Group     string
}

// MintSessionToken signs an access token for session. The token never
// outlives the session; ttl shortens it further when positive.
func MintSessionToken(
	signer TokenSigner,
	issuer, audience string,
	session SessionToken,
	ttl time.Duration,
	now time.Time,
) (string, time.Time, error) {
	expiresAt := session.ExpiresAt
	if ttl > 0 && now.Add(ttl).Before(expiresAt) {
		expiresAt = now.Add(ttl)
	}

	claims := &Claims{
		ZK: &ZKClaims{
			Scheme: session.Scheme,
			Group:  session.Group,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   session.UserID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        session.TokenID,
		},
	}

	token, err := signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// GroupName identifies the modular group in the zk.grp claim, e.g.
// "modp-256" for a 256-bit prime.
func GroupName(bitLen int) string {
	return fmt.Sprintf("modp-%d", bitLen)
}
