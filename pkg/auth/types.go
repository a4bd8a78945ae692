package auth

// Numbers travel as decimal strings and times as unix seconds.

// RegisterRequest represents the registration request
type RegisterRequest struct {
	UserID            string `json:"user_id"`
	VerificationValue string `json:"verification_value"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	Message string `json:"message"`
}

// ChallengeRequest asks for a fresh challenge
type ChallengeRequest struct {
	UserID string `json:"user_id"`
}

// ChallengeResponse carries the issued challenge
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// VerifyRequest submits a proof. Commitment is required under the schnorr
// scheme and ignored under pow.
type VerifyRequest struct {
	UserID     string `json:"user_id"`
	Challenge  string `json:"challenge"`
	Proof      string `json:"proof"`
	Commitment string `json:"commitment,omitempty"`
}

// Token is the session token handed out on successful verification
type Token struct {
	UserID    string `json:"user_id"`
	TokenID   string `json:"token_id"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// VerifyResponse reports the verification outcome
type VerifyResponse struct {
	Verified    bool   `json:"verified"`
	Token       *Token `json:"token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ValidateRequest presents a session token for validation
type ValidateRequest struct {
	UserID string `json:"user_id"`
	Token  Token  `json:"token"`
}

// ValidateResponse reports whether the token is live
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// RevokeRequest ends a user's session
type RevokeRequest struct {
	UserID string `json:"user_id"`
}

// RevokeResponse confirms revocation
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// UserInfoResponse describes a registered user
type UserInfoResponse struct {
	UserID       string `json:"user_id"`
	Registered   bool   `json:"registered"`
	RegisteredAt int64  `json:"registered_at"`
	Scheme       string `json:"scheme"`
}

// ParamsResponse describes the public parameters
type ParamsResponse struct {
	P            string `json:"p"`
	G            string `json:"g"`
	Scheme       string `json:"scheme"`
	ChallengeTTL int64  `json:"challenge_ttl"`
	SessionTTL   int64  `json:"session_ttl"`
}

// StatsResponse carries service counters
type StatsResponse struct {
	Identities        int `json:"identities"`
	Sessions          int `json:"sessions"`
	PendingChallenges int `json:"pending_challenges"`
}

// MeResponse describes the caller of an authenticated request
type MeResponse struct {
	UserID    string `json:"user_id"`
	TokenID   string `json:"token_id"`
	Scheme    string `json:"scheme,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
}
