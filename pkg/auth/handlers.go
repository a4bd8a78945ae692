package auth

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/jwt"
	mw "github.com/mintmojito-lite/sovereign-identity-layer/pkg/middleware"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

const maxBodyBytes = 64 << 10

// Handlers contains the HTTP handlers for the identity service
type Handlers struct {
	service  *Service
	signer   jwt.TokenSigner
	verifier jwt.TokenVerifier
	audience string
	logger   logging.Logger
}

// NewHandlers creates the HTTP handlers. signer may be nil, which disables
// the JWKS endpoint and the bearer-authenticated routes.
func NewHandlers(service *Service, signer jwt.TokenSigner, audience string, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.Nop()
	}

	h := &Handlers{
		service:  service,
		signer:   signer,
		audience: audience,
		logger:   logger.With("component", "http"),
	}

	if es, ok := signer.(*jwt.ES256Signer); ok {
		h.verifier = jwt.NewJWTVerifier(signer.JWKS(), es.Issuer())
	} else if signer != nil {
		h.verifier = jwt.NewJWTVerifier(signer.JWKS(), "")
	}

	return h
}

// Mount registers every route on r
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/params", h.Params)

	r.Post("/register", h.Register)
	r.Post("/challenge", h.Challenge)
	r.Post("/verify", h.Verify)

	r.Route("/session", func(r chi.Router) {
		r.Post("/validate", h.ValidateSession)
		r.Post("/revoke", h.RevokeSession)
	})

	r.Get("/users/{user_id}", h.UserInfo)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/users", h.Users)
		r.Get("/stats", h.Stats)
	})

	if h.verifier != nil {
		r.Get("/.well-known/jwks.json", h.JWKS)
		r.With(mw.RequireSession(h.verifier, h.audience, h.service.Sessions())).Get("/me", h.Me)
	}
}

// Router returns a chi router with every route mounted
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

// Register handles user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info(r.Context(), "user registered", "user_id", req.UserID)
	writeJSON(w, http.StatusCreated, resp)
}

// Challenge issues a challenge for a registered user
func (h *Handlers) Challenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Challenge(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Verify checks a proof against the user's pending challenge
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Verify(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if !resp.Verified {
		h.logger.Info(r.Context(), "proof rejected", "user_id", req.UserID)
		resp.Error = "proof verification failed"
		writeJSON(w, http.StatusUnauthorized, resp)
		return
	}

	h.logger.Info(r.Context(), "proof verified", "user_id", req.UserID, "token_id", resp.Token.TokenID)
	writeJSON(w, http.StatusOK, resp)
}

// ValidateSession reports whether a session token is live. Malformed bodies
// are answered with valid=false rather than an error.
func (h *Handlers) ValidateSession(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, &ValidateResponse{Valid: false})
		return
	}

	writeJSON(w, http.StatusOK, h.service.ValidateSession(r.Context(), req))
}

// RevokeSession ends a user's session
func (h *Handlers) RevokeSession(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.RevokeSession(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info(r.Context(), "session revoked", "user_id", req.UserID)
	writeJSON(w, http.StatusOK, resp)
}

// UserInfo reports whether a user is registered
func (h *Handlers) UserInfo(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.UserInfo(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Users lists registered users
func (h *Handlers) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// Stats returns service counters
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Params returns the public group parameters
func (h *Handlers) Params(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, h.service.Params())
}

// Health reports whether the backing store is reachable
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.Error(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JWKS serves the JSON Web Key Set
func (h *Handlers) JWKS(w http.ResponseWriter, r *http.Request) {
	jwks := h.signer.JWKS()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300") // Cache for 5 minutes

	if err := json.NewEncoder(w).Encode(jwks); err != nil {
		http.Error(w, "failed to encode JWKS", http.StatusInternalServerError)
		return
	}
}

// Me describes the caller of a bearer-authenticated request
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.GetSessionClaims(r)
	if !ok {
		http.Error(w, "no session claims", http.StatusUnauthorized)
		return
	}

	resp := &MeResponse{
		UserID:  claims.UserID(),
		TokenID: claims.TokenID(),
	}
	if claims.ZK != nil {
		resp.Scheme = claims.ZK.Scheme
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: zkerr.CodeInvalidInput, Error: "invalid JSON"})
		return false
	}
	return true
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := zkerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "code", zkerr.CodeOf(err))
	}

	writeJSON(w, status, newErrorResponse(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
