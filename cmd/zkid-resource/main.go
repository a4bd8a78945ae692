// Command zkid-resource is a relying-party API that accepts access tokens
// minted by zkid-authd and asks the identity service whether the session
// behind each token is still live.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/client"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/jwt"
	mw "github.com/mintmojito-lite/sovereign-identity-layer/pkg/middleware"
)

func main() {
	var (
		addr       = flag.String("addr", ":8081", "Server address")
		authServer = flag.String("auth-server", "http://localhost:8080", "Identity service base URL")
		issuer     = flag.String("issuer", "https://auth.zkid.example", "Expected JWT issuer")
		audience   = flag.String("audience", "zkid-api", "Expected JWT audience")
		logLevel   = flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	)
	flag.Parse()

	logger := logging.NewJSONLogger(os.Stdout, *logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *addr, *authServer, *issuer, *audience); err != nil {
		logger.Error(ctx, "zkid-resource failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger logging.Logger, addr, authServer, issuer, audience string) error {
	identity := client.New(authServer)

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	issuerJWKS, err := identity.JWKS(fetchCtx)
	if err != nil {
		return err
	}
	logger.Info(ctx, "loaded signing keys", "auth_server", authServer, "keys", issuerJWKS.Len())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(mw.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "service": "zkid-resource"})
	})

	r.Get("/public", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"message":   "This is a public endpoint",
			"timestamp": time.Now().Unix(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.RequireSession(jwt.NewJWTVerifier(issuerJWKS, issuer), audience, identity.Sessions()))

		r.Get("/profile", func(w http.ResponseWriter, r *http.Request) {
			claims, _ := mw.GetSessionClaims(r)
			writeJSON(w, map[string]interface{}{
				"message":    "Profile data",
				"subject":    claims.UserID(),
				"session":    claims.TokenID(),
				"expires_at": claims.ExpiresAt.Unix(),
				"zk_info":    claims.ZK,
			})
		})

		r.Route("/secure", func(r chi.Router) {
			r.Use(mw.RequireScheme(schnorr.SchemeSchnorr))

			r.Get("/data", func(w http.ResponseWriter, r *http.Request) {
				claims, _ := mw.GetSessionClaims(r)
				writeJSON(w, map[string]interface{}{
					"message":   "This endpoint requires a schnorr-scheme session",
					"subject":   claims.UserID(),
					"zk_scheme": claims.ZK.Scheme,
					"zk_group":  claims.ZK.Group,
				})
			})
		})
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server starting", "addr", addr, "audience", audience)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
