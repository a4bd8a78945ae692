// Command demo runs the whole identification flow in one process: a service
// on a loopback listener, wallets whose secrets are sealed under a PIN, and
// clients logging in, being replayed against, and being revoked.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http/httptest"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/auth"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/client"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/custodian"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/jwt"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/prover"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

const audience = "zkid-demo"

func main() {
	var (
		users      = flag.Int("users", 4, "Number of users logging in concurrently")
		schemeName = flag.String("scheme", schnorr.SchemeSchnorr, "Proof scheme (schnorr|pow)")
		pin        = flag.String("pin", "1234", "PIN sealing the demo wallets")
		logLevel   = flag.String("log-level", "warn", "Service log level")
	)
	flag.Parse()

	if err := run(*users, *schemeName, *pin, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
		os.Exit(1)
	}
}

func run(users int, schemeName, pin, logLevel string) error {
	ctx := context.Background()
	if users < 1 {
		users = 1
	}

	scheme, err := schnorr.FromName(schemeName, field.DefaultParams())
	if err != nil {
		return err
	}

	key, err := jwt.GenerateES256KeyPair()
	if err != nil {
		return err
	}
	signer, err := jwt.NewES256Signer(key, "demo-key", "https://demo.zkid.example")
	if err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stderr, logLevel)
	svc := auth.NewService(storage.NewMemoryStore(), scheme, signer, auth.Config{
		Issuer:   "https://demo.zkid.example",
		Audience: audience,
		TokenTTL: 15 * time.Minute,
	}, logger)

	server := httptest.NewServer(auth.NewHandlers(svc, signer, audience, logger).Router())
	defer server.Close()

	keyDir, err := os.MkdirTemp("", "zkid-demo-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(keyDir)

	sealed, err := custodian.NewSealed(keyDir, []byte(pin))
	if err != nil {
		return err
	}

	api := client.New(server.URL)

	fmt.Printf("=== Identification demo (%s scheme, %d-bit group) ===\n", scheme.Name(), scheme.Params().P.BitLen())
	fmt.Printf("Service listening on %s\n\n", server.URL)

	fmt.Printf("Step 1: %d wallets enroll, register and log in concurrently\n", users)
	logins := make([]*auth.VerifyResponse, users)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < users; i++ {
		i := i
		g.Go(func() error {
			userID := fmt.Sprintf("user%03d", i)
			wallet := prover.NewWallet(userID, scheme, sealed)

			v, err := wallet.Enroll()
			if err != nil {
				return fmt.Errorf("%s: enroll: %w", userID, err)
			}
			if err := api.Register(gctx, userID, v); err != nil {
				return fmt.Errorf("%s: register: %w", userID, err)
			}

			resp, err := api.Login(gctx, wallet)
			if err != nil {
				return fmt.Errorf("%s: login: %w", userID, err)
			}
			if !resp.Verified {
				return fmt.Errorf("%s: proof rejected", userID)
			}
			logins[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, resp := range logins {
		fmt.Printf("  %s verified, session %s\n", resp.Token.UserID, resp.Token.TokenID)
	}

	alice := prover.NewWallet("user000", scheme, sealed)

	fmt.Println("\nStep 2: a second registration for the same user is refused")
	v, err := alice.VerificationValue()
	if err != nil {
		return err
	}
	if err := api.Register(ctx, alice.UserID(), v); !errors.Is(err, zkerr.ErrAlreadyRegistered) {
		return fmt.Errorf("expected duplicate registration to fail, got %v", err)
	}
	fmt.Println("  rejected: ALREADY_REGISTERED")

	fmt.Println("\nStep 3: a replayed transcript is refused")
	challenge, err := api.Challenge(ctx, alice.UserID())
	if err != nil {
		return err
	}
	proof, err := alice.Prove(challenge)
	if err != nil {
		return err
	}
	if resp, err := api.Verify(ctx, alice.UserID(), challenge, proof); err != nil || !resp.Verified {
		return fmt.Errorf("fresh proof should verify: %v", err)
	}
	_, err = api.Verify(ctx, alice.UserID(), challenge, proof)
	if !zkerr.IsChallengeError(err) {
		return fmt.Errorf("expected replay to fail on the challenge, got %v", err)
	}
	fmt.Printf("  rejected: %s\n", zkerr.CodeOf(err))

	fmt.Println("\nStep 4: the wallet will not unlock with a wrong PIN")
	wrongPIN, err := custodian.NewSealed(keyDir, []byte(pin+"0"))
	if err != nil {
		return err
	}
	if _, err := prover.NewWallet(alice.UserID(), scheme, wrongPIN).Prove(challenge); !errors.Is(err, custodian.ErrUnlock) {
		return fmt.Errorf("expected unlock failure, got %v", err)
	}
	fmt.Println("  access denied")

	fmt.Println("\nStep 5: revocation")
	session, err := api.Login(ctx, alice)
	if err != nil {
		return err
	}
	if !session.Verified {
		return errors.New("login before revocation should verify")
	}

	me, err := api.Me(ctx, session.AccessToken)
	if err != nil {
		return err
	}
	fmt.Printf("  /me as %s before revocation\n", me.UserID)

	if err := api.RevokeSession(ctx, alice.UserID()); err != nil {
		return err
	}
	valid, err := api.ValidateSession(ctx, alice.UserID(), *session.Token)
	if err != nil {
		return err
	}
	if _, err := api.Me(ctx, session.AccessToken); err == nil {
		return errors.New("access token should stop working after revocation")
	}
	fmt.Printf("  session valid after revocation: %t; access token refused\n", valid)

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nDone: %d identities, %d live sessions, %d pending challenges\n",
		stats.Identities, stats.Sessions, stats.PendingChallenges)
	return nil
}
