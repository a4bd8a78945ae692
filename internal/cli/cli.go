// Package cli implements the zkid command: a wallet that enrolls with the
// identity service and logs in by proving knowledge of a sealed secret.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/auth"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/client"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/custodian"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/prover"
)

// PassphraseEnv names the environment variable that, when set, supplies the
// passphrase instead of the terminal prompt.
const PassphraseEnv = "ZKID_PASSPHRASE"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

const usage = `usage: zkid [flags] <command> [args]

commands:
  enroll               generate a secret, seal it and register
  login                prove identity and print the session
  validate <token-id>  check a session token
  revoke               end the current session
  info                 show registration status
  forget               delete the sealed secret

flags:
`

type options struct {
	server string
	keyDir string
	userID string
}

// Run executes the command line in args, writing results to stdout.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("zkid", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.server, "server", "http://localhost:8080", "Identity service base URL")
	fs.StringVar(&opts.keyDir, "keys", defaultKeyDir(), "Directory holding sealed secrets")
	fs.StringVar(&opts.userID, "user", "", "User ID")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	if opts.userID == "" {
		return errors.New("-user is required")
	}

	api := client.New(opts.server)
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "enroll":
		return enroll(ctx, api, opts, stdout, stderr)
	case "login":
		return login(ctx, api, opts, stdout, stderr)
	case "validate":
		if len(rest) != 1 {
			return errors.New("validate needs a token id")
		}
		valid, err := api.ValidateSession(ctx, opts.userID, auth.Token{UserID: opts.userID, TokenID: rest[0]})
		if err != nil {
			return err
		}
		return printJSON(stdout, auth.ValidateResponse{Valid: valid})
	case "revoke":
		if err := api.RevokeSession(ctx, opts.userID); err != nil {
			return err
		}
		return printJSON(stdout, auth.RevokeResponse{Revoked: true})
	case "info":
		info, err := api.UserInfo(ctx, opts.userID)
		if err != nil {
			return err
		}
		return printJSON(stdout, info)
	case "forget":
		w, err := openWallet(ctx, api, opts, stderr)
		if err != nil {
			return err
		}
		if err := w.Forget(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "secret for %s deleted\n", opts.userID)
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func enroll(ctx context.Context, api *client.Client, opts options, stdout, stderr io.Writer) error {
	w, err := openWallet(ctx, api, opts, stderr)
	if err != nil {
		return err
	}

	enrolled, err := w.Enrolled()
	if err != nil {
		return err
	}
	if enrolled {
		return fmt.Errorf("a secret for %s is already sealed in %s", opts.userID, opts.keyDir)
	}

	v, err := w.Enroll()
	if err != nil {
		return err
	}

	if err := api.Register(ctx, opts.userID, v); err != nil {
		// Keep the local state consistent with the server
		w.Forget()
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintf(stdout, "enrolled %s under the %s scheme\n", opts.userID, w.Scheme().Name())
	return nil
}

func login(ctx context.Context, api *client.Client, opts options, stdout, stderr io.Writer) error {
	w, err := openWallet(ctx, api, opts, stderr)
	if err != nil {
		return err
	}

	resp, err := api.Login(ctx, w)
	if err != nil {
		return err
	}
	if !resp.Verified {
		return errors.New("proof rejected: the sealed secret does not match the registration")
	}

	return printJSON(stdout, resp)
}

func openWallet(ctx context.Context, api *client.Client, opts options, stderr io.Writer) (*prover.Wallet, error) {
	scheme, err := api.Params(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch parameters: %w", err)
	}

	passphrase, err := getPassphrase(stderr)
	if err != nil {
		return nil, err
	}
	defer wipe(passphrase)

	sealed, err := custodian.NewSealed(opts.keyDir, passphrase)
	if err != nil {
		return nil, err
	}

	return prover.NewWallet(opts.userID, scheme, sealed), nil
}

// getPassphrase reads the passphrase from the environment or, failing that,
// from the terminal without echo. The caller wipes the returned slice.
func getPassphrase(w io.Writer) ([]byte, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return []byte(p), nil
	}

	if _, err := fmt.Fprint(w, "Enter passphrase: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(pw) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}
	return pw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func defaultKeyDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".zkid"
	}
	return filepath.Join(dir, "zkid")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
