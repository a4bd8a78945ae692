package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/auth"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
)

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = orig })
}

func newServer(t *testing.T) string {
	t.Helper()
	svc := auth.NewService(storage.NewMemoryStore(), schnorr.NewSchnorrScheme(field.DefaultParams()), nil, auth.Config{}, nil)
	server := httptest.NewServer(auth.NewHandlers(svc, nil, "", nil).Router())
	t.Cleanup(server.Close)
	return server.URL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestCLI_EnrollLoginRevoke(t *testing.T) {
	stubPassword(t, "1234")
	base := []string{"-server", newServer(t), "-keys", t.TempDir(), "-user", "alice"}

	out, err := runCLI(t, append(base, "enroll")...)
	require.NoError(t, err)
	assert.Contains(t, out, "enrolled alice")

	_, err = runCLI(t, append(base, "enroll")...)
	assert.Error(t, err, "second enroll must refuse to overwrite the sealed secret")

	out, err = runCLI(t, append(base, "login")...)
	require.NoError(t, err)

	var resp auth.VerifyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.True(t, resp.Verified)
	require.NotNil(t, resp.Token)

	out, err = runCLI(t, append(base, "validate", resp.Token.TokenID)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)

	out, err = runCLI(t, append(base, "info")...)
	require.NoError(t, err)
	assert.Contains(t, out, `"registered": true`)

	_, err = runCLI(t, append(base, "revoke")...)
	require.NoError(t, err)

	out, err = runCLI(t, append(base, "validate", resp.Token.TokenID)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": false`)
}

func TestCLI_WrongPassphrase(t *testing.T) {
	server, keys := newServer(t), t.TempDir()
	base := []string{"-server", server, "-keys", keys, "-user", "alice"}

	stubPassword(t, "1234")
	_, err := runCLI(t, append(base, "enroll")...)
	require.NoError(t, err)

	stubPassword(t, "0000")
	_, err = runCLI(t, append(base, "login")...)
	assert.Error(t, err)
}

func TestCLI_PassphraseFromEnv(t *testing.T) {
	t.Setenv(PassphraseEnv, "from-env")
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return nil, errors.New("terminal must not be read") }
	t.Cleanup(func() { readPassword = orig })

	_, err := runCLI(t, "-server", newServer(t), "-keys", t.TempDir(), "-user", "bob", "enroll")
	require.NoError(t, err)
}

func TestCLI_Usage(t *testing.T) {
	_, err := runCLI(t, "-user", "alice")
	assert.Error(t, err)

	_, err = runCLI(t, "enroll")
	assert.Error(t, err)

	_, err = runCLI(t, "-server", newServer(t), "-user", "alice", "dance")
	assert.Error(t, err)
}
