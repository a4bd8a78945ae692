package identity

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

func newPowRegistry(t *testing.T) *Registry {
	t.Helper()
	params, err := field.NewParams(big.NewInt(23), big.NewInt(5))
	require.NoError(t, err)
	return NewRegistry(storage.NewMemoryStore(), schnorr.NewPowScheme(params), nil)
}

func TestRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	reg := newPowRegistry(t)

	require.NoError(t, reg.Register(ctx, "alice", big.NewInt(7)))

	v, ok, err := reg.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v.Int64())

	v, ok, err = reg.Lookup(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestRegisterIsOneShot(t *testing.T) {
	ctx := context.Background()
	reg := newPowRegistry(t)

	require.NoError(t, reg.Register(ctx, "alice", big.NewInt(7)))

	err := reg.Register(ctx, "alice", big.NewInt(9))
	assert.True(t, errors.Is(err, zkerr.ErrAlreadyRegistered), "got %v", err)

	v, _, err := reg.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int64(), "first value must be kept")
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	reg := newPowRegistry(t)

	cases := []struct {
		name   string
		userID string
		v      *big.Int
	}{
		{"empty user", "", big.NewInt(7)},
		{"blank user", "   ", big.NewInt(7)},
		{"long user", strings.Repeat("a", MaxUserIDLength+1), big.NewInt(7)},
		{"nil value", "alice", nil},
		{"value equals P", "alice", big.NewInt(23)},
		{"negative value", "alice", big.NewInt(-1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Register(ctx, tc.userID, tc.v)
			assert.Equal(t, zkerr.CodeInvalidInput, zkerr.CodeOf(err))
		})
	}

	_, ok, _ := reg.Lookup(ctx, "alice")
	assert.False(t, ok, "rejected registrations must not create state")
}

func TestSchnorrRegistryRejectsDegenerateValues(t *testing.T) {
	ctx := context.Background()
	params := field.DefaultParams()
	reg := NewRegistry(storage.NewMemoryStore(), schnorr.NewSchnorrScheme(params), nil)

	assert.Error(t, reg.Register(ctx, "alice", big.NewInt(1)))
	assert.Error(t, reg.Register(ctx, "alice", params.Order()))
	assert.NoError(t, reg.Register(ctx, "alice", big.NewInt(9)))
}

func TestConcurrentRegistrationHasOneWinner(t *testing.T) {
	ctx := context.Background()
	reg := newPowRegistry(t)

	const n = 50
	var wins atomic.Int32

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			err := reg.Register(ctx, "dave", big.NewInt(int64(i%23)))
			if err == nil {
				wins.Add(1)
				return nil
			}
			if errors.Is(err, zkerr.ErrAlreadyRegistered) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	reg := newPowRegistry(t)

	_, err := reg.Get(ctx, "alice")
	assert.True(t, errors.Is(err, zkerr.ErrUnknownUser))

	require.NoError(t, reg.Register(ctx, "alice", big.NewInt(7)))
	require.NoError(t, reg.Register(ctx, "bob", big.NewInt(3)))

	identity, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UserID)

	all, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
