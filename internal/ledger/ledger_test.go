package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/orbitdex/dexbook/pkg/models"
)

const dai = models.AssetID("DAI")

func TestLockUnlock(t *testing.T) {
	l := NewInMemoryLedger(zaptest.NewLogger(t))
	alice := uuid.New()

	l.Mint(dai, alice, decimal.NewFromInt(100))
	require.NoError(t, l.Lock(dai, alice, decimal.NewFromInt(60)))

	assert.True(t, decimal.NewFromInt(40).Equal(l.FreeBalance(dai, alice)))
	assert.True(t, decimal.NewFromInt(60).Equal(l.LockedBalance(dai, alice)))

	require.NoError(t, l.Unlock(dai, alice, decimal.NewFromInt(60)))
	assert.True(t, decimal.NewFromInt(100).Equal(l.FreeBalance(dai, alice)))
	assert.True(t, l.LockedBalance(dai, alice).IsZero())
}

func TestLockInsufficientBalance(t *testing.T) {
	l := NewInMemoryLedger(zaptest.NewLogger(t))
	alice := uuid.New()

	l.Mint(dai, alice, decimal.NewFromInt(10))
	err := l.Lock(dai, alice, decimal.NewFromInt(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// The failed lock must not move anything.
	assert.True(t, decimal.NewFromInt(10).Equal(l.FreeBalance(dai, alice)))
	assert.True(t, l.LockedBalance(dai, alice).IsZero())
}

func TestUnlockInsufficientLocked(t *testing.T) {
	l := NewInMemoryLedger(zaptest.NewLogger(t))
	alice := uuid.New()

	l.Mint(dai, alice, decimal.NewFromInt(10))
	require.NoError(t, l.Lock(dai, alice, decimal.NewFromInt(5)))
	require.ErrorIs(t, l.Unlock(dai, alice, decimal.NewFromInt(6)), ErrInsufficientLocked)
}

func TestTransferSpendsLocked(t *testing.T) {
	l := NewInMemoryLedger(zaptest.NewLogger(t))
	alice, bob := uuid.New(), uuid.New()

	l.Mint(dai, alice, decimal.NewFromInt(100))
	require.NoError(t, l.Lock(dai, alice, decimal.NewFromInt(100)))
	require.NoError(t, l.Transfer(dai, alice, bob, decimal.NewFromInt(30)))

	assert.True(t, decimal.NewFromInt(70).Equal(l.LockedBalance(dai, alice)))
	assert.True(t, decimal.NewFromInt(30).Equal(l.FreeBalance(dai, bob)))

	// Transfers never touch the free bucket of the sender.
	assert.True(t, l.FreeBalance(dai, alice).IsZero())
}

func TestTransferRequiresEscrow(t *testing.T) {
	l := NewInMemoryLedger(zaptest.NewLogger(t))
	alice, bob := uuid.New(), uuid.New()

	l.Mint(dai, alice, decimal.NewFromInt(100))
	// Nothing locked yet.
	require.ErrorIs(t, l.Transfer(dai, alice, bob, decimal.NewFromInt(1)), ErrInsufficientLocked)
}
