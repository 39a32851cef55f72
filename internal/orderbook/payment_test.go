package orderbook

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/orbitdex/dexbook/internal/ledger"
	"github.com/orbitdex/dexbook/pkg/models"
)

const (
	paymentXOR models.AssetID = "XOR"
	paymentDAI models.AssetID = "DAI"
)

func TestPaymentMergesIntents(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	p := NewPayment()
	p.Lock(paymentDAI, alice, decimal.NewFromInt(100))
	p.Lock(paymentDAI, alice, decimal.NewFromInt(50))
	p.Transfer(paymentDAI, alice, bob, decimal.NewFromInt(30))
	p.Transfer(paymentDAI, alice, bob, decimal.NewFromInt(20))
	p.Unlock(paymentDAI, alice, decimal.NewFromInt(7))
	p.Unlock(paymentDAI, alice, decimal.NewFromInt(3))

	require.Len(t, p.lockOrder, 1)
	require.Len(t, p.transferOrder, 1)
	require.Len(t, p.unlockOrder, 1)
	assert.True(t, decimal.NewFromInt(150).Equal(p.toLock[paymentKey{asset: paymentDAI, account: alice}]))
	assert.True(t, decimal.NewFromInt(50).Equal(p.transfers[transferKey{asset: paymentDAI, from: alice, to: bob}]))
	assert.True(t, decimal.NewFromInt(10).Equal(p.toUnlock[paymentKey{asset: paymentDAI, account: alice}]))
}

func TestPaymentSkipsZeroAmounts(t *testing.T) {
	p := NewPayment()
	require.True(t, p.Empty())

	p.Lock(paymentDAI, uuid.New(), decimal.Zero)
	p.Unlock(paymentDAI, uuid.New(), decimal.Zero)
	p.Transfer(paymentDAI, uuid.New(), uuid.New(), decimal.Zero)
	assert.True(t, p.Empty())
}

func TestPaymentFlushSettlesThroughEscrow(t *testing.T) {
	lg := ledger.NewInMemoryLedger(zaptest.NewLogger(t))
	alice := uuid.New()
	bob := uuid.New()
	lg.Mint(paymentDAI, alice, decimal.NewFromInt(1000))

	// Locks must land before transfers: without the lock Alice has no locked
	// DAI to spend, so a correct flush order is observable through the ledger.
	p := NewPayment()
	p.Transfer(paymentDAI, alice, bob, decimal.NewFromInt(600))
	p.Lock(paymentDAI, alice, decimal.NewFromInt(1000))
	p.Unlock(paymentDAI, alice, decimal.NewFromInt(400))
	require.NoError(t, p.Flush(lg))

	assert.True(t, decimal.NewFromInt(400).Equal(lg.FreeBalance(paymentDAI, alice)))
	assert.True(t, lg.LockedBalance(paymentDAI, alice).IsZero())
	assert.True(t, decimal.NewFromInt(600).Equal(lg.FreeBalance(paymentDAI, bob)))
}

func TestPaymentFlushInsufficientFunds(t *testing.T) {
	lg := ledger.NewInMemoryLedger(zaptest.NewLogger(t))
	alice := uuid.New()
	lg.Mint(paymentDAI, alice, decimal.NewFromInt(10))

	p := NewPayment()
	p.Lock(paymentDAI, alice, decimal.NewFromInt(100))
	err := p.Flush(lg)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// Nothing moved.
	assert.True(t, decimal.NewFromInt(10).Equal(lg.FreeBalance(paymentDAI, alice)))
	assert.True(t, lg.LockedBalance(paymentDAI, alice).IsZero())
}

func TestPaymentDistinctAssetsStaySeparate(t *testing.T) {
	alice := uuid.New()
	p := NewPayment()
	p.Lock(paymentXOR, alice, decimal.NewFromInt(1))
	p.Lock(paymentDAI, alice, decimal.NewFromInt(2))
	require.Len(t, p.lockOrder, 2)
}
