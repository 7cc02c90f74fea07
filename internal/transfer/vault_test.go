package transfer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/auctiond/internal/domain"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestVault_CollectAndPay(t *testing.T) {
	ctx := context.Background()
	v := NewVault()
	v.Fund(alice, big.NewInt(500))

	require.NoError(t, v.Collect(ctx, alice, big.NewInt(200)))
	assert.Equal(t, big.NewInt(300), v.BalanceOf(alice))
	assert.Equal(t, big.NewInt(200), v.EscrowBalance())

	require.NoError(t, v.Pay(ctx, bob, big.NewInt(150)))
	assert.Equal(t, big.NewInt(150), v.BalanceOf(bob))
	assert.Equal(t, big.NewInt(50), v.EscrowBalance())
}

func TestVault_CollectInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	v := NewVault()
	v.Fund(alice, big.NewInt(10))

	err := v.Collect(ctx, alice, big.NewInt(11))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, big.NewInt(10), v.BalanceOf(alice))

	// Unknown accounts hold nothing.
	err = v.Collect(ctx, bob, big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestVault_PayRejectingRecipient(t *testing.T) {
	ctx := context.Background()
	v := NewVault()
	v.Fund(alice, big.NewInt(100))
	require.NoError(t, v.Collect(ctx, alice, big.NewInt(100)))

	v.SetRejecting(bob, true)
	err := v.Pay(ctx, bob, big.NewInt(50))
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, big.NewInt(100), v.EscrowBalance())

	v.SetRejecting(bob, false)
	require.NoError(t, v.Pay(ctx, bob, big.NewInt(50)))
}

func TestVault_PayEscrowShort(t *testing.T) {
	ctx := context.Background()
	v := NewVault()

	err := v.Pay(ctx, bob, big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrTransferFailed)
}

func TestVault_NonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	v := NewVault()
	v.Fund(alice, big.NewInt(10))

	require.Error(t, v.Collect(ctx, alice, big.NewInt(0)))
	require.Error(t, v.Collect(ctx, alice, nil))
	require.Error(t, v.Pay(ctx, bob, big.NewInt(-5)))
}
