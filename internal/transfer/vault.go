package transfer

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ledgerworks/auctiond/internal/domain"
)

// Vault is an in-memory Bank. Bidder accounts are funded up front (from
// config or tests); the escrow account accumulates collected bids and pays
// refunds back out. Recipients can be marked as rejecting to exercise the
// failed-payment paths.
type Vault struct {
	mu        sync.Mutex
	accounts  map[common.Address]*big.Int
	escrow    *big.Int
	rejecting map[common.Address]bool
}

// NewVault creates an empty Vault.
func NewVault() *Vault {
	return &Vault{
		accounts:  make(map[common.Address]*big.Int),
		escrow:    new(big.Int),
		rejecting: make(map[common.Address]bool),
	}
}

// Fund credits an account. Used to seed bidder balances at startup.
func (v *Vault) Fund(addr common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(addr, amount)
}

// SetRejecting marks or unmarks an account as rejecting incoming payments.
func (v *Vault) SetRejecting(addr common.Address, reject bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if reject {
		v.rejecting[addr] = true
	} else {
		delete(v.rejecting, addr)
	}
}

// Collect implements Bank.
func (v *Vault) Collect(ctx context.Context, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: collect from %s: non-positive amount", from.Hex())
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	bal, ok := v.accounts[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("vault: collect %s from %s: %w", amount, from.Hex(), domain.ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	v.escrow.Add(v.escrow, amount)
	return nil
}

// Pay implements Bank.
func (v *Vault) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: pay to %s: non-positive amount", to.Hex())
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rejecting[to] {
		return fmt.Errorf("vault: pay %s to %s: recipient rejected payment: %w", amount, to.Hex(), domain.ErrTransferFailed)
	}
	if v.escrow.Cmp(amount) < 0 {
		return fmt.Errorf("vault: pay %s to %s: escrow short: %w", amount, to.Hex(), domain.ErrTransferFailed)
	}
	v.escrow.Sub(v.escrow, amount)
	v.credit(to, amount)
	return nil
}

// BalanceOf returns a copy of the account balance.
func (v *Vault) BalanceOf(addr common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if bal, ok := v.accounts[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// EscrowBalance returns a copy of the escrow balance.
func (v *Vault) EscrowBalance() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.escrow)
}

// credit assumes v.mu is held.
func (v *Vault) credit(addr common.Address, amount *big.Int) {
	bal, ok := v.accounts[addr]
	if !ok {
		bal = new(big.Int)
		v.accounts[addr] = bal
	}
	bal.Add(bal, amount)
}

// Compile-time interface check.
var _ Bank = (*Vault)(nil)
