package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
)

// Transferor moves token balances between accounts. The ledger only ever
// talks to this interface; implementations range from the in-memory bank
// below to a bridge that submits real ERC-20 transfers.
type Transferor interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
}

// Bank is an in-memory token balance store keyed by (token, account).
type Bank struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits an account out of thin air. Used for seeding demo balances.
func (b *Bank) Mint(token, account common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(token, account, amount)
}

func (b *Bank) BalanceOf(token, account common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if accounts, ok := b.balances[token]; ok {
		if bal, ok := accounts[account]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

func (b *Bank) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	accounts := b.balances[token]
	bal, ok := accounts[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token %s account %s", ErrInsufficientBalance, token.Hex(), from.Hex())
	}
	bal.Sub(bal, amount)
	b.credit(token, to, amount)
	return nil
}

func (b *Bank) credit(token, account common.Address, amount *big.Int) {
	accounts, ok := b.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		b.balances[token] = accounts
	}
	bal, ok := accounts[account]
	if !ok {
		bal = new(big.Int)
		accounts[account] = bal
	}
	bal.Add(bal, amount)
}
