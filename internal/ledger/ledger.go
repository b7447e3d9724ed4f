package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/pkg/logger"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/token"
)

var (
	ErrInvalidTokens       = errors.New("invalid token pair")
	ErrVaultNotFound       = errors.New("vault not found")
	ErrVaultInactive       = errors.New("vault is inactive")
	ErrInsufficientDeposit = errors.New("deposit below minimum")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrUnauthorizedRelayer = errors.New("unauthorized relayer")
	ErrInvalidTickRange    = errors.New("tick lower must be below tick upper")
	ErrInvalidThreshold    = errors.New("rebalance threshold out of range")
	ErrReentrantCall       = errors.New("reentrant call rejected")
	ErrVaultDrained        = errors.New("vault token balance depleted")
	ErrTransferFailed      = errors.New("token transfer failed")
)

const bpsDenominator = 10000

var ledgerLog = logger.Component("ledger")

// Ledger holds every vault's pooled balances and share accounting. All
// mutating entry points run serialized under one mutex, mirroring the
// fully-serialized transaction model; the busy flag is set across external
// token transfers and rejects any nested re-entry during that window.
type Ledger struct {
	mu      sync.Mutex
	busy    atomic.Bool
	vaults  map[uint64]*Vault
	shares  map[uint64]map[common.Address]*big.Int
	nextID  uint64
	bank    token.Transferor
	reg     *registry.Registry
	sink    model.EventSink
	account common.Address // ledger's own account in the bank, holds pooled funds
	minDep  *big.Int
	now     func() time.Time
}

func New(bank token.Transferor, reg *registry.Registry, account common.Address, minDeposit *big.Int, sink model.EventSink) *Ledger {
	if sink == nil {
		sink = model.NopSink{}
	}
	if minDeposit == nil {
		minDeposit = new(big.Int)
	}
	return &Ledger{
		vaults:  make(map[uint64]*Vault),
		shares:  make(map[uint64]map[common.Address]*big.Int),
		bank:    bank,
		reg:     reg,
		sink:    sink,
		account: account,
		minDep:  new(big.Int).Set(minDeposit),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Account is the bank account holding all pooled vault funds.
func (l *Ledger) Account() common.Address {
	return l.account
}

// CreateVault registers a new vault with zeroed balances and an active flag.
// The token pair is validated here and immutable afterwards.
func (l *Ledger) CreateVault(owner, tokenA, tokenB common.Address, params StrategyParams) (uint64, error) {
	if err := l.guardEntry(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if tokenA == (common.Address{}) || tokenB == (common.Address{}) || tokenA == tokenB {
		return 0, ErrInvalidTokens
	}
	if params.TickLower >= params.TickUpper {
		return 0, ErrInvalidTickRange
	}
	if params.RebalanceThresholdBps < 0 || params.RebalanceThresholdBps > bpsDenominator {
		return 0, ErrInvalidThreshold
	}

	l.nextID++
	id := l.nextID
	now := l.now()
	l.vaults[id] = &Vault{
		ID:            id,
		Owner:         owner,
		TokenA:        tokenA,
		TokenB:        tokenB,
		TotalShares:   new(big.Int),
		TotalTokenA:   new(big.Int),
		TotalTokenB:   new(big.Int),
		Params:        params,
		LastRebalance: now,
		IsActive:      true,
	}
	l.shares[id] = make(map[common.Address]*big.Int)

	ledgerLog.Info("vault created", "vault_id", id, "token_a", tokenA.Hex(), "token_b", tokenB.Hex())
	l.sink.Publish(model.Event{
		Type:    model.EventVaultCreated,
		VaultID: id,
		Account: owner.Hex(),
		At:      now,
	})
	return id, nil
}

// Deposit pulls both tokens from the caller and mints shares. The first
// deposit bootstraps at floor(sqrt(a*b)); later deposits mint the minimum of
// the two proportional computations, so supplying tokens in the wrong ratio
// credits at the worse ratio.
func (l *Ledger) Deposit(caller common.Address, vaultID uint64, amountA, amountB *big.Int) (*big.Int, error) {
	if err := l.guardEntry(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.vaults[vaultID]
	if !ok {
		return nil, ErrVaultNotFound
	}
	if !v.IsActive {
		return nil, ErrVaultInactive
	}
	if amountA == nil || amountB == nil || amountA.Cmp(l.minDep) < 0 || amountB.Cmp(l.minDep) < 0 {
		return nil, ErrInsufficientDeposit
	}

	shares, err := l.sharesForDeposit(v, amountA, amountB)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, ErrInsufficientDeposit
	}

	// Pull both tokens before mutating shared state. A failed second leg
	// refunds the first so the whole operation is all-or-nothing.
	if err := l.transferGuarded(v.TokenA, caller, l.account, amountA); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := l.transferGuarded(v.TokenB, caller, l.account, amountB); err != nil {
		if refundErr := l.transferGuarded(v.TokenA, l.account, caller, amountA); refundErr != nil {
			ledgerLog.Error("deposit refund failed", "vault_id", vaultID, "error", refundErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	v.TotalTokenA.Add(v.TotalTokenA, amountA)
	v.TotalTokenB.Add(v.TotalTokenB, amountB)
	v.TotalShares.Add(v.TotalShares, shares)
	l.creditShares(vaultID, caller, shares)

	l.sink.Publish(model.Event{
		Type:    model.EventDeposited,
		VaultID: vaultID,
		Account: caller.Hex(),
		At:      l.now(),
		Fields: map[string]any{
			"amount_a": amountA.String(),
			"amount_b": amountB.String(),
			"shares":   shares.String(),
		},
	})
	return new(big.Int).Set(shares), nil
}

func (l *Ledger) sharesForDeposit(v *Vault, amountA, amountB *big.Int) (*big.Int, error) {
	if v.TotalShares.Sign() == 0 {
		// Geometric-mean bootstrap. Also covers the asymmetric zero-state
		// left by fee deduction on an emptied vault: residual balances stay
		// in the pool and accrue to the bootstrapping depositor.
		product := new(big.Int).Mul(amountA, amountB)
		return new(big.Int).Sqrt(product), nil
	}
	if v.TotalTokenA.Sign() == 0 || v.TotalTokenB.Sign() == 0 {
		// Shares outstanding against a drained token side; the proportional
		// rule would divide by zero. Refuse rather than invent an exchange rate.
		return nil, ErrVaultDrained
	}
	byA := new(big.Int).Div(new(big.Int).Mul(amountA, v.TotalShares), v.TotalTokenA)
	byB := new(big.Int).Div(new(big.Int).Mul(amountB, v.TotalShares), v.TotalTokenB)
	if byA.Cmp(byB) < 0 {
		return byA, nil
	}
	return byB, nil
}

// Withdraw burns shares and pays out both tokens proportionally, rounding
// down. No minimum floor applies on the way out.
func (l *Ledger) Withdraw(caller common.Address, vaultID uint64, shares *big.Int) (*big.Int, *big.Int, error) {
	if err := l.guardEntry(); err != nil {
		return nil, nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.vaults[vaultID]
	if !ok {
		return nil, nil, ErrVaultNotFound
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, ErrInsufficientShares
	}
	held := l.shareBalance(vaultID, caller)
	if held.Cmp(shares) < 0 {
		return nil, nil, ErrInsufficientShares
	}

	amountA := new(big.Int).Div(new(big.Int).Mul(shares, v.TotalTokenA), v.TotalShares)
	amountB := new(big.Int).Div(new(big.Int).Mul(shares, v.TotalTokenB), v.TotalShares)

	// Effects before interactions; compensated on transfer failure.
	held.Sub(held, shares)
	v.TotalShares.Sub(v.TotalShares, shares)
	v.TotalTokenA.Sub(v.TotalTokenA, amountA)
	v.TotalTokenB.Sub(v.TotalTokenB, amountB)

	restore := func() {
		held.Add(held, shares)
		v.TotalShares.Add(v.TotalShares, shares)
		v.TotalTokenA.Add(v.TotalTokenA, amountA)
		v.TotalTokenB.Add(v.TotalTokenB, amountB)
	}

	if amountA.Sign() > 0 {
		if err := l.transferGuarded(v.TokenA, l.account, caller, amountA); err != nil {
			restore()
			return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	if amountB.Sign() > 0 {
		if err := l.transferGuarded(v.TokenB, l.account, caller, amountB); err != nil {
			if amountA.Sign() > 0 {
				if refundErr := l.transferGuarded(v.TokenA, caller, l.account, amountA); refundErr != nil {
					ledgerLog.Error("withdraw refund failed", "vault_id", vaultID, "error", refundErr)
				}
			}
			restore()
			return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	l.sink.Publish(model.Event{
		Type:    model.EventWithdrawn,
		VaultID: vaultID,
		Account: caller.Hex(),
		At:      l.now(),
		Fields: map[string]any{
			"amount_a": amountA.String(),
			"amount_b": amountB.String(),
			"shares":   shares.String(),
		},
	})
	return amountA, amountB, nil
}

// Rebalance applies a new tick range and collects the protocol fee. Only
// authorized relayers and the registry owner may call it. The reallocate
// percentage is decoded and reported but moves no balances.
func (l *Ledger) Rebalance(caller common.Address, vaultID uint64, actionData []byte) error {
	if err := l.guardEntry(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.reg.IsRelayer(caller) && caller != l.reg.Owner() {
		return ErrUnauthorizedRelayer
	}
	v, ok := l.vaults[vaultID]
	if !ok {
		return ErrVaultNotFound
	}
	if !v.IsActive {
		return ErrVaultInactive
	}

	action, err := DecodeRebalanceAction(actionData)
	if err != nil {
		return err
	}
	if action.TickLower >= action.TickUpper {
		return ErrInvalidTickRange
	}

	feeBps := l.reg.FeeBps()
	feeRecipient := l.reg.FeeRecipient()
	feeA := feeFor(v.TotalTokenA, feeBps)
	feeB := feeFor(v.TotalTokenB, feeBps)

	if feeA.Sign() > 0 {
		v.TotalTokenA.Sub(v.TotalTokenA, feeA)
		if err := l.transferGuarded(v.TokenA, l.account, feeRecipient, feeA); err != nil {
			v.TotalTokenA.Add(v.TotalTokenA, feeA)
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	if feeB.Sign() > 0 {
		v.TotalTokenB.Sub(v.TotalTokenB, feeB)
		if err := l.transferGuarded(v.TokenB, l.account, feeRecipient, feeB); err != nil {
			v.TotalTokenB.Add(v.TotalTokenB, feeB)
			if feeA.Sign() > 0 {
				if refundErr := l.transferGuarded(v.TokenA, feeRecipient, l.account, feeA); refundErr == nil {
					v.TotalTokenA.Add(v.TotalTokenA, feeA)
				}
			}
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	now := l.now()
	v.Params.TickLower = action.TickLower
	v.Params.TickUpper = action.TickUpper
	v.LastRebalance = now

	actionHash := crypto.Keccak256Hash(actionData)
	ledgerLog.Info("vault rebalanced",
		"vault_id", vaultID,
		"tick_lower", action.TickLower,
		"tick_upper", action.TickUpper,
		"action_hash", actionHash.Hex(),
	)
	l.sink.Publish(model.Event{
		Type:       model.EventRebalanced,
		VaultID:    vaultID,
		Account:    caller.Hex(),
		ActionHash: actionHash.Hex(),
		At:         now,
		Fields: map[string]any{
			"tick_lower":     action.TickLower,
			"tick_upper":     action.TickUpper,
			"reallocate_pct": action.ReallocatePct,
		},
	})
	if feeA.Sign() > 0 || feeB.Sign() > 0 {
		l.sink.Publish(model.Event{
			Type:    model.EventFeeCollected,
			VaultID: vaultID,
			Account: feeRecipient.Hex(),
			At:      now,
			Fields: map[string]any{
				"fee_a": feeA.String(),
				"fee_b": feeB.String(),
			},
		})
	}
	return nil
}

// SetActive soft-deactivates or reactivates a vault. Owner-gated; vaults are
// never deleted.
func (l *Ledger) SetActive(caller common.Address, vaultID uint64, active bool) error {
	if err := l.guardEntry(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.reg.Owner() {
		return ErrUnauthorizedRelayer
	}
	v, ok := l.vaults[vaultID]
	if !ok {
		return ErrVaultNotFound
	}
	v.IsActive = active
	return nil
}

func (l *Ledger) GetVault(vaultID uint64) (*Vault, error) {
	if err := l.guardEntry(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.vaults[vaultID]
	if !ok {
		return nil, ErrVaultNotFound
	}
	return v.snapshot(), nil
}

func (l *Ledger) Vaults() []*Vault {
	if err := l.guardEntry(); err != nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Vault, 0, len(l.vaults))
	for id := uint64(1); id <= l.nextID; id++ {
		if v, ok := l.vaults[id]; ok {
			out = append(out, v.snapshot())
		}
	}
	return out
}

// SharesOf returns an account's share balance in a vault.
func (l *Ledger) SharesOf(vaultID uint64, account common.Address) *big.Int {
	if err := l.guardEntry(); err != nil {
		return new(big.Int)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.shareBalance(vaultID, account))
}

// guardEntry rejects calls arriving while an external token transfer is in
// flight. A malicious token implementation calling back into the ledger hits
// this before touching the transaction lock, so it fails instead of
// deadlocking.
func (l *Ledger) guardEntry() error {
	if l.busy.Load() {
		return ErrReentrantCall
	}
	return nil
}

// transferGuarded flags the ledger busy across the external call window.
func (l *Ledger) transferGuarded(tok, from, to common.Address, amount *big.Int) error {
	l.busy.Store(true)
	defer l.busy.Store(false)
	return l.bank.Transfer(tok, from, to, amount)
}

func (l *Ledger) shareBalance(vaultID uint64, account common.Address) *big.Int {
	holders, ok := l.shares[vaultID]
	if !ok {
		return new(big.Int)
	}
	bal, ok := holders[account]
	if !ok {
		bal = new(big.Int)
		holders[account] = bal
	}
	return bal
}

func (l *Ledger) creditShares(vaultID uint64, account common.Address, amount *big.Int) {
	l.shareBalance(vaultID, account).Add(l.shareBalance(vaultID, account), amount)
}

func feeFor(total *big.Int, feeBps int64) *big.Int {
	if total.Sign() == 0 || feeBps == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(total, big.NewInt(feeBps))
	return fee.Div(fee, big.NewInt(bpsDenominator))
}
