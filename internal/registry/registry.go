package registry

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MaxFeeBps is the hard protocol fee ceiling (10%). Not bypassable, even by
// the owner.
const MaxFeeBps = 1000

var (
	ErrNotOwner        = errors.New("caller is not the registry owner")
	ErrNotPendingOwner = errors.New("caller is not the pending owner")
	ErrZeroAddress     = errors.New("zero address not allowed")
	ErrFeeTooHigh      = errors.New("protocol fee exceeds ceiling")
)

// Registry holds the protocol's authorization allow-lists, per-signer nonces
// and fee policy. All mutation is owner-gated; ownership moves via a two-step
// propose/accept handshake so a mistyped address cannot strand control.
type Registry struct {
	mu           sync.RWMutex
	owner        common.Address
	pendingOwner common.Address
	relayers     map[common.Address]bool
	signers      map[common.Address]bool
	nonces       map[common.Address]uint64
	feeBps       int64
	feeRecipient common.Address
}

func New(owner, feeRecipient common.Address, feeBps int64) (*Registry, error) {
	if owner == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if feeBps < 0 || feeBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}
	return &Registry{
		owner:        owner,
		relayers:     make(map[common.Address]bool),
		signers:      make(map[common.Address]bool),
		nonces:       make(map[common.Address]uint64),
		feeBps:       feeBps,
		feeRecipient: feeRecipient,
	}, nil
}

func (r *Registry) Owner() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// TransferOwnership records a pending owner. Nothing changes until the
// pending owner accepts.
func (r *Registry) TransferOwnership(caller, newOwner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotOwner
	}
	if newOwner == (common.Address{}) {
		return ErrZeroAddress
	}
	r.pendingOwner = newOwner
	return nil
}

func (r *Registry) AcceptOwnership(caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingOwner == (common.Address{}) || caller != r.pendingOwner {
		return ErrNotPendingOwner
	}
	r.owner = r.pendingOwner
	r.pendingOwner = common.Address{}
	return nil
}

// SetRelayerAuthorization flips relayer access. Re-authorizing an already
// authorized account is a no-op.
func (r *Registry) SetRelayerAuthorization(caller, account common.Address, authorized bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotOwner
	}
	if account == (common.Address{}) {
		return ErrZeroAddress
	}
	if authorized {
		r.relayers[account] = true
	} else {
		delete(r.relayers, account)
	}
	return nil
}

func (r *Registry) SetSignerAuthorization(caller, account common.Address, authorized bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotOwner
	}
	if account == (common.Address{}) {
		return ErrZeroAddress
	}
	if authorized {
		r.signers[account] = true
	} else {
		delete(r.signers, account)
	}
	return nil
}

func (r *Registry) IsRelayer(account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relayers[account]
}

func (r *Registry) IsSigner(account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.signers[account]
}

// Nonce returns the next nonce expected from a signer. A payload verifies
// only if it carries exactly this value.
func (r *Registry) Nonce(signer common.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nonces[signer]
}

// ConsumeNonce advances a signer's nonce by one. Called by the executor only
// after the downstream rebalance succeeded, so a failed execution never burns
// the nonce. Nonces are never decremented or reset; revoking and
// re-authorizing a signer keeps its counter.
func (r *Registry) ConsumeNonce(signer common.Address) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonces[signer]++
	return r.nonces[signer]
}

func (r *Registry) SetProtocolFee(caller common.Address, bps int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotOwner
	}
	if bps < 0 || bps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	r.feeBps = bps
	return nil
}

func (r *Registry) FeeBps() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeBps
}

func (r *Registry) SetFeeRecipient(caller, recipient common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotOwner
	}
	if recipient == (common.Address{}) {
		return ErrZeroAddress
	}
	r.feeRecipient = recipient
	return nil
}

func (r *Registry) FeeRecipient() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeRecipient
}
