package signer

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vaultpilot/vaultpilot/internal/registry"
)

var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrPayloadExpired     = errors.New("payload expired")
	ErrPayloadTooOld      = errors.New("payload outside issuance window")
	ErrUnauthorizedSigner = errors.New("unauthorized signer")
	ErrInvalidNonce       = errors.New("invalid nonce")
)

// Verifier validates RebalancePayloads cryptographically and temporally
// before any state mutation occurs. Verify is pure: it never advances the
// nonce, so callers can retry verification freely. Nonce consumption is the
// executor's commit step.
type Verifier struct {
	domain        Domain
	registry      *registry.Registry
	maxPayloadAge time.Duration
	now           func() time.Time
}

func NewVerifier(domain Domain, reg *registry.Registry, maxPayloadAge time.Duration) *Verifier {
	if maxPayloadAge <= 0 {
		maxPayloadAge = 5 * time.Minute
	}
	return &Verifier{
		domain:        domain,
		registry:      reg,
		maxPayloadAge: maxPayloadAge,
		now:           time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

// Verify runs the full check sequence and returns the recovered signer:
//
//	1. embedded vault id must equal the call-site vault id
//	2. now <= expiry
//	3. now >= issuedAt (rejects payloads claiming future issuance)
//	4. now <= issuedAt + maxPayloadAge (bounds staleness independent of the
//	   payload's self-declared expiry)
//	5. recover signer from the EIP-712 digest
//	6. signer must be authorized
//	7. payload nonce must equal the signer's current nonce exactly
func (v *Verifier) Verify(vaultID uint64, p *RebalancePayload, signature string) (common.Address, error) {
	if p == nil {
		return common.Address{}, ErrInvalidSignature
	}
	if p.VaultID != vaultID {
		return common.Address{}, ErrInvalidSignature
	}

	now := v.now().Unix()
	if now > p.Expiry {
		return common.Address{}, ErrPayloadExpired
	}
	if now < p.IssuedAt {
		return common.Address{}, ErrPayloadTooOld
	}
	if now > p.IssuedAt+int64(v.maxPayloadAge.Seconds()) {
		return common.Address{}, ErrPayloadTooOld
	}

	signerAddr, err := v.recover(p, signature)
	if err != nil {
		return common.Address{}, err
	}

	if !v.registry.IsSigner(signerAddr) {
		return common.Address{}, ErrUnauthorizedSigner
	}
	if v.registry.Nonce(signerAddr) != p.Nonce {
		return common.Address{}, ErrInvalidNonce
	}

	return signerAddr, nil
}

func (v *Verifier) recover(p *RebalancePayload, signature string) (common.Address, error) {
	rawSig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	if len(rawSig) != 65 {
		return common.Address{}, ErrInvalidSignature
	}
	// Normalize V to 0/1 for recovery
	sig := make([]byte, 65)
	copy(sig, rawSig)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest := v.domain.HashPayload(p)
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}
