package signer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds a private key and produces EIP-712 signatures over
// RebalancePayloads for a fixed domain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	domain  Domain
}

func NewSigner(privateKeyHex string, domain Domain) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	publicKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(*publicKey),
		domain:  domain,
	}, nil
}

// SignPayload computes the EIP-712 digest and signs it, returning a
// 0x-prefixed 65-byte signature with V in 27/28 form.
func (s *Signer) SignPayload(p *RebalancePayload) (string, error) {
	digest := s.domain.HashPayload(p)

	signature, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return "", err
	}

	// crypto.Sign returns [R || S || V] with V in 0/1; most verifiers expect 27/28
	if signature[64] < 27 {
		signature[64] += 27
	}

	return "0x" + common.Bytes2Hex(signature), nil
}

// NewPayload builds a payload for this signer using the nonce expected by the
// registry and the supplied validity window.
func (s *Signer) NewPayload(vaultID, nonce uint64, actionData []byte, now time.Time, ttl time.Duration) *RebalancePayload {
	return &RebalancePayload{
		VaultID:    vaultID,
		Nonce:      nonce,
		ActionData: actionData,
		IssuedAt:   now.Unix(),
		Expiry:     now.Add(ttl).Unix(),
	}
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) Domain() Domain {
	return s.domain
}
