package signer

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContract = common.HexToAddress("0x5Cb5B4E98E1F1C58E9C3F0c7d3779E79Bf9a5b21")

func newTestSigner(t *testing.T, domain Domain) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))[2:]

	s, err := NewSigner(keyHex, domain)
	require.NoError(t, err)
	return s
}

func TestSignAndRecover(t *testing.T) {
	// 1. Setup Signer
	domain := NewDomain(137, testContract)
	s := newTestSigner(t, domain)

	// 2. Build and sign payload
	payload := s.NewPayload(7, 0, []byte{0x01, 0x02}, time.Now(), 2*time.Minute)
	sig, err := s.SignPayload(payload)
	require.NoError(t, err)

	rawSig, err := hexutil.Decode(sig)
	require.NoError(t, err)
	require.Len(t, rawSig, 65)
	assert.True(t, rawSig[64] == 27 || rawSig[64] == 28)

	// 3. Recover and compare
	rawSig[64] -= 27
	digest := domain.HashPayload(payload)
	pub, err := crypto.SigToPub(digest.Bytes(), rawSig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestDigestBindsEveryField(t *testing.T) {
	domain := NewDomain(137, testContract)
	base := &RebalancePayload{VaultID: 1, Nonce: 2, ActionData: []byte{0xAA}, IssuedAt: 100, Expiry: 200}
	baseDigest := domain.HashPayload(base)

	mutations := []RebalancePayload{
		{VaultID: 9, Nonce: 2, ActionData: []byte{0xAA}, IssuedAt: 100, Expiry: 200},
		{VaultID: 1, Nonce: 3, ActionData: []byte{0xAA}, IssuedAt: 100, Expiry: 200},
		{VaultID: 1, Nonce: 2, ActionData: []byte{0xAB}, IssuedAt: 100, Expiry: 200},
		{VaultID: 1, Nonce: 2, ActionData: []byte{0xAA}, IssuedAt: 101, Expiry: 200},
		{VaultID: 1, Nonce: 2, ActionData: []byte{0xAA}, IssuedAt: 100, Expiry: 201},
	}
	for i := range mutations {
		assert.NotEqual(t, baseDigest, domain.HashPayload(&mutations[i]), "mutation %d did not change digest", i)
	}
}

func TestDomainSeparation(t *testing.T) {
	a := NewDomain(137, testContract)
	b := NewDomain(1, testContract)
	c := NewDomain(137, common.HexToAddress("0x0000000000000000000000000000000000000001"))

	assert.NotEqual(t, a.Separator(), b.Separator())
	assert.NotEqual(t, a.Separator(), c.Separator())

	payload := &RebalancePayload{VaultID: 1, Nonce: 0, ActionData: []byte{0x01}, IssuedAt: 100, Expiry: 200}
	assert.NotEqual(t, a.HashPayload(payload), b.HashPayload(payload))
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	domain := NewDomain(137, testContract)

	_, err := NewSigner("", domain)
	assert.Error(t, err)

	_, err = NewSigner("not-hex", domain)
	assert.Error(t, err)
}
