package executor

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/signer"
	"github.com/vaultpilot/vaultpilot/internal/token"
)

var (
	regOwner     = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	feeRecipient = common.HexToAddress("0x00000000000000000000000000000000000000F1")
	poolAccount  = common.HexToAddress("0x00000000000000000000000000000000000000E1")
	relayerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000014")
	depositor    = common.HexToAddress("0x0000000000000000000000000000000000000012")
	tokenA       = common.HexToAddress("0x0000000000000000000000000000000000000021")
	tokenB       = common.HexToAddress("0x0000000000000000000000000000000000000022")
)

type fixture struct {
	exec    *Executor
	led     *ledger.Ledger
	reg     *registry.Registry
	sig     *signer.Signer
	ver     *signer.Verifier
	vaultID uint64
	events  *[]model.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	domain := signer.NewDomain(137, common.HexToAddress("0x5Cb5B4E98E1F1C58E9C3F0c7d3779E79Bf9a5b21"))
	sig, err := signer.NewSigner(hexutil.Encode(crypto.FromECDSA(key))[2:], domain)
	require.NoError(t, err)

	reg, err := registry.New(regOwner, feeRecipient, 50)
	require.NoError(t, err)
	require.NoError(t, reg.SetRelayerAuthorization(regOwner, relayerAddr, true))
	require.NoError(t, reg.SetSignerAuthorization(regOwner, sig.Address(), true))

	var events []model.Event
	sink := model.EventSinkFunc(func(evt model.Event) { events = append(events, evt) })

	bank := token.NewBank()
	led := ledger.New(bank, reg, poolAccount, big.NewInt(1000), nil)

	vaultID, err := led.CreateVault(depositor, tokenA, tokenB, ledger.StrategyParams{
		TickLower: -887220,
		TickUpper: 887220,
	})
	require.NoError(t, err)

	bank.Mint(tokenA, depositor, big.NewInt(1_000_000))
	bank.Mint(tokenB, depositor, big.NewInt(1_000_000))
	_, err = led.Deposit(depositor, vaultID, big.NewInt(1_000_000), big.NewInt(1_000_000))
	require.NoError(t, err)

	ver := signer.NewVerifier(domain, reg, 5*time.Minute)
	exec := New(ver, led, reg, relayerAddr, sink)

	return &fixture{exec: exec, led: led, reg: reg, sig: sig, ver: ver, vaultID: vaultID, events: &events}
}

func (f *fixture) signedPayload(t *testing.T, nonce uint64, ttl time.Duration) (*signer.RebalancePayload, string) {
	t.Helper()
	action := ledger.EncodeRebalanceAction(ledger.RebalanceAction{TickLower: -900000, TickUpper: 900000})
	payload := f.sig.NewPayload(f.vaultID, nonce, action, time.Now(), ttl)
	sigHex, err := f.sig.SignPayload(payload)
	require.NoError(t, err)
	return payload, sigHex
}

func TestExecuteAdvancesNonceAndBlocksReplay(t *testing.T) {
	f := newFixture(t)

	payload, sigHex := f.signedPayload(t, 0, 2*time.Minute)
	require.NoError(t, f.exec.ExecuteRebalance(f.vaultID, payload, sigHex))

	assert.Equal(t, uint64(1), f.reg.Nonce(f.sig.Address()))
	v, err := f.led.GetVault(f.vaultID)
	require.NoError(t, err)
	assert.Equal(t, int64(-900000), v.Params.TickLower)

	// identical payload again: strict nonce equality rejects the replay
	err = f.exec.ExecuteRebalance(f.vaultID, payload, sigHex)
	assert.ErrorIs(t, err, signer.ErrInvalidNonce)
	assert.Equal(t, uint64(1), f.reg.Nonce(f.sig.Address()))

	// next nonce goes through
	next, nextSig := f.signedPayload(t, 1, 2*time.Minute)
	assert.NoError(t, f.exec.ExecuteRebalance(f.vaultID, next, nextSig))
	assert.Equal(t, uint64(2), f.reg.Nonce(f.sig.Address()))
}

func TestExpiredPayloadLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)

	action := ledger.EncodeRebalanceAction(ledger.RebalanceAction{TickLower: -900000, TickUpper: 900000})
	payload := f.sig.NewPayload(f.vaultID, 0, action, time.Now().Add(-10*time.Minute), 2*time.Minute)
	sigHex, err := f.sig.SignPayload(payload)
	require.NoError(t, err)

	before, _ := f.led.GetVault(f.vaultID)

	err = f.exec.ExecuteRebalance(f.vaultID, payload, sigHex)
	assert.ErrorIs(t, err, signer.ErrPayloadExpired)

	assert.Equal(t, uint64(0), f.reg.Nonce(f.sig.Address()))
	after, _ := f.led.GetVault(f.vaultID)
	assert.Equal(t, before.Params, after.Params)
	assert.Equal(t, before.TotalTokenA, after.TotalTokenA)
	assert.Empty(t, *f.events)
}

func TestFailedLedgerCallDoesNotBurnNonce(t *testing.T) {
	f := newFixture(t)

	// deactivate the vault so verification passes but the ledger refuses
	require.NoError(t, f.led.SetActive(regOwner, f.vaultID, false))

	payload, sigHex := f.signedPayload(t, 0, 2*time.Minute)
	err := f.exec.ExecuteRebalance(f.vaultID, payload, sigHex)
	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.Equal(t, uint64(0), f.reg.Nonce(f.sig.Address()))

	// reactivate: the very same payload is still valid
	require.NoError(t, f.led.SetActive(regOwner, f.vaultID, true))
	assert.NoError(t, f.exec.ExecuteRebalance(f.vaultID, payload, sigHex))
	assert.Equal(t, uint64(1), f.reg.Nonce(f.sig.Address()))
}

func TestExecutionReceiptPublished(t *testing.T) {
	f := newFixture(t)

	payload, sigHex := f.signedPayload(t, 0, 2*time.Minute)
	require.NoError(t, f.exec.ExecuteRebalance(f.vaultID, payload, sigHex))

	require.NotEmpty(t, *f.events)
	receipt := (*f.events)[len(*f.events)-1]
	assert.Equal(t, model.EventExecution, receipt.Type)
	assert.Equal(t, f.vaultID, receipt.VaultID)
	assert.Equal(t, f.sig.Address().Hex(), receipt.Account)
	assert.Equal(t, crypto.Keccak256Hash(payload.ActionData).Hex(), receipt.ActionHash)
	assert.Contains(t, receipt.Fields, "cost_micros")
}

func TestUnauthorizedSignerRejected(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.reg.SetSignerAuthorization(regOwner, f.sig.Address(), false))

	payload, sigHex := f.signedPayload(t, 0, 2*time.Minute)
	err := f.exec.ExecuteRebalance(f.vaultID, payload, sigHex)
	assert.ErrorIs(t, err, signer.ErrUnauthorizedSigner)
	assert.Equal(t, uint64(0), f.reg.Nonce(f.sig.Address()))
}
