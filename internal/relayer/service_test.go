package relayer

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/vaultpilot/internal/executor"
	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/signer"
	"github.com/vaultpilot/vaultpilot/internal/token"
)

var regOwner = common.HexToAddress("0x00000000000000000000000000000000000000A1")

type pipeline struct {
	svc     *Service
	sig     *signer.Signer
	vaultID uint64
}

func newPipeline(t *testing.T, queueSize int) *pipeline {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	domain := signer.NewDomain(137, common.HexToAddress("0x5Cb5B4E98E1F1C58E9C3F0c7d3779E79Bf9a5b21"))
	sig, err := signer.NewSigner(hexutil.Encode(crypto.FromECDSA(key))[2:], domain)
	require.NoError(t, err)

	relayerAddr := common.HexToAddress("0x0000000000000000000000000000000000000014")
	reg, err := registry.New(regOwner, regOwner, 0)
	require.NoError(t, err)
	require.NoError(t, reg.SetRelayerAuthorization(regOwner, relayerAddr, true))
	require.NoError(t, reg.SetSignerAuthorization(regOwner, sig.Address(), true))

	bank := token.NewBank()
	led := ledger.New(bank, reg, common.HexToAddress("0x00000000000000000000000000000000000000E1"), big.NewInt(1000), nil)
	vaultID, err := led.CreateVault(regOwner,
		common.HexToAddress("0x0000000000000000000000000000000000000021"),
		common.HexToAddress("0x0000000000000000000000000000000000000022"),
		ledger.StrategyParams{TickLower: -1000, TickUpper: 1000})
	require.NoError(t, err)

	ver := signer.NewVerifier(domain, reg, 5*time.Minute)
	exec := executor.New(ver, led, reg, relayerAddr, nil)

	svc := NewService(NewMemoryJobStore(), exec, queueSize)
	return &pipeline{svc: svc, sig: sig, vaultID: vaultID}
}

func (p *pipeline) signedPayload(t *testing.T, nonce uint64) (*signer.RebalancePayload, string) {
	t.Helper()
	action := ledger.EncodeRebalanceAction(ledger.RebalanceAction{TickLower: -500, TickUpper: 500})
	payload := p.sig.NewPayload(p.vaultID, nonce, action, time.Now(), 2*time.Minute)
	sigHex, err := p.sig.SignPayload(payload)
	require.NoError(t, err)
	return payload, sigHex
}

func waitForTerminal(t *testing.T, svc *Service, id string) *Job {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal status")
		case <-time.After(10 * time.Millisecond):
		}
		job, err := svc.Status(context.Background(), id)
		require.NoError(t, err)
		if job.Status == StatusCompleted || job.Status == StatusFailed {
			return job
		}
	}
}

func TestSubmitProcessesToCompletion(t *testing.T) {
	p := newPipeline(t, 16)
	p.svc.Start(2)
	defer p.svc.Stop()

	payload, sigHex := p.signedPayload(t, 0)
	job, err := p.svc.Submit(context.Background(), p.vaultID, payload, sigHex)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	done := waitForTerminal(t, p.svc, job.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.NotEmpty(t, done.TxHash)
	assert.Empty(t, done.Error)
}

func TestSubmitReturnsSnapshotWorkersNeverMutate(t *testing.T) {
	p := newPipeline(t, 16)
	p.svc.Start(1)
	defer p.svc.Stop()

	payload, sigHex := p.signedPayload(t, 0)
	job, err := p.svc.Submit(context.Background(), p.vaultID, payload, sigHex)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)

	done := waitForTerminal(t, p.svc, job.ID)
	require.Equal(t, StatusCompleted, done.Status)

	// the caller's job is a point-in-time snapshot, untouched by the worker
	assert.Equal(t, StatusQueued, job.Status)
	assert.Empty(t, job.TxHash)
	assert.Empty(t, job.Error)
}

func TestBadPayloadSurfacesAsFailedJob(t *testing.T) {
	p := newPipeline(t, 16)
	p.svc.Start(1)
	defer p.svc.Stop()

	// wrong nonce fails verification inside the worker, not at submission
	payload, sigHex := p.signedPayload(t, 9)
	job, err := p.svc.Submit(context.Background(), p.vaultID, payload, sigHex)
	require.NoError(t, err)

	done := waitForTerminal(t, p.svc, job.ID)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.Error, "nonce")
	assert.Empty(t, done.TxHash)
}

func TestSubmitQueueFull(t *testing.T) {
	p := newPipeline(t, 1)
	// workers intentionally not started, so the queue cannot drain

	payload, sigHex := p.signedPayload(t, 0)
	first, err := p.svc.Submit(context.Background(), p.vaultID, payload, sigHex)
	require.NoError(t, err)

	_, err = p.svc.Submit(context.Background(), p.vaultID, payload, sigHex)
	assert.ErrorIs(t, err, ErrQueueFull)

	// the first job is still queued and intact
	job, err := p.svc.Status(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)
}

func TestStatusUnknownJob(t *testing.T) {
	p := newPipeline(t, 16)
	_, err := p.svc.Status(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPseudoTxHashIsStablePerJob(t *testing.T) {
	p := newPipeline(t, 16)
	payload, sigHex := p.signedPayload(t, 0)

	jobA := &Job{ID: "a", VaultID: p.vaultID, Payload: payload, Signature: sigHex}
	jobB := &Job{ID: "b", VaultID: p.vaultID, Payload: payload, Signature: sigHex}

	assert.Equal(t, pseudoTxHash(jobA), pseudoTxHash(jobA))
	assert.NotEqual(t, pseudoTxHash(jobA), pseudoTxHash(jobB))
}
