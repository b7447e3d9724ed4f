package executor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/pkg/logger"
	"github.com/vaultpilot/vaultpilot/internal/pkg/metrics"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/signer"
)

var ErrExecutionFailed = errors.New("rebalance execution failed")

var execLog = logger.Component("executor")

// Executor glues payload verification to the ledger mutation as one atomic
// operation. Verification is side-effect free and the nonce is consumed only
// after the ledger call succeeds, so there is no partial-success state:
// either the nonce advances and the rebalance applies, or neither happens.
type Executor struct {
	mu       sync.Mutex
	verifier *signer.Verifier
	led      *ledger.Ledger
	reg      *registry.Registry
	sink     model.EventSink
	account  common.Address // the executor's own relayer identity
}

func New(verifier *signer.Verifier, led *ledger.Ledger, reg *registry.Registry, account common.Address, sink model.EventSink) *Executor {
	if sink == nil {
		sink = model.NopSink{}
	}
	return &Executor{
		verifier: verifier,
		led:      led,
		reg:      reg,
		sink:     sink,
		account:  account,
	}
}

// Account is the relayer identity the executor submits rebalances under.
// It must be authorized in the registry.
func (e *Executor) Account() common.Address {
	return e.account
}

// ExecuteRebalance is callable by anyone holding a validly signed payload;
// the signature, not the caller's identity, carries authorization.
func (e *Executor) ExecuteRebalance(vaultID uint64, payload *signer.RebalancePayload, signature string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	signerAddr, err := e.verifier.Verify(vaultID, payload, signature)
	if err != nil {
		metrics.VerificationFailures.WithLabelValues(failureReason(err)).Inc()
		metrics.RebalancesTotal.WithLabelValues("rejected").Inc()
		return err
	}

	if err := e.led.Rebalance(e.account, vaultID, payload.ActionData); err != nil {
		// Nonce deliberately untouched: the signer's next payload with the
		// same nonce stays valid after a failed execution.
		metrics.RebalancesTotal.WithLabelValues("failed").Inc()
		execLog.Warn("downstream rebalance failed",
			"vault_id", vaultID,
			"signer", signerAddr.Hex(),
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	nextNonce := e.reg.ConsumeNonce(signerAddr)
	metrics.RebalancesTotal.WithLabelValues("completed").Inc()

	// Elapsed wall time stands in for gas, for off-chain cost monitoring.
	costMicros := time.Since(start).Microseconds()
	actionHash := crypto.Keccak256Hash(payload.ActionData)
	execLog.Info("rebalance executed",
		"vault_id", vaultID,
		"signer", signerAddr.Hex(),
		"next_nonce", nextNonce,
		"cost_micros", costMicros,
	)
	e.sink.Publish(model.Event{
		Type:       model.EventExecution,
		VaultID:    vaultID,
		Account:    signerAddr.Hex(),
		ActionHash: actionHash.Hex(),
		At:         time.Now(),
		Fields: map[string]any{
			"cost_micros": costMicros,
			"nonce":       payload.Nonce,
		},
	})
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, signer.ErrPayloadExpired):
		return "expired"
	case errors.Is(err, signer.ErrPayloadTooOld):
		return "too_old"
	case errors.Is(err, signer.ErrUnauthorizedSigner):
		return "unauthorized_signer"
	case errors.Is(err, signer.ErrInvalidNonce):
		return "invalid_nonce"
	default:
		return "invalid_signature"
	}
}
