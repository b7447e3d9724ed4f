package handler

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultpilot/vaultpilot/internal/executor"
	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/pkg/apperrors"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/signer"
)

// coreError maps core sentinel errors onto the HTTP error taxonomy. Every
// category keeps its own name so relayers can decide between re-signing and
// abandoning.
func coreError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ledger.ErrVaultNotFound):
		return apperrors.New(apperrors.ErrNotFound, err.Error(), err)
	case errors.Is(err, ledger.ErrVaultInactive):
		return apperrors.New(apperrors.ErrVaultInactive, err.Error(), err)
	case errors.Is(err, ledger.ErrUnauthorizedRelayer),
		errors.Is(err, signer.ErrUnauthorizedSigner),
		errors.Is(err, registry.ErrNotOwner),
		errors.Is(err, registry.ErrNotPendingOwner):
		return apperrors.New(apperrors.ErrUnauthorized, err.Error(), err)
	case errors.Is(err, signer.ErrInvalidNonce):
		return apperrors.New(apperrors.ErrNonce, err.Error(), err)
	case errors.Is(err, signer.ErrPayloadExpired),
		errors.Is(err, signer.ErrPayloadTooOld):
		return apperrors.New(apperrors.ErrExpired, err.Error(), err)
	case errors.Is(err, executor.ErrExecutionFailed):
		return apperrors.New(apperrors.ErrExecution, err.Error(), err)
	case errors.Is(err, ledger.ErrInvalidTokens),
		errors.Is(err, ledger.ErrInvalidTickRange),
		errors.Is(err, ledger.ErrInvalidThreshold),
		errors.Is(err, ledger.ErrInsufficientDeposit),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrBadActionData),
		errors.Is(err, ledger.ErrVaultDrained),
		errors.Is(err, signer.ErrInvalidSignature),
		errors.Is(err, registry.ErrFeeTooHigh),
		errors.Is(err, registry.ErrZeroAddress):
		return apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err)
	default:
		return apperrors.Wrap(err)
	}
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(s string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false
	}
	return amount, true
}
