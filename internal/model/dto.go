package model

import "github.com/vaultpilot/vaultpilot/internal/signer"

// CreateVaultRequest registers a new vault for a token pair.
type CreateVaultRequest struct {
	Owner                 string `json:"owner" binding:"required"`
	TokenA                string `json:"token_a" binding:"required"`
	TokenB                string `json:"token_b" binding:"required"`
	TickLower             int64  `json:"tick_lower"`
	TickUpper             int64  `json:"tick_upper"`
	RebalanceThresholdBps int64  `json:"rebalance_threshold_bps"`
	AutoRebalance         bool   `json:"auto_rebalance"`
}

type VaultResponse struct {
	ID                    uint64 `json:"id"`
	Owner                 string `json:"owner"`
	TokenA                string `json:"token_a"`
	TokenB                string `json:"token_b"`
	TotalShares           string `json:"total_shares"`
	TotalTokenA           string `json:"total_token_a"`
	TotalTokenB           string `json:"total_token_b"`
	TickLower             int64  `json:"tick_lower"`
	TickUpper             int64  `json:"tick_upper"`
	RebalanceThresholdBps int64  `json:"rebalance_threshold_bps"`
	AutoRebalance         bool   `json:"auto_rebalance"`
	LastRebalance         int64  `json:"last_rebalance"`
	IsActive              bool   `json:"is_active"`
}

// Amounts travel as base-10 integer strings; token amounts exceed int64.
type DepositRequest struct {
	Account string `json:"account" binding:"required"`
	AmountA string `json:"amount_a" binding:"required"`
	AmountB string `json:"amount_b" binding:"required"`
}

type DepositResponse struct {
	VaultID uint64 `json:"vault_id"`
	Shares  string `json:"shares"`
}

type WithdrawRequest struct {
	Account string `json:"account" binding:"required"`
	Shares  string `json:"shares" binding:"required"`
}

type WithdrawResponse struct {
	VaultID uint64 `json:"vault_id"`
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
}

// SubmitRebalanceRequest carries a signed payload into the relayer queue.
// The signature, not the submitting API key, authorizes the rebalance.
type SubmitRebalanceRequest struct {
	VaultID   uint64                   `json:"vault_id" binding:"required"`
	Payload   *signer.RebalancePayload `json:"payload" binding:"required"`
	Signature string                   `json:"signature" binding:"required"`
}

// MintRequest credits demo token balance to an account. Admin only; this
// stands in for on-chain faucets when running the simulated bank.
type MintRequest struct {
	Token   string `json:"token" binding:"required"`
	Account string `json:"account" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

// PriceSampleRequest feeds one observation into a vault's price series.
// Timestamp is RFC3339 and defaults to the server clock when omitted.
type PriceSampleRequest struct {
	Price     string `json:"price" binding:"required"`
	Timestamp string `json:"timestamp"`
}

type JobResponse struct {
	JobID   string `json:"job_id"`
	VaultID uint64 `json:"vault_id"`
	Status  string `json:"status"`
	TxHash  string `json:"tx_hash,omitempty"`
	Error   string `json:"error,omitempty"`
}

type AuthorizationRequest struct {
	Account    string `json:"account" binding:"required"`
	Authorized *bool  `json:"authorized" binding:"required"`
}

type ProtocolFeeRequest struct {
	Bps int64 `json:"bps"`
}

type FeeRecipientRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

type OwnershipTransferRequest struct {
	NewOwner string `json:"new_owner" binding:"required"`
}

type OwnershipAcceptRequest struct {
	Caller string `json:"caller" binding:"required"`
}

type VaultActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
