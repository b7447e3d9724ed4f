package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/middleware"
	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/pkg/apperrors"
	"github.com/vaultpilot/vaultpilot/internal/pkg/metrics"
)

type VaultHandler struct {
	led *ledger.Ledger
}

func NewVaultHandler(led *ledger.Ledger) *VaultHandler {
	return &VaultHandler{led: led}
}

func (h *VaultHandler) Create(c *gin.Context) {
	var req model.CreateVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	owner, ok := parseAddress(req.Owner)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid owner address"))
		return
	}
	tokenA, okA := parseAddress(req.TokenA)
	tokenB, okB := parseAddress(req.TokenB)
	if !okA || !okB {
		c.Error(apperrors.NewInvalidRequest("invalid token address"))
		return
	}

	id, err := h.led.CreateVault(owner, tokenA, tokenB, ledger.StrategyParams{
		TickLower:             req.TickLower,
		TickUpper:             req.TickUpper,
		RebalanceThresholdBps: req.RebalanceThresholdBps,
		AutoRebalance:         req.AutoRebalance,
	})
	if err != nil {
		c.Error(coreError(err))
		return
	}

	middleware.AddAuditContext(c, "vault_id", id)
	v, err := h.led.GetVault(id)
	if err != nil {
		c.Error(coreError(err))
		return
	}
	c.JSON(http.StatusCreated, vaultResponse(v))
}

func (h *VaultHandler) Get(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	v, err := h.led.GetVault(id)
	if err != nil {
		c.Error(coreError(err))
		return
	}
	c.JSON(http.StatusOK, vaultResponse(v))
}

func (h *VaultHandler) List(c *gin.Context) {
	vaults := h.led.Vaults()
	out := make([]model.VaultResponse, 0, len(vaults))
	for _, v := range vaults {
		out = append(out, vaultResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{"vaults": out})
}

func (h *VaultHandler) Deposit(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	var req model.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid account address"))
		return
	}
	amountA, okA := parseAmount(req.AmountA)
	amountB, okB := parseAmount(req.AmountB)
	if !okA || !okB {
		c.Error(apperrors.NewInvalidRequest("amounts must be non-negative base-10 integers"))
		return
	}

	shares, err := h.led.Deposit(account, id, amountA, amountB)
	if err != nil {
		metrics.DepositsTotal.WithLabelValues("rejected").Inc()
		c.Error(coreError(err))
		return
	}
	metrics.DepositsTotal.WithLabelValues("accepted").Inc()

	middleware.AddAuditContext(c, "vault_id", id)
	middleware.AddAuditContext(c, "shares", shares.String())
	c.JSON(http.StatusOK, model.DepositResponse{VaultID: id, Shares: shares.String()})
}

func (h *VaultHandler) Withdraw(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	var req model.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid account address"))
		return
	}
	shares, ok := parseAmount(req.Shares)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("shares must be a non-negative base-10 integer"))
		return
	}

	amountA, amountB, err := h.led.Withdraw(account, id, shares)
	if err != nil {
		c.Error(coreError(err))
		return
	}

	middleware.AddAuditContext(c, "vault_id", id)
	c.JSON(http.StatusOK, model.WithdrawResponse{
		VaultID: id,
		AmountA: amountA.String(),
		AmountB: amountB.String(),
	})
}

func vaultID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.Error(apperrors.NewInvalidRequest("invalid vault id"))
		return 0, false
	}
	return id, true
}

func vaultResponse(v *ledger.Vault) model.VaultResponse {
	return model.VaultResponse{
		ID:                    v.ID,
		Owner:                 v.Owner.Hex(),
		TokenA:                v.TokenA.Hex(),
		TokenB:                v.TokenB.Hex(),
		TotalShares:           v.TotalShares.String(),
		TotalTokenA:           v.TotalTokenA.String(),
		TotalTokenB:           v.TotalTokenB.String(),
		TickLower:             v.Params.TickLower,
		TickUpper:             v.Params.TickUpper,
		RebalanceThresholdBps: v.Params.RebalanceThresholdBps,
		AutoRebalance:         v.Params.AutoRebalance,
		LastRebalance:         v.LastRebalance.Unix(),
		IsActive:              v.IsActive,
	}
}
