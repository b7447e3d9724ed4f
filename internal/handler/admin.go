package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/middleware"
	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/pkg/apperrors"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/token"
)

// AdminHandler exposes the registry's owner-gated operations. HTTP access is
// gated by the admin key; inside the core every call still carries the
// configured owner address, so a completed ownership transfer to another
// account makes this surface inert until config catches up.
type AdminHandler struct {
	reg   *registry.Registry
	led   *ledger.Ledger
	bank  *token.Bank
	owner common.Address
}

func NewAdminHandler(reg *registry.Registry, led *ledger.Ledger, bank *token.Bank, owner common.Address) *AdminHandler {
	return &AdminHandler{reg: reg, led: led, bank: bank, owner: owner}
}

func (h *AdminHandler) SetRelayer(c *gin.Context) {
	h.setAuthorization(c, h.reg.SetRelayerAuthorization, "relayer")
}

func (h *AdminHandler) SetSigner(c *gin.Context) {
	h.setAuthorization(c, h.reg.SetSignerAuthorization, "signer")
}

func (h *AdminHandler) setAuthorization(c *gin.Context, set func(caller, account common.Address, authorized bool) error, kind string) {
	var req model.AuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid account address"))
		return
	}

	if err := set(h.owner, account, *req.Authorized); err != nil {
		c.Error(coreError(err))
		return
	}

	middleware.AddAuditContext(c, "kind", kind)
	middleware.AddAuditContext(c, "account", account.Hex())
	middleware.AddAuditContext(c, "authorized", *req.Authorized)
	c.JSON(http.StatusOK, gin.H{"account": account.Hex(), "authorized": *req.Authorized})
}

func (h *AdminHandler) SetProtocolFee(c *gin.Context) {
	var req model.ProtocolFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.reg.SetProtocolFee(h.owner, req.Bps); err != nil {
		c.Error(coreError(err))
		return
	}
	middleware.AddAuditContext(c, "fee_bps", req.Bps)
	c.JSON(http.StatusOK, gin.H{"fee_bps": req.Bps})
}

func (h *AdminHandler) SetFeeRecipient(c *gin.Context) {
	var req model.FeeRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	recipient, ok := parseAddress(req.Recipient)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid recipient address"))
		return
	}
	if err := h.reg.SetFeeRecipient(h.owner, recipient); err != nil {
		c.Error(coreError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee_recipient": recipient.Hex()})
}

func (h *AdminHandler) TransferOwnership(c *gin.Context) {
	var req model.OwnershipTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	newOwner, ok := parseAddress(req.NewOwner)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid owner address"))
		return
	}
	if err := h.reg.TransferOwnership(h.owner, newOwner); err != nil {
		c.Error(coreError(err))
		return
	}
	middleware.AddAuditContext(c, "pending_owner", newOwner.Hex())
	c.JSON(http.StatusOK, gin.H{"pending_owner": newOwner.Hex()})
}

func (h *AdminHandler) AcceptOwnership(c *gin.Context) {
	var req model.OwnershipAcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid caller address"))
		return
	}
	if err := h.reg.AcceptOwnership(caller); err != nil {
		c.Error(coreError(err))
		return
	}
	middleware.AddAuditContext(c, "new_owner", caller.Hex())
	c.JSON(http.StatusOK, gin.H{"owner": caller.Hex()})
}

// Mint credits demo token balance. Deposits need funded accounts and the
// simulated bank has no faucet of its own.
func (h *AdminHandler) Mint(c *gin.Context) {
	var req model.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	tok, ok := parseAddress(req.Token)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid token address"))
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("invalid account address"))
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok || amount.Sign() <= 0 {
		c.Error(apperrors.NewInvalidRequest("amount must be a positive integer"))
		return
	}

	h.bank.Mint(tok, account, amount)
	middleware.AddAuditContext(c, "token", tok.Hex())
	middleware.AddAuditContext(c, "account", account.Hex())
	c.JSON(http.StatusOK, gin.H{
		"token":   tok.Hex(),
		"account": account.Hex(),
		"balance": h.bank.BalanceOf(tok, account).String(),
	})
}

func (h *AdminHandler) SetVaultActive(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}
	var req model.VaultActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.led.SetActive(h.owner, id, *req.Active); err != nil {
		c.Error(coreError(err))
		return
	}
	middleware.AddAuditContext(c, "vault_id", id)
	middleware.AddAuditContext(c, "active", *req.Active)
	c.JSON(http.StatusOK, gin.H{"vault_id": id, "active": *req.Active})
}
