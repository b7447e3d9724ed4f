package handler

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/vaultpilot/vaultpilot/internal/config"
	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/middleware"
	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/token"
)

type adminTestEnv struct {
	router *gin.Engine
	reg    *registry.Registry
	led    *ledger.Ledger
}

func newAdminTestEnv(t *testing.T, adminKey string) *adminTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	owner := common.HexToAddress(testOwner)
	reg, err := registry.New(owner, owner, 50)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	bank := token.NewBank()
	led := ledger.New(bank, reg, common.HexToAddress("0x00000000000000000000000000000000000000E1"), big.NewInt(1000), nil)

	cfg := &config.Config{}
	cfg.Auth.AdminKey = adminKey

	h := NewAdminHandler(reg, led, bank, owner)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	admin := router.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	admin.POST("/relayers", h.SetRelayer)
	admin.POST("/signers", h.SetSigner)
	admin.POST("/fee", h.SetProtocolFee)
	admin.POST("/ownership/transfer", h.TransferOwnership)
	admin.POST("/ownership/accept", h.AcceptOwnership)
	admin.POST("/vaults/:id/active", h.SetVaultActive)
	admin.POST("/mint", h.Mint)

	return &adminTestEnv{router: router, reg: reg, led: led}
}

func (e *adminTestEnv) do(t *testing.T, path, adminKey string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if adminKey != "" {
		req.Header.Set(middleware.HeaderAdminKey, adminKey)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func boolPtr(b bool) *bool { return &b }

func TestAdminEndpointsRequireKey(t *testing.T) {
	e := newAdminTestEnv(t, "topsecret")
	relayer := "0x0000000000000000000000000000000000000014"

	body := model.AuthorizationRequest{Account: relayer, Authorized: boolPtr(true)}

	rec := e.do(t, "/v1/admin/relayers", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	rec = e.do(t, "/v1/admin/relayers", "wrong", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
	if e.reg.IsRelayer(common.HexToAddress(relayer)) {
		t.Fatal("relayer must not be authorized without a valid admin key")
	}

	rec = e.do(t, "/v1/admin/relayers", "topsecret", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d body %s", rec.Code, rec.Body.String())
	}
	if !e.reg.IsRelayer(common.HexToAddress(relayer)) {
		t.Fatal("relayer not authorized after successful call")
	}
}

func TestAdminSurfaceDisabledWithoutConfiguredKey(t *testing.T) {
	e := newAdminTestEnv(t, "")

	rec := e.do(t, "/v1/admin/fee", "anything", model.ProtocolFeeRequest{Bps: 10})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when no admin key is configured, got %d", rec.Code)
	}
}

func TestAdminSetProtocolFee(t *testing.T) {
	e := newAdminTestEnv(t, "k")

	rec := e.do(t, "/v1/admin/fee", "k", model.ProtocolFeeRequest{Bps: 200})
	if rec.Code != http.StatusOK {
		t.Fatalf("set fee: status %d", rec.Code)
	}
	if got := e.reg.FeeBps(); got != 200 {
		t.Fatalf("expected fee 200 bps, got %d", got)
	}

	rec = e.do(t, "/v1/admin/fee", "k", model.ProtocolFeeRequest{Bps: registry.MaxFeeBps + 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 above the fee ceiling, got %d", rec.Code)
	}
	if got := e.reg.FeeBps(); got != 200 {
		t.Fatalf("fee must be unchanged after rejected update, got %d", got)
	}
}

func TestAdminOwnershipHandshake(t *testing.T) {
	e := newAdminTestEnv(t, "k")
	newOwner := "0x00000000000000000000000000000000000000A2"

	rec := e.do(t, "/v1/admin/ownership/transfer", "k", model.OwnershipTransferRequest{NewOwner: newOwner})
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer: status %d body %s", rec.Code, rec.Body.String())
	}
	if e.reg.Owner() != common.HexToAddress(testOwner) {
		t.Fatal("ownership must not change before acceptance")
	}

	rec = e.do(t, "/v1/admin/ownership/accept", "k", model.OwnershipAcceptRequest{Caller: newOwner})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status %d body %s", rec.Code, rec.Body.String())
	}
	if e.reg.Owner() != common.HexToAddress(newOwner) {
		t.Fatal("ownership did not move to the accepting account")
	}
}

func TestAdminVaultActiveToggle(t *testing.T) {
	e := newAdminTestEnv(t, "k")

	id, err := e.led.CreateVault(common.HexToAddress(testOwner),
		common.HexToAddress(testTokenA), common.HexToAddress(testTokenB),
		ledger.StrategyParams{TickLower: -100, TickUpper: 100})
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}

	rec := e.do(t, "/v1/admin/vaults/1/active", "k", model.VaultActiveRequest{Active: boolPtr(false)})
	if rec.Code != http.StatusOK {
		t.Fatalf("set active: status %d body %s", rec.Code, rec.Body.String())
	}
	v, _ := e.led.GetVault(id)
	if v.IsActive {
		t.Fatal("vault still active after deactivation")
	}
}

func TestAdminMint(t *testing.T) {
	e := newAdminTestEnv(t, "k")

	rec := e.do(t, "/v1/admin/mint", "k", model.MintRequest{
		Token:   testTokenA,
		Account: testAlice,
		Amount:  "123456",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mint: status %d body %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["balance"] != "123456" {
		t.Fatalf("expected balance 123456, got %s", resp["balance"])
	}

	rec = e.do(t, "/v1/admin/mint", "k", model.MintRequest{
		Token:   testTokenA,
		Account: testAlice,
		Amount:  "0",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero mint, got %d", rec.Code)
	}
}
