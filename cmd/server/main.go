package main

import (
	"context"
	"encoding/hex"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaultpilot/vaultpilot/internal/config"
	"github.com/vaultpilot/vaultpilot/internal/executor"
	"github.com/vaultpilot/vaultpilot/internal/handler"
	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/middleware"
	"github.com/vaultpilot/vaultpilot/internal/optimizer"
	"github.com/vaultpilot/vaultpilot/internal/pkg/logger"
	"github.com/vaultpilot/vaultpilot/internal/registry"
	"github.com/vaultpilot/vaultpilot/internal/relayer"
	"github.com/vaultpilot/vaultpilot/internal/repository"
	"github.com/vaultpilot/vaultpilot/internal/service"
	"github.com/vaultpilot/vaultpilot/internal/signer"
	"github.com/vaultpilot/vaultpilot/internal/stream"
	"github.com/vaultpilot/vaultpilot/internal/token"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	owner := common.HexToAddress(cfg.Protocol.OwnerAddress)
	feeRecipient := common.HexToAddress(cfg.Protocol.FeeRecipient)
	minDeposit, ok := new(big.Int).SetString(cfg.Protocol.MinDeposit, 10)
	if !ok {
		log.Fatalf("Invalid protocol.min_deposit: %q", cfg.Protocol.MinDeposit)
	}

	// 2. Initialize Persistence
	// Job Persistence (Redis > Memory)
	var jobStore relayer.JobStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			jobStore = repository.NewRedisJobStore(redisClient, time.Duration(cfg.Redis.JobTTLSeconds)*time.Second)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if jobStore == nil {
		jobStore = relayer.NewMemoryJobStore()
	}

	// Audit Persistence (Postgres > Local File)
	var auditRepo service.AuditRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			auditRepo = repository.NewPostgresAuditRepo(db)
		} else {
			logger.Error("⚠️ Failed to connect to DB, audit logs will be file-only", "error", err)
		}
	}

	auditSvc, err := service.NewAuditService("./logs", auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	// 3. Initialize Core Services
	hub := stream.NewHub()
	hub.Start()

	reg, err := registry.New(owner, feeRecipient, cfg.Protocol.FeeBps)
	if err != nil {
		log.Fatalf("Failed to initialize registry: %v", err)
	}

	bank := token.NewBank()
	ledgerAccount := derivedAccount("vaultpilot:ledger")
	led := ledger.New(bank, reg, ledgerAccount, minDeposit, hub)

	domain := signer.NewDomain(cfg.Protocol.ChainID, common.HexToAddress(cfg.Protocol.VerifyingContract))
	verifier := signer.NewVerifier(domain, reg, time.Duration(cfg.Protocol.MaxPayloadAgeSecs)*time.Second)

	// The relayer identity executes queued rebalances. It is derived, not
	// configured, and authorized at boot.
	relayerAccount := derivedAccount("vaultpilot:relayer")
	if err := reg.SetRelayerAuthorization(owner, relayerAccount, true); err != nil {
		log.Fatalf("Failed to authorize relayer account: %v", err)
	}

	exec := executor.New(verifier, led, reg, relayerAccount, hub)

	relayerSvc := relayer.NewService(jobStore, exec, cfg.Relayer.QueueSize)
	relayerSvc.Start(cfg.Relayer.Workers)

	// Optimizer signer key comes from config; without one a throwaway key is
	// generated so the recommend flow still works in demo mode.
	signerKey := cfg.Optimizer.SignerKey
	if signerKey == "" {
		key, err := crypto.GenerateKey()
		if err != nil {
			log.Fatalf("Failed to generate optimizer key: %v", err)
		}
		signerKey = hex.EncodeToString(crypto.FromECDSA(key))
		logger.Warn("⚠️ No optimizer signer key configured, generated an ephemeral one")
	}
	optSigner, err := signer.NewSigner(signerKey, domain)
	if err != nil {
		log.Fatalf("Failed to initialize optimizer signer: %v", err)
	}
	if err := reg.SetSignerAuthorization(owner, optSigner.Address(), true); err != nil {
		log.Fatalf("Failed to authorize optimizer signer: %v", err)
	}

	feed := optimizer.NewMemoryPriceFeed()
	opt := optimizer.New(
		feed.Samples,
		optSigner,
		reg,
		led,
		time.Duration(cfg.Optimizer.PayloadTTLSeconds)*time.Second,
		cfg.Optimizer.AnnualizationFactor,
	)

	idempotencyStore := middleware.NewInMemIdempotencyStore()

	// 4. Initialize Handlers
	vaultHandler := handler.NewVaultHandler(led)
	rebalanceHandler := handler.NewRebalanceHandler(relayerSvc, opt)
	priceHandler := handler.NewPriceHandler(feed)
	adminHandler := handler.NewAdminHandler(reg, led, bank, owner)
	auditHandler := handler.NewAuditHandler(auditSvc)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "vaultpilot"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.RateLimitMiddleware(cfg))
	v1.Use(middleware.IdempotencyMiddleware(idempotencyStore))
	{
		v1.POST("/vaults", vaultHandler.Create)
		v1.GET("/vaults", vaultHandler.List)
		v1.GET("/vaults/:id", vaultHandler.Get)
		v1.POST("/vaults/:id/deposit", vaultHandler.Deposit)
		v1.POST("/vaults/:id/withdraw", vaultHandler.Withdraw)
		v1.POST("/vaults/:id/prices", priceHandler.Record)
		v1.GET("/vaults/:id/recommend", rebalanceHandler.Recommend)
		v1.POST("/rebalances", rebalanceHandler.Submit)
		v1.GET("/rebalances/:id", rebalanceHandler.Status)
		v1.GET("/events", func(c *gin.Context) {
			hub.ServeWS(c.Writer, c.Request)
		})
	}

	// Admin Routes
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.POST("/relayers", adminHandler.SetRelayer)
		admin.POST("/signers", adminHandler.SetSigner)
		admin.POST("/fee", adminHandler.SetProtocolFee)
		admin.POST("/fee-recipient", adminHandler.SetFeeRecipient)
		admin.POST("/ownership/transfer", adminHandler.TransferOwnership)
		admin.POST("/ownership/accept", adminHandler.AcceptOwnership)
		admin.POST("/vaults/:id/active", adminHandler.SetVaultActive)
		admin.POST("/mint", adminHandler.Mint)
		admin.GET("/audit", auditHandler.List)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 VaultPilot started", "port", cfg.Server.Port, "relayer", relayerAccount.Hex(), "signer", optSigner.Address().Hex())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	relayerSvc.Stop()
	hub.Stop()
	auditSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

// derivedAccount makes a stable internal address from a label. These accounts
// exist only in the simulated bank.
func derivedAccount(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label))[12:])
}
