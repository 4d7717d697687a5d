package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nostrdvm.backend/internal/config"
	"nostrdvm.backend/internal/domain/entities"
	"nostrdvm.backend/internal/domain/repositories"
	"nostrdvm.backend/internal/infrastructure/codec"
	"nostrdvm.backend/internal/infrastructure/dispatcher"
	"nostrdvm.backend/internal/infrastructure/jobs"
	"nostrdvm.backend/internal/infrastructure/network"
	"nostrdvm.backend/internal/infrastructure/payment"
	userrepo "nostrdvm.backend/internal/infrastructure/repositories"
	"nostrdvm.backend/internal/infrastructure/status"
	"nostrdvm.backend/internal/interfaces/eventbus"
	"nostrdvm.backend/internal/interfaces/http/middleware"
	"nostrdvm.backend/internal/orchestrator"
	"nostrdvm.backend/pkg/crypto"
	"nostrdvm.backend/pkg/logger"
	"nostrdvm.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*sql.DB, error) { return sql.Open("postgres", dsn) }
	runServer  = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ownPubKey := resolveIdentity(&cfg.Nostr)

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (user balances will error out)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL")
	}

	users := userrepo.NewUserRepository(db)
	wallet := payment.NewLNbitsClient(cfg.LNbits.URL, cfg.LNbits.InvoiceKey, cfg.LNbits.AdminKey)
	cashu := payment.NewMintRedeemer()

	// Production deployments substitute a real relay-pool client here;
	// the network transport is an external collaborator (spec.md §1).
	net := network.NewLoopback(ownPubKey)

	envelope, err := resolveEnvelope(cfg.Security.PayloadEncryptionKey)
	if err != nil {
		logger.Warn(context.Background(), "payload encryption disabled", zap.Error(err))
	}

	disp := dispatcher.New(8, cfg.DVM.UseOwnVenv)

	orch := buildOrchestrator(cfg, ownPubKey, users, wallet, cashu, net, disp, envelope)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Announce(ctx); err != nil {
		logger.Warn(ctx, "failed to publish handler announcement", zap.Error(err))
	}

	handler := eventbus.NewHandler(orch)
	startSubscriptions(ctx, net, disp, ownPubKey, handler)

	reaper := jobs.NewReaper(orch)
	go reaper.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	registerAdminRoutes(r, orch)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down...")
		reaper.Stop()
		cancel()
	}()

	log.Printf("🚀 DVM orchestrator starting, admin surface on port %s", cfg.Server.Port)
	log.Printf("🔑 DVM pubkey: %s", ownPubKey)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// resolveIdentity derives PublicKey from PrivateKey, minting a fresh
// ephemeral keypair when none is configured (spec.md §6).
func resolveIdentity(nostrCfg *config.NostrConfig) string {
	if nostrCfg.PrivateKey == "" {
		priv, pub, err := crypto.GenerateKeypair()
		if err != nil {
			log.Fatalf("failed to generate identity keypair: %v", err)
		}
		log.Println("⚠️ No PRIVATE_KEY configured, generated an ephemeral identity for this run")
		nostrCfg.PrivateKey = priv
		nostrCfg.PublicKey = pub
		return pub
	}
	pub := crypto.DerivePublicKey(nostrCfg.PrivateKey)
	nostrCfg.PublicKey = pub
	return pub
}

func resolveEnvelope(keyHex string) (*codec.Envelope, error) {
	return codec.NewEnvelope(keyHex)
}

func buildOrchestrator(
	cfg *config.Config,
	ownPubKey string,
	users *userrepo.UserRepository,
	wallet *payment.LNbitsClient,
	cashu *payment.MintRedeemer,
	net *network.Loopback,
	disp *dispatcher.Dispatcher,
	envelope *codec.Envelope,
) *orchestrator.Orchestrator {
	emitter := status.New(ownPubKey, envelope, func(ev entities.Event) error {
		return net.Publish(context.Background(), ev)
	})
	return orchestrator.New(orchestrator.Config{
		OwnPubKey:               ownPubKey,
		NIP89Name:               cfg.Nostr.NIP89Name,
		ScriptPath:              cfg.DVM.Script,
		Identifier:              cfg.DVM.Identifier,
		ShowResultBeforePayment: cfg.DVM.ShowResultBeforePayment,
		MaxFreeJobsPerMinute:    5,
		Users:                   users,
		Wallet:                  wallet,
		Cashu:                   cashu,
		Network:                 net,
		Dispatcher:              disp,
		Emitter:                 emitter,
		Envelope:                envelope,
	})
}

// startSubscriptions opens the two subscriptions Entry A/B are fed from:
// job requests for every registered worker's kind, and zap receipts
// addressed to us.
func startSubscriptions(ctx context.Context, net *network.Loopback, disp *dispatcher.Dispatcher, ownPubKey string, handler *eventbus.Handler) {
	var kinds []int
	for _, w := range disp.Workers() {
		kinds = append(kinds, w.Kind())
	}
	since := time.Now().Unix()

	if len(kinds) > 0 {
		requests, err := net.Subscribe(ctx, repositories.Filter{Kinds: kinds, Since: since})
		if err == nil {
			go handler.Run(ctx, requests)
		}
	}

	payments, err := net.Subscribe(ctx, eventbus.SubscriptionFilter(ownPubKey, since))
	if err == nil {
		go handler.Run(ctx, payments)
	}
}

func registerAdminRoutes(r *gin.Engine, orch *orchestrator.Orchestrator) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/debug/ledger", func(c *gin.Context) {
		c.JSON(http.StatusOK, orch.Stats())
	})
}
