package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/config"
	"github.com/GoPolymarket/safeboard/internal/feeterms"
	"github.com/GoPolymarket/safeboard/internal/handler"
	"github.com/GoPolymarket/safeboard/internal/middleware"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/GoPolymarket/safeboard/internal/repository"
	"github.com/GoPolymarket/safeboard/internal/service"
	"github.com/GoPolymarket/safeboard/internal/signer"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Operator key and chain
	opSigner, err := signer.NewSigner(cfg.Operator.PrivateKey)
	if err != nil {
		log.Fatalf("Failed to load operator key: %v", err)
	}

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 15*time.Second)
	client, err := chain.Dial(dialCtx, cfg.Chain.RPCURL, opSigner, cfg.Chain.ChainID)
	cancelDial()
	if err != nil {
		log.Fatalf("Failed to connect chain: %v", err)
	}
	defer client.Close()

	resolved, err := config.Resolve(cfg, client.ChainID().Int64())
	if err != nil {
		log.Fatalf("Failed to resolve configuration: %v", err)
	}
	logger.Info("Chain ready",
		"chain_id", resolved.ChainID,
		"operator", opSigner.Address().Hex(),
		"fee_router_factory", resolved.Deployment.FeeRouterFactory.Hex(),
	)

	// 3. Operator lock (Redis > in-process)
	var lock repository.OperatorLock
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("Connected to Redis, operator lock is shared")
			ttl := time.Duration(cfg.Redis.LockTTLSeconds) * time.Second
			lock = repository.NewRedisOperatorLock(redisClient, cfg.Redis.LockPrefix, ttl)
			defer redisClient.Close()
		} else {
			logger.Error("Failed to connect to Redis, operator lock is process-local", "error", err)
		}
	}
	if lock == nil {
		lock = repository.NewLocalOperatorLock()
	}

	// Run journal (Postgres > in-memory buffer only)
	var journalRepo repository.RunJournal
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			var pg *repository.PostgresRunJournal
			if pg, err = repository.NewPostgresRunJournal(db); err == nil {
				journalRepo = pg
			}
		}
		if err != nil {
			logger.Error("Failed to open run journal database, keeping runs in memory", "error", err)
		} else {
			logger.Info("Connected to PostgreSQL run journal")
		}
	}
	journal := service.NewJournalService(journalRepo, logger.Get())

	// 4. Orchestrator
	var fees feeterms.Source
	if resolved.FeeSourceURL != "" {
		fees = feeterms.NewHTTPSource(resolved.FeeSourceURL, resolved.FeeSourceTimeout)
	}
	orchestrator, err := service.NewOrchestrator(client, resolved, service.Options{
		Fees:     fees,
		Lock:     lock,
		Recorder: journal,
		Log:      logger.Get(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}

	onboardingHandler := handler.NewOnboardingHandler(orchestrator)
	runsHandler := handler.NewRunsHandler(journal)

	// 5. Setup Router
	// Amounts arrive as JSON numbers or strings; keep numbers exact.
	binding.EnableDecoderUseNumber = true
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "safeboard",
			"chain_id": resolved.ChainID,
			"operator": orchestrator.Operator().Hex(),
		})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.AdminMiddleware(cfg.Auth.AdminKey))
	v1.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))
	{
		v1.POST("/onboard", onboardingHandler.Onboard)
		v1.POST("/accounts/:address/permissions", onboardingHandler.SetupPermissions)
		v1.POST("/accounts/:address/transfers", onboardingHandler.Transfer)
		v1.GET("/accounts/:address/module", onboardingHandler.PredictModule)
		v1.GET("/runs", runsHandler.List)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Safeboard started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Onboarding runs wait on confirmations; give them the confirm timeout.
	ctx, cancel := context.WithTimeout(context.Background(), resolved.ConfirmTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	journal.Close()

	logger.Info("Server exiting")
}
