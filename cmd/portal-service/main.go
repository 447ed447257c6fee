// Command portal-service serves merchant onboarding, onboarding-status
// refresh, the chargeline report, and product-policy editing.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/auth"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/merchant"
	"github.com/iaros/commerce-core/internal/merchant/psp/stripeonboard"
	"github.com/iaros/commerce-core/internal/platform"
	"github.com/iaros/commerce-core/internal/reporting"
)

func main() {
	cfgPath := os.Getenv("SERVICE_BASE_PATH")
	cfg, err := platform.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := platform.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	var (
		merchantRepo  merchant.Repo
		storeRepo     merchant.StoreProfileRepo
		policyRepo    catalog.PolicyRepo
		reportingRepo reporting.Repo
	)

	if cfg.DatabaseURL != "" {
		db, err := platform.OpenPostgres(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		merchantRepo = merchant.NewSQLRepo(db)
		storeRepo = merchant.NewSQLStoreProfileRepo(db)
		policyRepo = catalog.NewSQLPolicyRepo(db)
		reportingRepo = reporting.NewSQLRepo(db)
	} else {
		logger.Warn("no database_url configured, running with in-memory repositories")
		merchantRepo = merchant.NewMemoryRepo()
		storeRepo = merchant.NewMemoryStoreProfileRepo()
		policyRepo = catalog.NewMemoryPolicyRepo()
		reportingRepo = reporting.NewMemoryRepo()
	}

	storeGateway := merchant.RepoStoreGateway{Repo: storeRepo}
	onboardingPSP := stripeonboard.New(cfg.StripeAPIKey, logger)
	merchantSvc := merchant.NewService(merchantRepo, storeGateway, onboardingPSP)
	reportingSvc := reporting.NewService(reportingRepo)

	signer := auth.NewSigner(cfg.JWTSigningKey)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := platform.NewRouter("portal-service", logger)
	h := &handlers{
		merchants: merchantSvc, stores: storeRepo, policyRepo: policyRepo,
		reporting: reportingSvc, logger: logger,
	}
	h.registerRoutes(router, signer)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting portal-service", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

func waitForShutdown(server *http.Server, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down portal-service...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("portal-service shutdown complete")
}
