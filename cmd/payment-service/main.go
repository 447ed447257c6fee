// Command payment-service serves the charge/payout/refund pipelines:
// create/refresh charge, merchant capture, and refund resolution, plus the
// sync_refund_req batch job. It extends the standard wiring sequence with
// the Redis connection it establishes for the per-order charge lock cache.
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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/auth"
	"github.com/iaros/commerce-core/internal/charge"
	"github.com/iaros/commerce-core/internal/charge/psp/stripeproc"
	"github.com/iaros/commerce-core/internal/payout"
	"github.com/iaros/commerce-core/internal/platform"
	"github.com/iaros/commerce-core/internal/refund"
)

const rpcTimeout = 10 * time.Second

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
		chargeRepo charge.Repo
		payoutRepo payout.Repo
		refundRepo refund.Repo
	)

	if cfg.DatabaseURL != "" {
		db, err := platform.OpenPostgres(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		chargeRepo = charge.NewSQLRepo(db)
		payoutRepo = payout.NewSQLRepo(db)
		refundRepo = refund.NewSQLRepo(db)
	} else {
		logger.Warn("no database_url configured, running with in-memory repositories")
		chargeRepo = charge.NewMemoryRepo()
		payoutRepo = payout.NewMemoryRepo()
		refundRepo = refund.NewMemoryRepo()
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("failed to parse redis_url, using default", zap.Error(err))
		opt = &redis.Options{Addr: "localhost:6379"}
	}
	rdb := redis.NewClient(opt)
	lockTTL := time.Duration(cfg.OrderLockTTLSeconds) * time.Second
	locks := platform.NewOrderLockCache(rdb, lockTTL)

	if cfg.OrderServiceURL == "" {
		logger.Warn("order_service_url not configured, cross-service calls will fail")
	}

	psp := stripeproc.New(cfg.StripeAPIKey, logger)

	orderGateway := charge.NewRestyOrderGateway(cfg.OrderServiceURL, rpcTimeout)
	orderSyncer := charge.NewRestyOrderSyncer(cfg.OrderServiceURL, rpcTimeout)
	chargeSvc := charge.NewService(chargeRepo, orderGateway, locks, psp, orderSyncer, logger)

	merchantGateway := payout.NewCachingMerchantGateway(
		payout.NewRestyMerchantGateway(cfg.PortalServiceURL, rpcTimeout), 30*time.Second)
	buyerRateGateway := payout.NewRestyBuyerRateGateway(cfg.OrderServiceURL, rpcTimeout)
	payoutSvc := payout.NewService(payoutRepo, chargeSvc, merchantGateway, buyerRateGateway, psp)

	requestPuller := refund.NewRestyOrderRequestPuller(cfg.OrderServiceURL, rpcTimeout)
	chargeLookup := refund.InProcessChargeLookup{Charges: chargeRepo}
	currencyConverter := refund.NewRestyCurrencyConverter(cfg.OrderServiceURL, rpcTimeout)
	refundSvc := refund.NewService(refundRepo, requestPuller, chargeLookup, currencyConverter, psp)

	signer := auth.NewSigner(cfg.JWTSigningKey)

	syncJob := refund.NewSyncJob(refundSvc, logger)
	if cfg.RefundSyncCronSchedule != "" {
		if err := syncJob.Start(cfg.RefundSyncCronSchedule); err != nil {
			logger.Error("failed to start refund sync job", zap.Error(err))
		} else {
			defer syncJob.Stop()
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := platform.NewRouter("payment-service", logger)
	h := &handlers{charges: chargeSvc, payouts: payoutSvc, refunds: refundSvc, logger: logger}
	h.registerRoutes(router, signer)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting payment-service", zap.String("port", cfg.ServerPort))
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

	logger.Info("shutting down payment-service...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("payment-service shutdown complete")
}
