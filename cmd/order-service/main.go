// Command order-service serves the order-management HTTP surface: order
// creation, billing/shipping edits, and return requests, plus the
// reservation-reclamation cron job.
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
	"github.com/iaros/commerce-core/internal/bus"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/order"
	"github.com/iaros/commerce-core/internal/platform"
	"github.com/iaros/commerce-core/internal/reclamation"
	"github.com/iaros/commerce-core/internal/returns"
	"github.com/iaros/commerce-core/internal/stock"
)

// busExchange is the single topic exchange every bus route publishes and
// consumes through.
const busExchange = "commerce"

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
		orderRepo   order.Repo
		priceRepo   catalog.PriceRepo
		policyRepo  catalog.PolicyRepo
		stockRepo   stock.Repo
		returnsRepo returns.Repo
	)

	if cfg.DatabaseURL != "" {
		db, err := platform.OpenPostgres(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		orderRepo = order.NewSQLRepo(db)
		priceRepo = catalog.NewSQLPriceRepo(db)
		policyRepo = catalog.NewSQLPolicyRepo(db)
		stockRepo = stock.NewSQLRepo(db)
		returnsRepo = returns.NewSQLRepo(db)
	} else {
		logger.Warn("no database_url configured, running with in-memory repositories")
		orderRepo = order.NewMemoryRepo()
		priceRepo = catalog.NewMemoryPriceRepo()
		policyRepo = catalog.NewMemoryPolicyRepo()
		stockRepo = stock.NewMemoryRepo()
		returnsRepo = returns.NewMemoryRepo()
	}

	stockEngine := stock.NewEngine(stockRepo, stock.NewKeyLockPool())
	orderSvc := order.NewService(orderRepo, priceRepo, policyRepo, stockEngine)

	signer := auth.NewSigner(cfg.JWTSigningKey)

	reclaimJob := reclamation.NewJob(orderSvc, stockEngine, logger)
	if cfg.ReclamationCronSchedule != "" {
		if err := reclaimJob.Start(cfg.ReclamationCronSchedule); err != nil {
			logger.Error("failed to start reclamation job", zap.Error(err))
		} else {
			defer reclaimJob.Stop()
		}
	}

	if cfg.AMQPURL != "" {
		busClient, err := bus.Dial(cfg.AMQPURL, busExchange, "order-service", logger)
		if err != nil {
			logger.Error("failed to connect to message broker, running without AMQP routes", zap.Error(err))
		} else {
			defer busClient.Close()
			if err := registerBusRoutes(busClient, priceRepo, stockEngine, logger); err != nil {
				logger.Error("failed to register bus routes", zap.Error(err))
			} else {
				busCtx, cancelBus := context.WithCancel(context.Background())
				defer cancelBus()
				go func() {
					if err := busClient.Consume(busCtx); err != nil {
						logger.Error("bus consumer stopped", zap.Error(err))
					}
				}()
			}
		}
	} else {
		logger.Warn("no amqp_url configured, running without the update_store_products/edit_stock_level routes")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := platform.NewRouter("order-service", logger)
	h := &handlers{orders: orderSvc, returns: returnsRepo, logger: logger}
	h.registerRoutes(router, signer)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting order-service", zap.String("port", cfg.ServerPort))
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

	logger.Info("shutting down order-service...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("order-service shutdown complete")
}
