package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-house/config"
	account "auction-house/internal/accountService"
	bidding "auction-house/internal/biddingService"
	"auction-house/internal/repository"
	"auction-house/internal/server"
	"auction-house/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("Failed to load config", map[string]any{"error": err.Error()})
	}

	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Warn("Invalid LOG_LEVEL, keeping default", map[string]any{"level": cfg.LogLevel})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, &cfg.Store)
	if err != nil {
		utils.Fatal("Failed to open store", map[string]any{"driver": cfg.Store.Driver, "error": err.Error()})
	}
	defer closeStore()

	biddingSvc := bidding.NewBiddingService(repo, cfg.CategorySlugs())
	accountSvc := account.NewAccountService(repo, cfg.Session.TTL)

	if cfg.SeedDemo {
		if err := seedDemo(ctx, accountSvc, biddingSvc); err != nil {
			utils.Warn("Failed to seed demo data", map[string]any{"error": err.Error()})
		}
	}

	router := server.SetupRouter(biddingSvc, accountSvc, repo)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		utils.Info("Starting auction server", map[string]any{"addr": cfg.Port, "driver": cfg.Store.Driver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("Server stopped unexpectedly", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	utils.Info("Shutting down auction server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("Graceful shutdown failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// openStore builds the repository named by cfg.Driver. Database stores are
// retried with exponential backoff until cfg.ConnectTimeout elapses.
func openStore(ctx context.Context, cfg *config.StoreConfig) (repository.AuctionDB, func(), error) {
	if cfg.Driver == config.DriverMemory {
		return repository.NewMemoryRepo(), func() {}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectTimeout

	var db *gorm.DB
	operation := func() error {
		var err error
		db, err = repository.Open(ctx, cfg)
		return err
	}
	notify := func(err error, wait time.Duration) {
		utils.Warn("Store not ready, retrying", map[string]any{"error": err.Error(), "retry_in": wait.String()})
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			utils.Warn("Failed to close store", map[string]any{"error": err.Error()})
		}
	}
	return repository.NewGormRepo(db), closeFn, nil
}
