package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/merchdesk/merchbot/internal/config"
	"github.com/merchdesk/merchbot/internal/httpx"
	"github.com/merchdesk/merchbot/internal/inventory"
	"github.com/merchdesk/merchbot/internal/metrics"
	"github.com/merchdesk/merchbot/internal/orders"
	"github.com/merchdesk/merchbot/internal/postgres"
	"github.com/merchdesk/merchbot/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer closeKV()

	m := metrics.NewRegistry()
	ledger := inventory.NewLedger(kv, log)
	orderStore := orders.NewStore(kv, log)

	router := httpx.NewRouter()
	router.Handle("/metrics", m.Handler())
	ah := &httpx.AdminHandler{Ledger: ledger, Orders: orderStore, Log: log}
	ah.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("admin http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
}

func openKV(ctx context.Context, cfg config.Config) (store.KV, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "pebble":
		p, err := store.NewPebble(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
		if err != nil {
			return nil, nil, err
		}
		kv := postgres.NewKV(pool)
		if err := kv.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return kv, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
