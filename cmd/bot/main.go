package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/merchdesk/merchbot/internal/catalog"
	"github.com/merchdesk/merchbot/internal/config"
	"github.com/merchdesk/merchbot/internal/dispatch"
	"github.com/merchdesk/merchbot/internal/events"
	"github.com/merchdesk/merchbot/internal/httpx"
	"github.com/merchdesk/merchbot/internal/inventory"
	kafkax "github.com/merchdesk/merchbot/internal/kafka"
	"github.com/merchdesk/merchbot/internal/metrics"
	"github.com/merchdesk/merchbot/internal/orders"
	"github.com/merchdesk/merchbot/internal/postgres"
	"github.com/merchdesk/merchbot/internal/roles"
	"github.com/merchdesk/merchbot/internal/session"
	"github.com/merchdesk/merchbot/internal/store"
	"github.com/merchdesk/merchbot/internal/workflow"
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

	sessions, closeSessions := openSessions(cfg)
	defer closeSessions()

	m := metrics.NewRegistry()
	ledger := inventory.NewLedger(kv, log)
	orderStore := orders.NewStore(kv, log)
	cat := catalog.New(cfg.Sizes, colorsForAll(cfg.Sizes, cfg.Colors))
	limits := roles.NewLimits(cfg.ElevatedActors, cfg.OrderLimit, orderStore.CompletedCount)
	channels := parseChannels(cfg.Channels)

	renderProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicRender, 1024, log)
	renderProd.Start()
	deliveryProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicDelivery, 1024, log)
	deliveryProd.Start()

	engine := workflow.NewEngine(
		sessions, ledger, orderStore, cat, channels, limits,
		&events.KafkaPresenter{Producer: renderProd, Service: cfg.ServiceName},
		&events.KafkaDeliverer{Producer: deliveryProd, Service: cfg.ServiceName},
		log, m,
	)

	disp := dispatch.New(func(ctx context.Context, in dispatch.Inbound) error {
		return engine.Handle(ctx, in.ActorID, in.ChannelID, in.Event)
	}, cfg.MailboxSize, cfg.IdleAfter, log, m.EventsDropped.Inc)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, events.TopicInbound, log)
	go func() {
		log.Info("consumer started",
			zap.String("group", cfg.ConsumerGroup), zap.String("topic", events.TopicInbound))
		err := cons.Start(ctx, func(ctx context.Context, msg kafkago.Message) error {
			env, err := kafkax.UnwrapPayload[events.Envelope](msg.Value)
			if err != nil {
				log.Warn("bad envelope, skipping", zap.Error(err))
				return nil
			}
			ev, err := events.DecodeEvent(env)
			if err != nil {
				log.Warn("undecodable event, skipping",
					zap.String("event_id", env.EventID), zap.Error(err))
				return nil
			}
			disp.Dispatch(ctx, dispatch.Inbound{
				ActorID:   env.ActorID,
				ChannelID: env.ChannelID,
				Event:     ev,
			})
			return nil
		})
		if err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	router := httpx.NewRouter()
	router.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
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

	// Producers close only after the dispatcher has drained: a worker still
	// inside the engine may publish until disp.Close returns.
	cancel()
	disp.Close()
	renderProd.Close()
	deliveryProd.Close()
	renderProd.WaitClosed()
	deliveryProd.WaitClosed()
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

func openSessions(cfg config.Config) (session.Registry, func()) {
	if cfg.SessionBackend == "redis" {
		r := session.NewRedis(cfg.RedisAddr, cfg.SessionTTL)
		return r, func() { _ = r.Close() }
	}
	return session.NewMemory(), func() {}
}

// colorsForAll applies the configured color list to every size.
func colorsForAll(sizes, colors []string) map[string][]string {
	m := make(map[string][]string, len(sizes))
	if len(colors) == 0 {
		return m
	}
	for _, s := range sizes {
		m[s] = colors
	}
	return m
}

// parseChannels reads id|title|prefix entries.
func parseChannels(entries []string) workflow.StaticChannels {
	var out workflow.StaticChannels
	for _, e := range entries {
		parts := strings.SplitN(e, "|", 3)
		ch := workflow.Channel{ID: parts[0]}
		if len(parts) > 1 {
			ch.Title = parts[1]
		}
		if len(parts) > 2 {
			ch.Prefix = parts[2]
		}
		out = append(out, ch)
	}
	return out
}
