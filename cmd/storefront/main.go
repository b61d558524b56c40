package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/es"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/service/checkout"
	"github.com/Skotchmaster/storefront/internal/service/notify"
	"github.com/Skotchmaster/storefront/internal/service/search"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/uistate"
	"github.com/Skotchmaster/storefront/pkg/apiclient"
	"github.com/Skotchmaster/storefront/pkg/config"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	authmw "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	persister, closeState, err := openState(initCtx, cfg.State)
	cancel()
	if err != nil {
		logger.Error("state_init_error", "backend", cfg.State.Backend, "error", err)
		os.Exit(1)
	}

	bus := events.New(logger)

	storeOpts := []session.Option{session.WithBus(bus), session.WithLogger(logger)}
	if cfg.State.SessionSecret != "" {
		sealer, err := session.NewSealer(cfg.State.SessionSecret)
		if err != nil {
			logger.Error("session_sealer_error", "error", err)
			os.Exit(1)
		}
		storeOpts = append(storeOpts, session.WithSealer(sealer))
	}
	store := session.NewStore(persister, storeOpts...)

	var producer *mykafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, func() string {
			u, _ := store.User()
			return u.ID
		})
		if err != nil {
			logger.Error("kafka_init_error", "error", err)
			os.Exit(1)
		}
		bus.SetSink(producer)
	}

	client := apiclient.NewClient(cfg.APIURL, cfg.HTTPTimeout, apiclient.WithTokenSource(store))

	notifySvc := notify.NewService(client, bus, logger, cfg.Poll.PageSize)
	poller := notify.NewPoller(notifySvc, notify.PollConfig{
		Active:         cfg.Poll.ActiveInterval,
		Idle:           cfg.Poll.IdleInterval,
		ActivityWindow: cfg.Poll.ActivityWindow,
	}, logger)
	detach := poller.Attach(ctx, bus)

	var searchSvc *search.Service
	if cfg.ES.URL != "" {
		esCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		esClient, err := es.NewClient(esCtx, cfg.ES, logger)
		cancel()
		if err != nil {
			logger.Warn("es_disabled", "error", err)
		} else {
			searchSvc = &search.Service{ES: esClient, Index: cfg.ES.Index}
		}
	}

	// the poller is attached first so a restored session starts it
	store.Restore(ctx)

	toggles := uistate.New(uistate.Sidebar, uistate.AdminSidebar)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(middleware.Recover())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(csrf.Middleware(csrf.Config{SkipPaths: []string{"/health/live", "/health/ready"}}))

	httpserver.Register(e, &httpserver.Deps{
		SessionHandler:      &httpserver.SessionHTTP{Store: store, API: client, UI: toggles},
		CartHandler:         &httpserver.CartHTTP{Store: store},
		CheckoutHandler:     &httpserver.CheckoutHTTP{Svc: checkout.NewService(client, store, bus, logger, cfg.OrderConcurrency)},
		CatalogHandler:      &httpserver.CatalogHTTP{Svc: &catalog.Service{API: client}, Searcher: searchSvc},
		NotificationHandler: &httpserver.NotificationHTTP{Svc: notifySvc, Bus: bus},
		UIHandler:           &httpserver.UIHTTP{Toggles: toggles},
		OrdersHandler:       &httpserver.OrdersHTTP{API: client},
		AdminHandler:        &httpserver.AdminHTTP{API: client},
		Guard:               authmw.NewSessionGuard(store),
		Ready:               func() bool { return !store.IsLoading() },
	})

	go func() {
		logger.Info("storefront listening", "addr", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("echo_start_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_error", "error", err)
	}
	detach()
	poller.Stop()
	bus.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if err := closeState(); err != nil {
		logger.Error("state_close_error", "error", err)
	}

	logger.Info("storefront stopped")
}

func openState(ctx context.Context, cfg config.State) (session.Persister, func() error, error) {
	if cfg.Backend == "redis" {
		r, err := repo.NewRedisRepo(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}

	gdb, err := db.Open(ctx, cfg.Backend, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	r, err := repo.NewGormRepo(ctx, gdb)
	if err != nil {
		_ = db.Close(gdb)
		return nil, nil, err
	}
	return r, func() error { return db.Close(gdb) }, nil
}
