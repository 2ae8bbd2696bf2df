package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	"github.com/Black-And-White-Club/beauty-contest/app/eventbus"
	"github.com/Black-And-White-Club/beauty-contest/app/httpx"
	authjwt "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/infrastructure/jwt"
	"github.com/Black-And-White-Club/beauty-contest/app/modules/consensus"
	consensusservice "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/application"
	consensusqueue "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/queue"
	consensusrouter "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/router"
	"github.com/Black-And-White-Club/beauty-contest/app/modules/ledger"
	ledgerclient "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/client"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	ledgerrouter "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/router"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
	"github.com/Black-And-White-Club/beauty-contest/config"
)

// App holds every long-lived component of the server.
type App struct {
	Config          *config.Config
	Logger          *slog.Logger
	DB              *bun.DB
	EventBus        eventbus.EventBus
	Router          *message.Router
	HTTP            *http.Server
	Registry        *prometheus.Registry
	LedgerModule    *ledger.Module
	ConsensusModule *consensus.Module
	Queue           *consensusqueue.Service
	Schedule        ledgerdomain.Schedule

	wg sync.WaitGroup
}

// NewApp builds the application from cfg. Without a Postgres DSN everything
// is kept in memory and the finalize job is not scheduled.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	params, err := cfg.Game.Params()
	if err != nil {
		return nil, fmt.Errorf("invalid game config: %w", err)
	}
	windows, err := cfg.Game.Windows(clock.Real{})
	if err != nil {
		return nil, fmt.Errorf("invalid game windows: %w", err)
	}
	app.Schedule = ledgerdomain.Schedule{
		CommitDeadline: windows.CommitDeadline,
		RevealOpen:     windows.RevealOpen,
		RevealClose:    windows.RevealClose,
	}

	if cfg.Postgres.DSN != "" {
		pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
		app.DB = bun.NewDB(pgdb, pgdialect.New())
		if err := app.DB.PingContext(ctx); err != nil {
			app.DB.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	app.EventBus, err = eventbus.NewEventBus(cfg.NATS.URL, logger)
	if err != nil {
		app.closeDB()
		return nil, err
	}

	app.Router, err = message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, watermill.NewSlogLogger(logger))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create watermill router: %w", err)
	}

	mux := NewHTTPRouter(app.Registry)

	app.LedgerModule, err = ledger.NewModule(ctx, ledger.Deps{
		Logger:    logger,
		Metrics:   observability.NewLedgerMetrics(app.Registry),
		Publisher: app.EventBus,
		DB:        app.DB,
		Schedule:  app.Schedule,
	}, mux, ledgerrouter.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		SubmitLimiter:  httpx.PerMinute(cfg.HTTP.RatePerMinute),
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize ledger module: %w", err)
	}

	var reader consensusservice.LedgerReader = app.LedgerModule.LedgerService
	if cfg.Ledger.URL != "" {
		c, err := ledgerclient.New(cfg.Ledger.URL, ledgerclient.WithTimeout(cfg.Ledger.Timeout), ledgerclient.WithLogger(logger))
		if err != nil {
			app.Close()
			return nil, err
		}
		logger.InfoContext(ctx, "Consensus reads a remote ledger", attr.String("ledger_url", c.BaseURL()))
		reader = c
	}

	var provider authjwt.Provider
	if cfg.JWT.Secret != "" {
		provider = authjwt.NewProvider(cfg.JWT.Secret)
	} else {
		logger.WarnContext(ctx, "JWT_SECRET not set, admin routes are disabled")
	}

	app.ConsensusModule, err = consensus.NewModule(ctx, consensus.Deps{
		Logger:    logger,
		Metrics:   observability.NewConsensusMetrics(app.Registry),
		Ledger:    reader,
		LedgerURL: cfg.Ledger.URL,
		EventBus:  app.EventBus,
		Router:    app.Router,
		Registry:  app.Registry,
		DB:        app.DB,
		Params:    params,
	}, mux, consensusrouter.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Provider:       provider,
		Logger:         logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize consensus module: %w", err)
	}

	if app.DB != nil {
		app.Queue, err = consensusqueue.NewService(ctx, app.DB, logger, cfg.Postgres.DSN,
			observability.NewQueueMetrics(app.Registry), app.ConsensusModule.ConsensusService)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to initialize queue service: %w", err)
		}
	}

	app.HTTP = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app, nil
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down. The App cannot be reused afterwards.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := app.Router.Run(ctx); err != nil {
			errCh <- fmt.Errorf("watermill router stopped: %w", err)
		}
	}()
	<-app.Router.Running()

	if app.Queue != nil {
		if err := app.Queue.Start(ctx); err != nil {
			cancel()
			app.Close()
			return err
		}
		if err := app.Queue.ScheduleFinalize(ctx, app.Schedule.RevealClose); err != nil {
			app.Logger.ErrorContext(ctx, "Failed to schedule finalize", attr.Error(err))
		}
	}

	app.wg.Add(1)
	go app.ConsensusModule.Run(ctx, &app.wg)

	go func() {
		app.Logger.Info("HTTP server listening", attr.String("addr", app.HTTP.Addr))
		if err := app.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server stopped: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.Logger.Info("Shutting down application")
	case runErr = <-errCh:
		app.Logger.Error("Component failed, shutting down", attr.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.HTTP.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("HTTP shutdown failed", attr.Error(err))
	}
	if app.Queue != nil {
		if err := app.Queue.Stop(shutdownCtx); err != nil {
			app.Logger.Error("Queue shutdown failed", attr.Error(err))
		}
	}
	cancel()
	app.wg.Wait()
	app.Close()
	return runErr
}

// Close releases every component. It is safe on a partially built App.
func (app *App) Close() {
	if app.ConsensusModule != nil {
		_ = app.ConsensusModule.Close()
	}
	if app.LedgerModule != nil {
		_ = app.LedgerModule.Close()
	}
	if app.Router != nil {
		if err := app.Router.Close(); err != nil {
			app.Logger.Error("Failed to close watermill router", attr.Error(err))
		}
	}
	if app.EventBus != nil {
		if err := app.EventBus.Close(); err != nil {
			app.Logger.Error("Failed to close event bus", attr.Error(err))
		}
	}
	app.closeDB()
	app.Logger.Info("Application shut down gracefully")
}

func (app *App) closeDB() {
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Error closing database connection", attr.Error(err))
		}
		app.DB = nil
	}
}

// Handler returns the HTTP handler serving the API.
func (app *App) Handler() http.Handler {
	return app.HTTP.Handler
}
