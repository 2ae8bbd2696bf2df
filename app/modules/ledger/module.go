package ledger

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	ledgerservice "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	ledgerhandlers "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/handlers"
	ledgerdb "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/repositories"
	ledgerrouter "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/router"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
)

// Module represents the ledger module.
type Module struct {
	LedgerService ledgerservice.Service
	Handlers      ledgerhandlers.Handlers
	logger        *slog.Logger
}

// Deps are the collaborators the ledger needs. A nil DB selects the in-memory
// repository.
type Deps struct {
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   observability.LedgerMetrics
	Publisher message.Publisher
	DB        *bun.DB
	Clock     clock.Clock
	Schedule  ledgerdomain.Schedule
}

// NewModule creates the ledger module and mounts its routes on r.
func NewModule(ctx context.Context, deps Deps, r chi.Router, opts ledgerrouter.Options) (*Module, error) {
	logger := deps.Logger
	logger.InfoContext(ctx, "ledger.NewModule initializing")

	var (
		repo ledgerdb.Repository
		db   bun.IDB
	)
	if deps.DB != nil {
		repo = ledgerdb.NewRepository(deps.DB)
		db = deps.DB
	} else {
		logger.WarnContext(ctx, "No database configured, ledger rows are kept in memory")
		repo = ledgerdb.NewMemoryRepository()
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NoOpMetrics{}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.Tracer("ledger")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	service := ledgerservice.NewLedgerService(repo, deps.Publisher, clk, deps.Schedule, logger, metrics, tracer, db)
	handlers := ledgerhandlers.NewLedgerHandlers(service, logger, tracer)

	ledgerrouter.Register(r, handlers, opts)

	return &Module{
		LedgerService: service,
		Handlers:      handlers,
		logger:        logger,
	}, nil
}

// Close shuts down the ledger module.
func (m *Module) Close() error {
	m.logger.Info("Ledger module stopped")
	return nil
}
