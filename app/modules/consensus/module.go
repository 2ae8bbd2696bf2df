package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	"github.com/Black-And-White-Club/beauty-contest/app/eventbus"
	consensusservice "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/application"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	consensushandlers "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/handlers"
	consensusdb "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories"
	consensusrouter "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/router"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
)

// Module represents the consensus module.
type Module struct {
	ConsensusService consensusservice.Service
	Handlers         consensushandlers.Handlers
	ConsensusRouter  *consensusrouter.ConsensusRouter
	logger           *slog.Logger
	cancelFunc       context.CancelFunc
}

// Deps are the collaborators the consensus module needs.
type Deps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics observability.ConsensusMetrics
	// Ledger is where rows are read from, either the local ledger service or
	// a remote ledger client.
	Ledger    consensusservice.LedgerReader
	LedgerURL string
	// EventBus and Router are optional. Without them the module serves HTTP
	// only and never recomputes on ledger events.
	EventBus eventbus.EventBus
	Router   *message.Router
	Registry prometheus.Registerer
	// A nil DB keeps snapshots in memory.
	DB     *bun.DB
	Clock  clock.Clock
	Params consensusdomain.Params
}

// NewModule creates the consensus module, mounts its HTTP routes on r and
// registers its event handlers.
func NewModule(ctx context.Context, deps Deps, r chi.Router, opts consensusrouter.Options) (*Module, error) {
	logger := deps.Logger
	logger.InfoContext(ctx, "consensus.NewModule initializing")

	if deps.Ledger == nil {
		return nil, fmt.Errorf("consensus module requires a ledger reader")
	}

	var (
		repo consensusdb.Repository
		db   bun.IDB
	)
	if deps.DB != nil {
		repo = consensusdb.NewRepository(deps.DB)
		db = deps.DB
	} else {
		logger.WarnContext(ctx, "No database configured, snapshots are kept in memory")
		repo = consensusdb.NewMemoryRepository()
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NoOpMetrics{}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.Tracer("consensus")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	params := deps.Params
	if params == (consensusdomain.Params{}) {
		params = consensusdomain.DefaultParams()
	}

	var publisher message.Publisher
	if deps.EventBus != nil {
		publisher = deps.EventBus
	}

	service := consensusservice.NewConsensusService(
		deps.Ledger, deps.LedgerURL, repo, publisher, clk, params, logger, metrics, tracer, db,
	)
	handlers := consensushandlers.NewConsensusHandlers(service, logger, tracer)
	if opts.Logger == nil {
		opts.Logger = logger
	}
	consensusrouter.Register(r, handlers, opts)

	module := &Module{
		ConsensusService: service,
		Handlers:         handlers,
		logger:           logger,
	}

	if deps.EventBus != nil && deps.Router != nil {
		eventRouter := consensusrouter.NewConsensusRouter(logger, deps.Router, deps.EventBus, deps.EventBus, tracer, deps.Registry)
		eventHandlers := consensushandlers.NewConsensusEventHandlers(service, logger, tracer)
		if err := eventRouter.Configure(ctx, eventHandlers); err != nil {
			return nil, fmt.Errorf("failed to configure consensus router: %w", err)
		}
		module.ConsensusRouter = eventRouter
	}

	return module, nil
}

// Run blocks until ctx is cancelled or Close is called.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.Info("Starting consensus module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	m.logger.Info("Consensus module goroutine stopped")
}

// Close stops the module. The shared watermill router is closed by its owner.
func (m *Module) Close() error {
	m.logger.Info("Stopping consensus module")
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.logger.Info("Consensus module stopped")
	return nil
}
