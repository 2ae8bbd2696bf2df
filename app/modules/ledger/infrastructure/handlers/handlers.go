package ledgerhandlers

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/beauty-contest/app/httpx"
	ledgerservice "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

// maxBodyBytes caps a submission body.
const maxBodyBytes = 4 << 10

// Handlers serves the ledger wire format.
type Handlers interface {
	HandleGetTable(w http.ResponseWriter, r *http.Request)
	HandleSubmit(w http.ResponseWriter, r *http.Request)
	HandleSchedule(w http.ResponseWriter, r *http.Request)
}

// LedgerHandlers implements Handlers.
type LedgerHandlers struct {
	service ledgerservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewLedgerHandlers creates a new LedgerHandlers instance.
func NewLedgerHandlers(service ledgerservice.Service, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &LedgerHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// SubmitResponse acknowledges an appended row.
type SubmitResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Timestamp string `json:"timestamp_utc"`
}

// HandleGetTable serves ?table=commits|reveals as CSV with a header row.
func (h *LedgerHandlers) HandleGetTable(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ledger.HandleGetTable")
	defer span.End()

	table, err := ledgerdomain.ParseTable(r.URL.Query().Get("table"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.service.Table(ctx, table)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list ledger table",
			attr.String("table", string(table)),
			attr.Error(err),
			attr.ExtractCorrelationID(ctx),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := WriteCSV(w, table, records); err != nil {
		h.logger.WarnContext(ctx, "Failed to stream ledger CSV", attr.Error(err))
	}
}

// WriteCSV renders records in the column order of table.
func WriteCSV(w io.Writer, table ledgerdomain.Table, records []ledgerdomain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns()); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(rec.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// HandleSubmit accepts a commit or reveal JSON body.
func (h *LedgerHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ledger.HandleSubmit")
	defer span.End()

	var sub ledgerdomain.Submission
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&sub); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	rec, err := h.service.Submit(ctx, sub)
	if err != nil {
		switch {
		case ledgerservice.IsClientError(err):
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
		case ledgerservice.IsWindowError(err):
			httpx.WriteError(w, http.StatusForbidden, err.Error())
		default:
			h.logger.ErrorContext(ctx, "Failed to append submission",
				attr.Identity(sub.Identity),
				attr.Error(err),
				attr.ExtractCorrelationID(ctx),
			)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to append submission")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, SubmitResponse{
		Status:    "ok",
		ID:        rec.ID.String(),
		Kind:      string(rec.Kind),
		Timestamp: ledgerdomain.FormatTimestamp(rec.Timestamp),
	})
}

// HandleSchedule reports which phase windows are open.
func (h *LedgerHandlers) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.service.Status(r.Context()))
}
