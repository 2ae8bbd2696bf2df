package consensushandlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/beauty-contest/app/httpx"
	authhandlers "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/infrastructure/handlers"
	consensusservice "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/application"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	consensusdb "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

// Handlers serves computed results and the instructor endpoints.
type Handlers interface {
	HandleResults(w http.ResponseWriter, r *http.Request)
	HandleLeaderboardCSV(w http.ResponseWriter, r *http.Request)
	HandleResultsText(w http.ResponseWriter, r *http.Request)
	HandleWorkbook(w http.ResponseWriter, r *http.Request)
	HandleChart(w http.ResponseWriter, r *http.Request)
	HandleListSnapshots(w http.ResponseWriter, r *http.Request)
	HandleGetSnapshot(w http.ResponseWriter, r *http.Request)
	HandleFinalize(w http.ResponseWriter, r *http.Request)
}

// ConsensusHandlers implements Handlers.
type ConsensusHandlers struct {
	service consensusservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewConsensusHandlers creates a new ConsensusHandlers instance.
func NewConsensusHandlers(service consensusservice.Service, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &ConsensusHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// ResultsResponse is the JSON view of one computation.
type ResultsResponse struct {
	ComputedAt  time.Time                         `json:"computed_at"`
	SnapshotID  string                            `json:"snapshot_id,omitempty"`
	Params      consensusdomain.Params            `json:"params"`
	Stats       consensusdomain.ParseStats        `json:"stats"`
	Summary     consensusservice.Summary          `json:"summary"`
	Leaderboard []consensusservice.LeaderboardRow `json:"leaderboard"`
	Commits     []consensusservice.CommitRow      `json:"commits"`
	Reveals     []consensusservice.RevealRow      `json:"reveals"`
	// Message is set when nobody verified.
	Message string `json:"message,omitempty"`
}

// NoValidParticipants is shown instead of winners when nothing verified.
const NoValidParticipants = "no valid participants"

func newResultsResponse(rep *consensusservice.Report) ResultsResponse {
	resp := ResultsResponse{
		ComputedAt:  rep.ComputedAt,
		Params:      rep.Result.Params,
		Stats:       rep.Result.Stats,
		Summary:     rep.Export.Summary,
		Leaderboard: rep.Export.Leaderboard,
		Commits:     rep.Export.Commits,
		Reveals:     rep.Export.Reveals,
	}
	if rep.SnapshotID != uuid.Nil {
		resp.SnapshotID = rep.SnapshotID.String()
	}
	if !rep.Export.Summary.HasWinners() {
		resp.Message = NoValidParticipants
	}
	return resp
}

// compute runs a fresh consensus and writes the failure response itself.
func (h *ConsensusHandlers) compute(ctx context.Context, w http.ResponseWriter) (*consensusservice.Report, bool) {
	rep, err := h.service.Run(ctx, consensusservice.RunOptions{Trigger: consensusservice.TriggerAPI})
	if err != nil {
		h.writeRunError(ctx, w, err)
		return nil, false
	}
	return rep, true
}

func (h *ConsensusHandlers) writeRunError(ctx context.Context, w http.ResponseWriter, err error) {
	h.logger.ErrorContext(ctx, "Consensus request failed",
		attr.Error(err),
		attr.ExtractCorrelationID(ctx),
	)
	if errors.Is(err, consensusservice.ErrFetchFailed) {
		httpx.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	httpx.WriteError(w, http.StatusInternalServerError, "failed to compute consensus")
}

func (h *ConsensusHandlers) HandleResults(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "consensus.HandleResults")
	defer span.End()

	rep, ok := h.compute(ctx, w)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newResultsResponse(rep))
}

func (h *ConsensusHandlers) HandleLeaderboardCSV(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "consensus.HandleLeaderboardCSV")
	defer span.End()

	rep, ok := h.compute(ctx, w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := consensusservice.WriteLeaderboardCSV(&buf, rep.Export.Leaderboard); err != nil {
		h.writeRunError(ctx, w, err)
		return
	}
	writeFile(w, "text/csv; charset=utf-8", consensusservice.FileLeaderboard, buf.Bytes())
}

func (h *ConsensusHandlers) HandleResultsText(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "consensus.HandleResultsText")
	defer span.End()

	rep, ok := h.compute(ctx, w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = consensusservice.WriteResults(w, rep.Export.Summary)
}

func (h *ConsensusHandlers) HandleWorkbook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "consensus.HandleWorkbook")
	defer span.End()

	rep, ok := h.compute(ctx, w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := consensusservice.WriteWorkbook(&buf, rep.Export); err != nil {
		h.writeRunError(ctx, w, err)
		return
	}
	writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", consensusservice.FileWorkbook, buf.Bytes())
}

func (h *ConsensusHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "consensus.HandleChart")
	defer span.End()

	rep, ok := h.compute(ctx, w)
	if !ok {
		return
	}
	rng := rep.Result.Params.Range
	png, err := consensusservice.DistributionChart(rep.Export, rng.Min, rng.Max, consensusservice.DefaultPalette)
	if err != nil {
		h.writeRunError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *ConsensusHandlers) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "consensus.HandleListSnapshots")
	defer span.End()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snaps, err := h.service.ListSnapshots(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list snapshots", attr.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snaps)
}

func (h *ConsensusHandlers) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "consensus.HandleGetSnapshot")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "snapshotID"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid snapshot id")
		return
	}
	snap, err := h.service.GetSnapshot(ctx, id)
	if err != nil {
		if errors.Is(err, consensusdb.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to load snapshot", attr.String("snapshot_id", id.String()), attr.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

func (h *ConsensusHandlers) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "consensus.HandleFinalize")
	defer span.End()

	claims, ok := authhandlers.ClaimsFromContext(ctx)
	if !ok || !claims.CanFinalize() {
		httpx.WriteError(w, http.StatusForbidden, "instructor role required")
		return
	}
	h.logger.InfoContext(ctx, "Manual finalize requested",
		attr.String("subject", claims.Subject),
		attr.ExtractCorrelationID(ctx),
	)

	rep, err := h.service.Finalize(ctx, consensusservice.TriggerAdmin)
	if err != nil {
		h.writeRunError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newResultsResponse(rep))
}

func writeFile(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
