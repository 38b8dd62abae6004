package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"firmpulse/internal/middleware"
	"firmpulse/internal/services"
)

// RunsHandler triggers pipeline runs and reports their status.
type RunsHandler struct {
	service *services.AnalysisService
	logger  *slog.Logger
}

// NewRunsHandler creates the handler.
func NewRunsHandler(service *services.AnalysisService, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		service: service,
		logger:  logger.With(slog.String("component", "runs_handler")),
	}
}

// Routes returns the run routes.
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListRuns)
	r.Post("/", h.StartRun)
	r.Get("/{runID}", h.GetRun)

	return r
}

// ListRuns handles GET /api/runs.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids := h.service.Runs(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"runs":  ids,
		"count": len(ids),
	})
}

// StartRun handles POST /api/runs. The run executes in the background;
// progress streams over the websocket.
func (h *RunsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	runID, err := h.service.StartRun(r.Context())
	if err != nil {
		middleware.RespondError(w, r, h.logger, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"run_id": runID,
		"status": "started",
	})
}

// GetRun handles GET /api/runs/{runID}.
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	state, err := h.service.Run(r.Context(), runID)
	if err != nil {
		middleware.RespondError(w, r, h.logger, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"run_id":   state.ID,
		"status":   state.CurrentStatus(),
		"steps":    state.StepSnapshots(),
		"duration": state.Duration().String(),
		"error":    state.ErrorMessage(),
	})
}
