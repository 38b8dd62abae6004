// Package http provides the read-only JSON API over the analysis results
// and the endpoints for triggering and observing pipeline runs.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "firmpulse/internal/errors"
	"firmpulse/internal/middleware"
	"firmpulse/internal/services"
)

// AnalysisHandler serves the analysis dataset and model results.
type AnalysisHandler struct {
	service  *services.AnalysisService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewAnalysisHandler creates the handler.
func NewAnalysisHandler(service *services.AnalysisService, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:  service,
		logger:   logger.With(slog.String("component", "analysis_handler")),
		validate: validator.New(),
	}
}

// Routes returns the analysis routes.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/countries", h.GetCountries)
	r.Route("/countries/{country}", func(r chi.Router) {
		r.Use(h.CountryCtx)
		r.Get("/rows", h.GetCountryRows)
		r.Get("/model", h.GetCountryModel)
	})
	r.Get("/reports", h.GetReports)

	return r
}

// countryParam is validated before country routes execute.
type countryParam struct {
	Country string `validate:"required,min=2,max=56"`
}

// CountryCtx validates the country URL parameter.
func (h *AnalysisHandler) CountryCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		param := countryParam{Country: chi.URLParam(r, "country")}
		if err := h.validate.Struct(param); err != nil {
			middleware.RespondError(w, r, h.logger,
				apperrors.NewValidationError("invalid country parameter"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetCountries handles GET /api/analysis/countries.
func (h *AnalysisHandler) GetCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.service.Countries(r.Context())
	if err != nil {
		middleware.RespondError(w, r, h.logger, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"countries": countries,
		"count":     len(countries),
	})
}

// GetCountryRows handles GET /api/analysis/countries/{country}/rows.
func (h *AnalysisHandler) GetCountryRows(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")

	rows, err := h.service.CountryRows(r.Context(), country)
	if err != nil {
		middleware.RespondError(w, r, h.logger, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"country": country,
		"rows":    rows,
		"count":   len(rows),
	})
}

// GetCountryModel handles GET /api/analysis/countries/{country}/model.
func (h *AnalysisHandler) GetCountryModel(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")

	result, err := h.service.CountryResult(r.Context(), country)
	if err != nil {
		middleware.RespondError(w, r, h.logger, err)
		return
	}

	render.JSON(w, r, result)
}

// GetReports handles GET /api/analysis/reports.
func (h *AnalysisHandler) GetReports(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ReportFiles(r.Context())
	if err != nil {
		middleware.RespondError(w, r, h.logger, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}
