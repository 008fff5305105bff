package report

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/formosa-data/formosa/internal/platform/httpx"
)

// Handler serves the financial statement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers statement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Get("/financials/{stockID}", h.getStatement)
		r.Get("/financials/{stockID}/reports", h.listReports)
		r.Get("/financials/{stockID}/facts/{concept}", h.getFact)
	})
	r.Group(func(r chi.Router) {
		// Raw package downloads hit MOPS directly; keep them scarce.
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Get("/financials/{stockID}/xbrl", h.downloadXBRL)
	})
}

type statementParams struct {
	StockID string `validate:"required,alphanum,min=4,max=6"`
	Year    int    `validate:"required,min=102,max=200"`
	Quarter int    `validate:"required,min=1,max=4"`
	Type    string `validate:"required,oneof=balance_sheet income_statement cash_flow equity_statement"`
}

func (h *Handler) statementParams(r *http.Request) (statementParams, error) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	quarter, _ := strconv.Atoi(r.URL.Query().Get("quarter"))
	p := statementParams{
		StockID: chi.URLParam(r, "stockID"),
		Year:    year,
		Quarter: quarter,
		Type:    r.URL.Query().Get("report_type"),
	}
	return p, h.validate.Struct(p)
}

func (h *Handler) getStatement(w http.ResponseWriter, r *http.Request) {
	p, err := h.statementParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	key := Key{StockID: p.StockID, Year: p.Year, Quarter: p.Quarter, ReportType: Type(p.Type)}
	force := r.URL.Query().Get("force_refresh") == "true"

	stmt, err := h.service.GetStatement(r.Context(), key, force)
	if err != nil {
		h.logger.Error("get statement failed",
			slog.String("stock_id", key.StockID),
			slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "flat" {
		flat := *stmt
		flat.Items = stmt.Flatten()
		httpx.JSON(w, http.StatusOK, &flat)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	stockID := chi.URLParam(r, "stockID")
	reports, err := h.service.ListAvailable(r.Context(), stockID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock_id": stockID, "reports": reports})
}

func (h *Handler) getFact(w http.ResponseWriter, r *http.Request) {
	p, err := h.statementParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	key := Key{StockID: p.StockID, Year: p.Year, Quarter: p.Quarter, ReportType: Type(p.Type)}
	concept := chi.URLParam(r, "concept")

	value, err := h.service.GetFactValue(r.Context(), key, concept)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"stock_id": key.StockID,
		"year":     key.Year,
		"quarter":  key.Quarter,
		"concept":  concept,
		"value":    value,
	})
}

type downloadParams struct {
	StockID string `validate:"required,alphanum,min=4,max=6"`
	Year    int    `validate:"required,min=102,max=200"`
	Quarter int    `validate:"required,min=1,max=4"`
}

func (h *Handler) downloadXBRL(w http.ResponseWriter, r *http.Request) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	quarter, _ := strconv.Atoi(r.URL.Query().Get("quarter"))
	p := downloadParams{
		StockID: chi.URLParam(r, "stockID"),
		Year:    year,
		Quarter: quarter,
	}
	if err := h.validate.Struct(p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	consolidated := r.URL.Query().Get("report_id") != "A"

	content, err := h.service.DownloadXBRL(r.Context(), p.StockID, p.Year, p.Quarter, consolidated)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+p.StockID+"-xbrl.zip\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
