package dividend

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

// Handler serves the dividend endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers dividend routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/dividends/{stockID}", h.getDividends)
		r.Get("/dividends/{stockID}/summary", h.getSummary)
	})
}

type dividendParams struct {
	StockID   string `validate:"required,alphanum,min=4,max=6"`
	YearStart int    `validate:"required,min=102,max=200"`
	YearEnd   int    `validate:"omitempty,min=102,max=200"`
	QueryType int    `validate:"omitempty,oneof=1 2"`
}

func (h *Handler) params(r *http.Request) (Query, error) {
	yearStart, _ := strconv.Atoi(r.URL.Query().Get("year_start"))
	yearEnd, _ := strconv.Atoi(r.URL.Query().Get("year_end"))
	queryType, _ := strconv.Atoi(r.URL.Query().Get("query_type"))
	p := dividendParams{
		StockID:   chi.URLParam(r, "stockID"),
		YearStart: yearStart,
		YearEnd:   yearEnd,
		QueryType: queryType,
	}
	if err := h.validate.Struct(p); err != nil {
		return Query{}, err
	}
	return Query{StockID: p.StockID, YearStart: p.YearStart, YearEnd: p.YearEnd, QueryType: p.QueryType}, nil
}

func (h *Handler) getDividends(w http.ResponseWriter, r *http.Request) {
	q, err := h.params(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	force := r.URL.Query().Get("force_refresh") == "true"

	resp, err := h.service.GetDividends(r.Context(), q, force)
	if err != nil {
		h.logger.Error("get dividends failed",
			slog.String("stock_id", q.StockID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	stockID := chi.URLParam(r, "stockID")
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	p := dividendParams{StockID: stockID, YearStart: year}
	if err := h.validate.Struct(p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	force := r.URL.Query().Get("force_refresh") == "true"

	summary, err := h.service.GetAnnualSummary(r.Context(), stockID, year, force)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
