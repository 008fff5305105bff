package revenue

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

// Handler serves the monthly revenue endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers revenue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/revenue/{market}", h.getMarket)
		r.Get("/revenue/{market}/{stockID}", h.getSingle)
	})
}

type revenueParams struct {
	Market string `validate:"required,oneof=sii otc rotc pub"`
	Year   int    `validate:"required,min=102,max=200"`
	Month  int    `validate:"required,min=1,max=12"`
}

func (h *Handler) params(r *http.Request) (Query, error) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	companyType, _ := strconv.Atoi(r.URL.Query().Get("company_type"))
	p := revenueParams{
		Market: chi.URLParam(r, "market"),
		Year:   year,
		Month:  month,
	}
	if err := h.validate.Struct(p); err != nil {
		return Query{}, err
	}
	return Query{Market: p.Market, Year: p.Year, Month: p.Month, CompanyType: companyType}, nil
}

func (h *Handler) getMarket(w http.ResponseWriter, r *http.Request) {
	q, err := h.params(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	force := r.URL.Query().Get("force_refresh") == "true"

	rows, err := h.service.GetMarket(r.Context(), q, force)
	if err != nil {
		h.logger.Error("get market revenue failed",
			slog.String("market", q.Market), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"market": q.Market,
		"year":   q.Year,
		"month":  q.Month,
		"count":  len(rows),
		"data":   rows,
	})
}

func (h *Handler) getSingle(w http.ResponseWriter, r *http.Request) {
	q, err := h.params(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	stockID := chi.URLParam(r, "stockID")
	force := r.URL.Query().Get("force_refresh") == "true"

	row, err := h.service.GetSingle(r.Context(), stockID, q, force)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}
