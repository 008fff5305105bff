package insiders

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

// Handler serves the insider pledge endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers pledge routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/insiders/pledge/{stockID}", h.getPledging)
	})
}

type pledgeParams struct {
	StockID string `validate:"required,alphanum,min=4,max=6"`
	Year    int    `validate:"required,min=102,max=200"`
	Month   int    `validate:"required,min=1,max=12"`
	Market  string `validate:"required,oneof=sii otc"`
}

func (h *Handler) getPledging(w http.ResponseWriter, r *http.Request) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	market := r.URL.Query().Get("market")
	if market == "" {
		market = "sii"
	}
	p := pledgeParams{
		StockID: chi.URLParam(r, "stockID"),
		Year:    year,
		Month:   month,
		Market:  market,
	}
	if err := h.validate.Struct(p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameters", err.Error())
		return
	}
	force := r.URL.Query().Get("force_refresh") == "true"

	q := Query{StockID: p.StockID, Year: p.Year, Month: p.Month, Market: p.Market}
	resp, err := h.service.GetPledging(r.Context(), q, force)
	if err != nil {
		h.logger.Error("get pledging failed",
			slog.String("stock_id", q.StockID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}
