package insiders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/observability"
	"github.com/formosa-data/formosa/internal/shared"
)

const ajaxEndpoint = "ajax_stapap1"

// Client is the slice of the MOPS client the pledge crawler needs.
type Client interface {
	PostForm(ctx context.Context, endpoint string, form url.Values, enc mops.Encoding) (*mops.Response, error)
}

// Store is the persistent row cache.
type Store interface {
	Get(ctx context.Context, q Query) (*Response, error)
	Save(ctx context.Context, resp *Response) error
}

var retryBackoff = []time.Duration{time.Second, 4 * time.Second}

// Service serves insider pledge data with read-through caching.
type Service struct {
	store   Store
	client  Client
	logger  *slog.Logger
	metrics *observability.Metrics
	flight  shared.Flight
}

// NewService wires the insiders service.
func NewService(store Store, client Client, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, client: client, logger: logger, metrics: metrics}
}

// GetPledging returns the pledge summary and details for one company-month.
func (s *Service) GetPledging(ctx context.Context, q Query, force bool) (*Response, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if !force {
		resp, err := s.store.Get(ctx, q)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			s.metrics.ObserveCacheLookup("pledge", "hit")
			return resp, nil
		}
		s.metrics.ObserveCacheLookup("pledge", "miss")
	} else {
		s.metrics.ObserveCacheLookup("pledge", "bypass")
	}

	key := fmt.Sprintf("pledge:%s:%d:%d:%s", q.StockID, q.Year, q.Month, q.Market)
	result, err, _ := s.flight.Do(ctx, key, func() (any, error) {
		return s.fetchAndStore(context.WithoutCancel(ctx), q)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

func (s *Service) fetchAndStore(ctx context.Context, q Query) (*Response, error) {
	batchID := uuid.NewString()
	resp, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp.NoData() {
		return nil, fmt.Errorf("%w: no pledge data for %s %d/%d",
			shared.ErrNotFound, q.StockID, q.Year, q.Month)
	}

	tables, err := mops.ParseTables(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamData, err)
	}
	companyName := CompanyName(tables, q.StockID)
	details, skipped, err := ParseDetails(tables, q, companyName)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("%w: no pledge rows for %s %d/%d",
			shared.ErrNotFound, q.StockID, q.Year, q.Month)
	}
	summary := ParseSummary(tables, q, companyName)

	s.metrics.ObserveSkippedRows("pledge", skipped)
	s.log().Info("parsed pledge page",
		slog.String("batch_id", batchID),
		slog.String("stock_id", q.StockID),
		slog.Int("year", q.Year),
		slog.Int("month", q.Month),
		slog.Int("details", len(details)),
		slog.Int("skipped", skipped))

	out := &Response{
		StockID:     q.StockID,
		CompanyName: companyName,
		Year:        q.Year,
		Month:       q.Month,
		Summary:     summary,
		Details:     details,
	}
	if err := s.store.Save(ctx, out); err != nil {
		s.log().Error("pledge cache write failed",
			slog.String("batch_id", batchID),
			slog.String("error", err.Error()))
	}
	return out, nil
}

func (s *Service) fetch(ctx context.Context, q Query) (*mops.Response, error) {
	form := url.Values{
		"encodeURIComponent": {"1"},
		"step":               {"1"},
		"firstin":            {"1"},
		"off":                {"1"},
		"TYPEK":              {q.Market},
		"year":               {fmt.Sprintf("%d", q.Year)},
		"month":              {fmt.Sprintf("%02d", q.Month)},
		"co_id":              {q.StockID},
	}
	for attempt := 0; ; attempt++ {
		resp, err := s.client.PostForm(ctx, ajaxEndpoint, form, mops.EncodingUTF8)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, mops.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", shared.ErrNotFound, err)
		}
		if !errors.Is(err, mops.ErrTransient) || attempt >= len(retryBackoff) {
			if errors.Is(err, mops.ErrTransient) {
				return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
			}
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff[attempt]):
		}
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func validateQuery(q Query) error {
	if err := shared.ValidateStockID(q.StockID); err != nil {
		return err
	}
	if err := shared.ValidateROCYear(q.Year); err != nil {
		return err
	}
	if q.Month < 1 || q.Month > 12 {
		return fmt.Errorf("insiders: month %d out of range", q.Month)
	}
	if q.Market != "sii" && q.Market != "otc" {
		return fmt.Errorf("insiders: invalid market %q", q.Market)
	}
	return nil
}
