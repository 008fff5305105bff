package revenue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/observability"
	"github.com/formosa-data/formosa/internal/shared"
)

// Client is the slice of the MOPS client the revenue crawler needs.
type Client interface {
	Get(ctx context.Context, rawURL string, enc mops.Encoding) (*mops.Response, error)
	RevenueURL(market string, rocYear, month, companyType int) string
}

// Store is the persistent row cache.
type Store interface {
	GetMarket(ctx context.Context, q Query) ([]Row, error)
	Save(ctx context.Context, rows []Row) error
}

var retryBackoff = []time.Duration{time.Second, 4 * time.Second}

// Service serves monthly revenue with read-through caching. A whole
// market page is one cache unit; single-company lookups filter it.
type Service struct {
	store   Store
	client  Client
	logger  *slog.Logger
	metrics *observability.Metrics
	flight  shared.Flight
}

// NewService wires the revenue service.
func NewService(store Store, client Client, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, client: client, logger: logger, metrics: metrics}
}

// GetMarket returns every company's revenue for (market, year, month).
func (s *Service) GetMarket(ctx context.Context, q Query, force bool) ([]Row, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if !force {
		rows, err := s.store.GetMarket(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			s.metrics.ObserveCacheLookup("revenue", "hit")
			return rows, nil
		}
		s.metrics.ObserveCacheLookup("revenue", "miss")
	} else {
		s.metrics.ObserveCacheLookup("revenue", "bypass")
	}

	key := fmt.Sprintf("revenue:%s:%d:%d:%d", q.Market, q.Year, q.Month, q.CompanyType)
	result, err, _ := s.flight.Do(ctx, key, func() (any, error) {
		return s.fetchAndStore(context.WithoutCancel(ctx), q)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Row), nil
}

// GetSingle returns one company's row from the market page.
func (s *Service) GetSingle(ctx context.Context, stockID string, q Query, force bool) (*Row, error) {
	if err := shared.ValidateStockID(stockID); err != nil {
		return nil, err
	}
	rows, err := s.GetMarket(ctx, q, force)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].StockID == stockID {
			return &rows[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no revenue for %s in %s %d/%d",
		shared.ErrNotFound, stockID, q.Market, q.Year, q.Month)
}

func (s *Service) fetchAndStore(ctx context.Context, q Query) ([]Row, error) {
	batchID := uuid.NewString()
	resp, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp.NoData() {
		return nil, fmt.Errorf("%w: no revenue page for %s %d/%d",
			shared.ErrNotFound, q.Market, q.Year, q.Month)
	}

	tables, err := mops.ParseTables(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamData, err)
	}
	rows, skipped, err := ParseTables(tables, q)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSkippedRows("revenue", skipped)
	s.log().Info("parsed revenue page",
		slog.String("batch_id", batchID),
		slog.String("market", q.Market),
		slog.Int("year", q.Year),
		slog.Int("month", q.Month),
		slog.Int("rows", len(rows)),
		slog.Int("skipped", skipped))

	if err := s.store.Save(ctx, rows); err != nil {
		s.log().Error("revenue cache write failed",
			slog.String("batch_id", batchID),
			slog.String("error", err.Error()))
	}
	return rows, nil
}

func (s *Service) fetch(ctx context.Context, q Query) (*mops.Response, error) {
	url := s.client.RevenueURL(q.Market, q.Year, q.Month, q.CompanyType)
	for attempt := 0; ; attempt++ {
		resp, err := s.client.Get(ctx, url, mops.EncodingBig5)
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
	if _, ok := Markets[q.Market]; !ok {
		return fmt.Errorf("revenue: invalid market %q", q.Market)
	}
	if err := shared.ValidateROCYear(q.Year); err != nil {
		return err
	}
	if q.Month < 1 || q.Month > 12 {
		return fmt.Errorf("revenue: month %d out of range", q.Month)
	}
	return nil
}
