package dividend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/observability"
	"github.com/formosa-data/formosa/internal/shared"
)

// The quarterly-capable endpoint. The legacy ajax_t05st09 only reports
// shareholder-meeting confirmed annual dividends.
const ajaxEndpoint = "ajax_t05st09_2"

// Client is the slice of the MOPS client the dividend crawler needs.
type Client interface {
	PostForm(ctx context.Context, endpoint string, form url.Values, enc mops.Encoding) (*mops.Response, error)
}

// Store is the persistent record cache.
type Store interface {
	GetRange(ctx context.Context, stockID string, yearStart, yearEnd int) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

var retryBackoff = []time.Duration{time.Second, 4 * time.Second}

// Service serves dividend distributions with read-through caching.
type Service struct {
	store   Store
	client  Client
	logger  *slog.Logger
	metrics *observability.Metrics
	flight  shared.Flight
}

// NewService wires the dividend service.
func NewService(store Store, client Client, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, client: client, logger: logger, metrics: metrics}
}

// GetDividends returns every distribution in the queried year range.
func (s *Service) GetDividends(ctx context.Context, q Query, force bool) (*Response, error) {
	if q.YearEnd == 0 {
		q.YearEnd = q.YearStart
	}
	if q.QueryType == 0 {
		q.QueryType = QueryByDividendYear
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if !force {
		records, err := s.store.GetRange(ctx, q.StockID, q.YearStart, q.YearEnd)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			s.metrics.ObserveCacheLookup("dividend", "hit")
			return buildResponse(q, records), nil
		}
		s.metrics.ObserveCacheLookup("dividend", "miss")
	} else {
		s.metrics.ObserveCacheLookup("dividend", "bypass")
	}

	key := fmt.Sprintf("dividend:%s:%d:%d:%d", q.StockID, q.YearStart, q.YearEnd, q.QueryType)
	result, err, _ := s.flight.Do(ctx, key, func() (any, error) {
		return s.fetchAndStore(context.WithoutCancel(ctx), q)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

// GetAnnualSummary folds one year's distributions into annual totals.
func (s *Service) GetAnnualSummary(ctx context.Context, stockID string, year int, force bool) (*Summary, error) {
	resp, err := s.GetDividends(ctx, Query{StockID: stockID, YearStart: year, YearEnd: year}, force)
	if err != nil {
		return nil, err
	}

	var cash, stock float64
	for _, rec := range resp.Records {
		if rec.CashDividend != nil {
			cash += *rec.CashDividend
		}
		if rec.StockDividend != nil {
			stock += *rec.StockDividend
		}
	}
	return &Summary{
		StockID:            stockID,
		CompanyName:        resp.CompanyName,
		Year:               year,
		TotalCashDividend:  round2(cash),
		TotalStockDividend: round2(stock),
		TotalDividend:      round2(cash + stock),
		QuarterlyDividends: resp.Records,
	}, nil
}

func (s *Service) fetchAndStore(ctx context.Context, q Query) (*Response, error) {
	batchID := uuid.NewString()
	resp, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp.NoData() {
		return nil, fmt.Errorf("%w: no dividend data for %s %d-%d",
			shared.ErrNotFound, q.StockID, q.YearStart, q.YearEnd)
	}

	tables, err := mops.ParseTables(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamData, err)
	}
	companyName := CompanyName(tables, q.StockID)
	records, skipped, err := ParseRecords(tables, q.StockID, companyName)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no dividend records for %s %d-%d",
			shared.ErrNotFound, q.StockID, q.YearStart, q.YearEnd)
	}

	s.metrics.ObserveSkippedRows("dividend", skipped)
	s.log().Info("parsed dividend page",
		slog.String("batch_id", batchID),
		slog.String("stock_id", q.StockID),
		slog.Int("year_start", q.YearStart),
		slog.Int("year_end", q.YearEnd),
		slog.Int("records", len(records)),
		slog.Int("skipped", skipped))

	if err := s.store.Save(ctx, records); err != nil {
		s.log().Error("dividend cache write failed",
			slog.String("batch_id", batchID),
			slog.String("error", err.Error()))
	}
	return buildResponse(q, records), nil
}

func (s *Service) fetch(ctx context.Context, q Query) (*mops.Response, error) {
	form := url.Values{
		"encodeURIComponent": {"1"},
		"step":               {"1"},
		"firstin":            {"1"},
		"off":                {"1"},
		"isnew":              {"false"},
		"co_id":              {q.StockID},
		"date1":              {strconv.Itoa(q.YearStart)},
		"date2":              {strconv.Itoa(q.YearEnd)},
		"qryType":            {strconv.Itoa(q.QueryType)},
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

func buildResponse(q Query, records []Record) *Response {
	companyName := ""
	if len(records) > 0 {
		companyName = records[0].CompanyName
	}
	return &Response{
		StockID:     q.StockID,
		CompanyName: companyName,
		YearStart:   q.YearStart,
		YearEnd:     q.YearEnd,
		Count:       len(records),
		Records:     records,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
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
	if err := shared.ValidateROCYear(q.YearStart); err != nil {
		return err
	}
	if err := shared.ValidateROCYear(q.YearEnd); err != nil {
		return err
	}
	if q.YearEnd < q.YearStart {
		return fmt.Errorf("dividend: year range %d-%d inverted", q.YearStart, q.YearEnd)
	}
	if q.QueryType != QueryByResolutionYear && q.QueryType != QueryByDividendYear {
		return fmt.Errorf("dividend: invalid query type %d", q.QueryType)
	}
	return nil
}
