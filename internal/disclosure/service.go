package disclosure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/observability"
	"github.com/formosa-data/formosa/internal/shared"
)

const ajaxEndpoint = "ajax_t05st11"

// Client is the slice of the MOPS client the disclosure crawler needs.
type Client interface {
	PostForm(ctx context.Context, endpoint string, form url.Values, enc mops.Encoding) (*mops.Response, error)
}

// Store is the persistent row cache.
type Store interface {
	Get(ctx context.Context, q Query) (*Response, error)
	Save(ctx context.Context, resp *Response) error
}

var retryBackoff = []time.Duration{time.Second, 4 * time.Second}

// Service serves lending and guarantee disclosures with read-through caching.
type Service struct {
	store   Store
	client  Client
	logger  *slog.Logger
	metrics *observability.Metrics
	flight  shared.Flight
}

// NewService wires the disclosure service.
func NewService(store Store, client Client, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, client: client, logger: logger, metrics: metrics}
}

// GetDisclosure returns every disclosure category for one company-month.
func (s *Service) GetDisclosure(ctx context.Context, q Query, force bool) (*Response, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if !force {
		resp, err := s.store.Get(ctx, q)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			s.metrics.ObserveCacheLookup("disclosure", "hit")
			return resp, nil
		}
		s.metrics.ObserveCacheLookup("disclosure", "miss")
	} else {
		s.metrics.ObserveCacheLookup("disclosure", "bypass")
	}

	key := fmt.Sprintf("disclosure:%s:%d:%d:%s", q.StockID, q.Year, q.Month, q.Market)
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
		return nil, fmt.Errorf("%w: no disclosure data for %s %d/%d",
			shared.ErrNotFound, q.StockID, q.Year, q.Month)
	}

	tables, err := mops.ParseTables(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamData, err)
	}

	out := &Response{
		StockID:              q.StockID,
		CompanyName:          CompanyName(tables),
		Year:                 q.Year,
		Month:                q.Month,
		FundsLending:         ParseFundsLending(tables),
		EndorsementGuarantee: ParseEndorsement(tables),
		CrossCompany:         ParseCrossCompany(tables),
		ChinaGuarantee:       ParseChinaGuarantee(tables),
	}
	if len(out.FundsLending) == 0 && len(out.EndorsementGuarantee) == 0 &&
		out.CrossCompany == nil && len(out.ChinaGuarantee) == 0 {
		return nil, fmt.Errorf("%w: no disclosure rows for %s %d/%d",
			shared.ErrNotFound, q.StockID, q.Year, q.Month)
	}

	s.log().Info("parsed disclosure page",
		slog.String("batch_id", batchID),
		slog.String("stock_id", q.StockID),
		slog.Int("year", q.Year),
		slog.Int("month", q.Month),
		slog.Int("lending", len(out.FundsLending)),
		slog.Int("guarantee", len(out.EndorsementGuarantee)))

	if err := s.store.Save(ctx, out); err != nil {
		s.log().Error("disclosure cache write failed",
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
		"year":               {strconv.Itoa(q.Year)},
		"month":              {strconv.Itoa(q.Month)},
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
		return fmt.Errorf("disclosure: month %d out of range", q.Month)
	}
	if q.Market != "sii" && q.Market != "otc" {
		return fmt.Errorf("disclosure: invalid market %q", q.Market)
	}
	return nil
}
