package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/observability"
	"github.com/formosa-data/formosa/internal/shared"
	"github.com/formosa-data/formosa/internal/taxonomy"
	"github.com/formosa-data/formosa/internal/xbrl"
)

// Store is the persistent statement cache.
type Store interface {
	Get(ctx context.Context, key Key) (*Statement, error)
	Save(ctx context.Context, stmt *Statement) error
	GetFactValue(ctx context.Context, key Key, concept string) (decimal.Decimal, error)
	ListAvailable(ctx context.Context, stockID string) ([]AvailableReport, error)
}

// Downloader fetches XBRL packages from MOPS.
type Downloader interface {
	DownloadXBRL(ctx context.Context, stockID string, rocYear, quarter int, consolidated bool) ([]byte, error)
}

// PackageParser interprets downloaded XBRL content.
type PackageParser interface {
	Parse(content []byte) (*xbrl.Package, error)
}

// LinkbaseResolver supplies taxonomy linkbases when the package ships none.
type LinkbaseResolver interface {
	ResolveLinkbases(ctx context.Context, instance []byte) *taxonomy.LinkbaseSet
}

// Backoff between retries of transient upstream failures.
var retryBackoff = []time.Duration{time.Second, 4 * time.Second}

const hotCacheTTL = 5 * time.Minute

// Service is the read-through façade for financial statements: redis hot
// cache, then postgres, then a rate-limited MOPS fetch. Concurrent requests
// for the same key share one upstream fetch.
type Service struct {
	store    Store
	client   Downloader
	parser   PackageParser
	taxonomy LinkbaseResolver
	builder  *Builder
	redis    *redis.Client
	logger   *slog.Logger
	metrics  *observability.Metrics
	flight   shared.Flight
}

// NewService wires the statement service. redis, taxonomy and metrics may
// be nil; the service degrades to postgres-only caching.
func NewService(
	store Store,
	client Downloader,
	parser PackageParser,
	resolver LinkbaseResolver,
	rdb *redis.Client,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		store:    store,
		client:   client,
		parser:   parser,
		taxonomy: resolver,
		builder:  NewBuilder(),
		redis:    rdb,
		logger:   logger,
		metrics:  metrics,
	}
}

// GetStatement serves one statement, fetching and parsing the filing on a
// cache miss. force bypasses every cache layer and replaces the stored row.
func (s *Service) GetStatement(ctx context.Context, key Key, force bool) (*Statement, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	if !force {
		if stmt := s.hotGet(ctx, key); stmt != nil {
			s.metrics.ObserveCacheLookup("report", "hit")
			return stmt, nil
		}
		stmt, err := s.store.Get(ctx, key)
		if err == nil {
			s.metrics.ObserveCacheLookup("report", "hit")
			s.hotSet(ctx, key, stmt)
			return stmt, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		s.metrics.ObserveCacheLookup("report", "miss")
	} else {
		s.metrics.ObserveCacheLookup("report", "bypass")
	}

	result, err, _ := s.flight.Do(ctx, flightKey(key), func() (any, error) {
		return s.fetchAndBuild(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return nil, err
	}
	stmt := result.(*Statement)
	s.hotSet(ctx, key, stmt)
	return stmt, nil
}

// fetchAndBuild is the single-flight leader path: download, parse, build,
// persist. Storage failure is logged and the fresh statement still returned.
func (s *Service) fetchAndBuild(ctx context.Context, key Key) (*Statement, error) {
	content, err := s.download(ctx, key)
	if err != nil {
		return nil, err
	}

	pkg, err := s.parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamData, err)
	}
	s.supplementLinkbases(ctx, pkg)
	for _, warning := range pkg.Warnings {
		s.log().Warn("xbrl parse warning",
			slog.String("stock_id", key.StockID), slog.String("warning", warning))
	}

	stmt := s.builder.Build(pkg, key)

	if err := s.store.Save(ctx, stmt); err != nil {
		s.log().Error("statement cache write failed",
			slog.String("stock_id", key.StockID),
			slog.Int("year", key.Year),
			slog.Int("quarter", key.Quarter),
			slog.String("error", err.Error()))
		stmt.FetchedAt = time.Now().UTC()
	}
	return stmt, nil
}

// download retries transient upstream failures twice with fixed backoff.
func (s *Service) download(ctx context.Context, key Key) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		content, err := s.client.DownloadXBRL(ctx, key.StockID, key.Year, key.Quarter, true)
		if err == nil {
			return content, nil
		}
		if errors.Is(err, mops.ErrNotFound) {
			return nil, fmt.Errorf("%w: no filing for %s %dQ%d",
				shared.ErrNotFound, key.StockID, key.Year, key.Quarter)
		}
		if !errors.Is(err, mops.ErrTransient) || attempt >= len(retryBackoff) {
			if errors.Is(err, mops.ErrTransient) {
				return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
			}
			return nil, err
		}
		s.log().Warn("transient fetch failure, retrying",
			slog.String("stock_id", key.StockID),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff[attempt]):
		}
	}
}

// supplementLinkbases pulls taxonomy-hosted linkbases when the package
// shipped without its own; failures stay warnings.
func (s *Service) supplementLinkbases(ctx context.Context, pkg *xbrl.Package) {
	if s.taxonomy == nil || len(pkg.Instance) == 0 {
		return
	}
	if len(pkg.Presentation) > 0 && len(pkg.Calculation) > 0 && pkg.Labels.Len() > 0 {
		return
	}
	set := s.taxonomy.ResolveLinkbases(ctx, pkg.Instance)
	if set == nil {
		return
	}
	if len(pkg.Calculation) == 0 {
		pkg.Calculation = set.Calculation
	}
	if len(pkg.Presentation) == 0 {
		pkg.Presentation = set.Presentation
	}
	if pkg.Labels.Len() == 0 {
		pkg.Labels.Merge(set.Labels)
	}
	pkg.Warnings = append(pkg.Warnings, set.Warnings...)
}

// DownloadXBRL passes the raw package bytes through for the download
// endpoint. consolidated selects report_id C over A.
func (s *Service) DownloadXBRL(ctx context.Context, stockID string, year, quarter int, consolidated bool) ([]byte, error) {
	if err := shared.ValidateStockID(stockID); err != nil {
		return nil, err
	}
	if err := shared.ValidateROCYear(year); err != nil {
		return nil, err
	}
	if err := shared.ValidateQuarter(quarter); err != nil {
		return nil, err
	}
	return s.client.DownloadXBRL(ctx, stockID, year, quarter, consolidated)
}

// GetFactValue returns one stored concept value.
func (s *Service) GetFactValue(ctx context.Context, key Key, concept string) (decimal.Decimal, error) {
	if err := validateKey(key); err != nil {
		return decimal.Decimal{}, err
	}
	return s.store.GetFactValue(ctx, key, concept)
}

// ListAvailable lists stored filings for a stock.
func (s *Service) ListAvailable(ctx context.Context, stockID string) ([]AvailableReport, error) {
	if err := shared.ValidateStockID(stockID); err != nil {
		return nil, err
	}
	return s.store.ListAvailable(ctx, stockID)
}

func (s *Service) hotGet(ctx context.Context, key Key) *Statement {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, flightKey(key)).Bytes()
	if err != nil {
		return nil
	}
	var stmt Statement
	if err := json.Unmarshal(raw, &stmt); err != nil {
		return nil
	}
	return &stmt
}

func (s *Service) hotSet(ctx context.Context, key Key, stmt *Statement) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(stmt)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, flightKey(key), raw, hotCacheTTL).Err(); err != nil {
		s.log().Warn("hot cache write failed", slog.String("error", err.Error()))
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func flightKey(key Key) string {
	return fmt.Sprintf("report:%s:%d:%d:%s", key.StockID, key.Year, key.Quarter, key.ReportType)
}

func validateKey(key Key) error {
	if err := shared.ValidateStockID(key.StockID); err != nil {
		return err
	}
	if err := shared.ValidateROCYear(key.Year); err != nil {
		return err
	}
	if err := shared.ValidateQuarter(key.Quarter); err != nil {
		return err
	}
	if !key.ReportType.Valid() {
		return fmt.Errorf("report: unknown report type %q", key.ReportType)
	}
	return nil
}
