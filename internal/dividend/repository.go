package dividend

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formosa-data/formosa/internal/platform/db"
)

// Repository persists dividend records keyed by (stock_id, year, quarter).
// Annual records store quarter 0 so the natural key stays non-null.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a dividend repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRange returns cached records covering an inclusive ROC year range.
func (r *Repository) GetRange(ctx context.Context, stockID string, yearStart, yearEnd int) ([]Record, error) {
	const query = `
		SELECT company_name, year, quarter, board_resolution_date,
		       cash_dividend, stock_dividend, fetched_at
		FROM dividends
		WHERE stock_id = $1 AND year BETWEEN $2 AND $3
		ORDER BY year, quarter`

	pgxRows, err := r.pool.Query(ctx, query, stockID, yearStart, yearEnd)
	if err != nil {
		return nil, fmt.Errorf("dividend: query %s %d-%d: %w", stockID, yearStart, yearEnd, err)
	}
	defer pgxRows.Close()

	var records []Record
	for pgxRows.Next() {
		rec := Record{StockID: stockID}
		var quarter int
		if err := pgxRows.Scan(
			&rec.CompanyName, &rec.Year, &quarter, &rec.BoardResolutionDate,
			&rec.CashDividend, &rec.StockDividend, &rec.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("dividend: scan record: %w", err)
		}
		if quarter != 0 {
			rec.Quarter = &quarter
		}
		if rec.CashDividend != nil {
			rec.TotalDividend += *rec.CashDividend
		}
		if rec.StockDividend != nil {
			rec.TotalDividend += *rec.StockDividend
		}
		records = append(records, rec)
	}
	return records, pgxRows.Err()
}

// Save batch-upserts fetched records in a single transaction, refreshing
// fetched_at on conflict.
func (r *Repository) Save(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	fetchedAt := time.Now().UTC()

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const upsert = `
			INSERT INTO dividends
				(stock_id, company_name, year, quarter, board_resolution_date,
				 cash_dividend, stock_dividend, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (stock_id, year, quarter) DO UPDATE SET
				company_name = EXCLUDED.company_name,
				board_resolution_date = EXCLUDED.board_resolution_date,
				cash_dividend = EXCLUDED.cash_dividend,
				stock_dividend = EXCLUDED.stock_dividend,
				fetched_at = EXCLUDED.fetched_at`

		batch := &pgx.Batch{}
		for _, rec := range records {
			quarter := 0
			if rec.Quarter != nil {
				quarter = *rec.Quarter
			}
			batch.Queue(upsert,
				rec.StockID, rec.CompanyName, rec.Year, quarter,
				rec.BoardResolutionDate, rec.CashDividend, rec.StockDividend, fetchedAt)
		}
		results := tx.SendBatch(ctx, batch)
		if err := results.Close(); err != nil {
			return fmt.Errorf("upsert dividend record: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dividend: save: %w", err)
	}
	return nil
}
