package revenue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formosa-data/formosa/internal/platform/db"
)

// Repository persists monthly revenue rows keyed by
// (stock_id, year, month, market).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a revenue repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetMarket returns cached rows for a whole market page, or empty.
func (r *Repository) GetMarket(ctx context.Context, q Query) ([]Row, error) {
	const query = `
		SELECT stock_id, company_name, revenue, revenue_last_month, revenue_last_year,
		       mom_change, yoy_change, accumulated_revenue, accumulated_last_year,
		       accumulated_yoy_change, comment, fetched_at
		FROM monthly_revenue
		WHERE market = $1 AND year = $2 AND month = $3
		ORDER BY stock_id`

	pgxRows, err := r.pool.Query(ctx, query, q.Market, q.Year, q.Month)
	if err != nil {
		return nil, fmt.Errorf("revenue: query market %s %d/%d: %w", q.Market, q.Year, q.Month, err)
	}
	defer pgxRows.Close()

	var rows []Row
	for pgxRows.Next() {
		row := Row{Year: q.Year, Month: q.Month, Market: q.Market}
		var comment *string
		if err := pgxRows.Scan(
			&row.StockID, &row.CompanyName, &row.Revenue, &row.RevenueLastMonth,
			&row.RevenueLastYear, &row.MoMChange, &row.YoYChange,
			&row.AccumulatedRevenue, &row.AccumulatedLastYear, &row.AccumulatedYoY,
			&comment, &row.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("revenue: scan row: %w", err)
		}
		if comment != nil {
			row.Comment = *comment
		}
		rows = append(rows, row)
	}
	return rows, pgxRows.Err()
}

// Save batch-upserts one fetched market page in a single transaction,
// refreshing fetched_at on conflict.
func (r *Repository) Save(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	fetchedAt := time.Now().UTC()

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const upsert = `
			INSERT INTO monthly_revenue
				(stock_id, company_name, year, month, market, revenue,
				 revenue_last_month, revenue_last_year, mom_change, yoy_change,
				 accumulated_revenue, accumulated_last_year, accumulated_yoy_change,
				 comment, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (stock_id, year, month, market) DO UPDATE SET
				company_name = EXCLUDED.company_name,
				revenue = EXCLUDED.revenue,
				revenue_last_month = EXCLUDED.revenue_last_month,
				revenue_last_year = EXCLUDED.revenue_last_year,
				mom_change = EXCLUDED.mom_change,
				yoy_change = EXCLUDED.yoy_change,
				accumulated_revenue = EXCLUDED.accumulated_revenue,
				accumulated_last_year = EXCLUDED.accumulated_last_year,
				accumulated_yoy_change = EXCLUDED.accumulated_yoy_change,
				comment = EXCLUDED.comment,
				fetched_at = EXCLUDED.fetched_at`

		batch := &pgx.Batch{}
		for _, row := range rows {
			var comment *string
			if row.Comment != "" {
				comment = &row.Comment
			}
			batch.Queue(upsert,
				row.StockID, row.CompanyName, row.Year, row.Month, row.Market,
				row.Revenue, row.RevenueLastMonth, row.RevenueLastYear,
				row.MoMChange, row.YoYChange, row.AccumulatedRevenue,
				row.AccumulatedLastYear, row.AccumulatedYoY, comment, fetchedAt)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range rows {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("upsert revenue row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("revenue: save: %w", err)
	}
	return nil
}
