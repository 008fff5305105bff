package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/formosa-data/formosa/internal/platform/db"
	"github.com/formosa-data/formosa/internal/shared"
)

// Repository persists statements in postgres: the full tree as JSONB plus
// flattened per-concept rows for direct fact lookup.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a report repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the cached statement for a key, or shared.ErrNotFound.
func (r *Repository) Get(ctx context.Context, key Key) (*Statement, error) {
	const q = `
		SELECT full_data, fetched_at
		FROM financial_reports
		WHERE stock_id = $1 AND year = $2 AND quarter = $3 AND report_type = $4`

	var raw []byte
	var fetchedAt time.Time
	err := r.pool.QueryRow(ctx, q, key.StockID, key.Year, key.Quarter, string(key.ReportType)).
		Scan(&raw, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report: get %v: %w", key, err)
	}

	var stmt Statement
	if err := json.Unmarshal(raw, &stmt); err != nil {
		return nil, fmt.Errorf("report: decode stored statement %v: %w", key, err)
	}
	stmt.FetchedAt = fetchedAt
	return &stmt, nil
}

// Save upserts the statement and its flattened facts in one transaction,
// refreshing fetched_at. The company master row is kept alongside so that
// filings are joinable by name.
func (r *Repository) Save(ctx context.Context, stmt *Statement) error {
	payload := *stmt
	payload.FetchedAt = time.Time{}
	raw, err := json.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("report: encode statement: %w", err)
	}
	fetchedAt := time.Now().UTC()

	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const upsertCompany = `
			INSERT INTO companies (stock_id, name)
			VALUES ($1, $2)
			ON CONFLICT (stock_id) DO NOTHING`
		if _, err := tx.Exec(ctx, upsertCompany, stmt.StockID, stmt.StockID); err != nil {
			return fmt.Errorf("upsert company: %w", err)
		}

		const upsertReport = `
			INSERT INTO financial_reports
				(stock_id, year, quarter, report_type, currency, unit_scale,
				 report_date, is_empty, full_data, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (stock_id, year, quarter, report_type) DO UPDATE SET
				currency = EXCLUDED.currency,
				unit_scale = EXCLUDED.unit_scale,
				report_date = EXCLUDED.report_date,
				is_empty = EXCLUDED.is_empty,
				full_data = EXCLUDED.full_data,
				fetched_at = EXCLUDED.fetched_at
			RETURNING id`
		var reportID int64
		err := tx.QueryRow(ctx, upsertReport,
			stmt.StockID, stmt.Year, stmt.Quarter, string(stmt.ReportType),
			stmt.Currency, stmt.UnitScale, stmt.ReportDate, stmt.Empty,
			raw, fetchedAt,
		).Scan(&reportID)
		if err != nil {
			return fmt.Errorf("upsert report: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM financial_facts WHERE report_id = $1`, reportID); err != nil {
			return fmt.Errorf("clear facts: %w", err)
		}
		for _, item := range stmt.Flatten() {
			if item.Value == nil {
				continue
			}
			const insertFact = `
				INSERT INTO financial_facts (report_id, concept, label_zh, label_en, value, weight, depth)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (report_id, concept) DO NOTHING`
			if _, err := tx.Exec(ctx, insertFact,
				reportID, item.Concept, item.LabelZH, item.LabelEN,
				item.Value, item.Weight, item.Depth); err != nil {
				return fmt.Errorf("insert fact %s: %w", item.Concept, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("report: save %v: %w", stmt.Key(), err)
	}

	stmt.FetchedAt = fetchedAt
	return nil
}

// GetFactValue looks up one concept's stored value in a filing.
func (r *Repository) GetFactValue(ctx context.Context, key Key, concept string) (decimal.Decimal, error) {
	const q = `
		SELECT f.value
		FROM financial_facts f
		JOIN financial_reports r ON r.id = f.report_id
		WHERE r.stock_id = $1 AND r.year = $2 AND r.quarter = $3
		  AND r.report_type = $4 AND f.concept = $5`

	var value decimal.Decimal
	err := r.pool.QueryRow(ctx, q,
		key.StockID, key.Year, key.Quarter, string(key.ReportType), concept).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, shared.ErrNotFound
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("report: fact %s %v: %w", concept, key, err)
	}
	return value, nil
}

// ListAvailable lists every stored filing for a stock, newest first.
func (r *Repository) ListAvailable(ctx context.Context, stockID string) ([]AvailableReport, error) {
	const q = `
		SELECT stock_id, year, quarter, report_type, fetched_at
		FROM financial_reports
		WHERE stock_id = $1
		ORDER BY year DESC, quarter DESC, report_type`

	rows, err := r.pool.Query(ctx, q, stockID)
	if err != nil {
		return nil, fmt.Errorf("report: list %s: %w", stockID, err)
	}
	defer rows.Close()

	var out []AvailableReport
	for rows.Next() {
		var ar AvailableReport
		var reportType string
		if err := rows.Scan(&ar.StockID, &ar.Year, &ar.Quarter, &reportType, &ar.FetchedAt); err != nil {
			return nil, fmt.Errorf("report: scan list row: %w", err)
		}
		ar.ReportType = Type(reportType)
		out = append(out, ar)
	}
	return out, rows.Err()
}
