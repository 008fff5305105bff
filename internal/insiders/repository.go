package insiders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formosa-data/formosa/internal/platform/db"
)

// Repository persists pledge detail rows keyed by
// (stock_id, year, month, title, relationship, name) plus a one-per-month
// summary row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pledge repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the cached response for a company-month, or nil when the
// detail rows are absent.
func (r *Repository) Get(ctx context.Context, q Query) (*Response, error) {
	const detailQuery = `
		SELECT company_name, title, relationship, name, shares_at_election,
		       current_shares, pledged_shares, pledge_ratio, fetched_at
		FROM share_pledges
		WHERE stock_id = $1 AND year = $2 AND month = $3
		ORDER BY title, relationship, name`

	pgxRows, err := r.pool.Query(ctx, detailQuery, q.StockID, q.Year, q.Month)
	if err != nil {
		return nil, fmt.Errorf("insiders: query details %s %d/%d: %w", q.StockID, q.Year, q.Month, err)
	}
	defer pgxRows.Close()

	resp := &Response{StockID: q.StockID, Year: q.Year, Month: q.Month}
	for pgxRows.Next() {
		d := PledgeDetail{StockID: q.StockID, Year: q.Year, Month: q.Month}
		if err := pgxRows.Scan(
			&d.CompanyName, &d.Title, &d.Relationship, &d.Name,
			&d.SharesAtElection, &d.CurrentShares, &d.PledgedShares,
			&d.PledgeRatio, &d.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("insiders: scan detail: %w", err)
		}
		resp.CompanyName = d.CompanyName
		resp.Details = append(resp.Details, d)
	}
	if err := pgxRows.Err(); err != nil {
		return nil, err
	}
	if len(resp.Details) == 0 {
		return nil, nil
	}

	summary, err := r.getSummary(ctx, q)
	if err != nil {
		return nil, err
	}
	resp.Summary = summary
	return resp, nil
}

func (r *Repository) getSummary(ctx context.Context, q Query) (*PledgeSummary, error) {
	const query = `
		SELECT company_name,
		       non_independent_shares, non_independent_pledged, non_independent_ratio,
		       independent_shares, independent_pledged, independent_ratio,
		       total_shares, total_pledged, total_pledge_ratio, fetched_at
		FROM share_pledge_summaries
		WHERE stock_id = $1 AND year = $2 AND month = $3`

	s := PledgeSummary{StockID: q.StockID, Year: q.Year, Month: q.Month}
	err := r.pool.QueryRow(ctx, query, q.StockID, q.Year, q.Month).Scan(
		&s.CompanyName,
		&s.NonIndependentShares, &s.NonIndependentPledged, &s.NonIndependentRatio,
		&s.IndependentShares, &s.IndependentPledged, &s.IndependentRatio,
		&s.TotalShares, &s.TotalPledged, &s.TotalPledgeRatio, &s.FetchedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insiders: query summary: %w", err)
	}
	return &s, nil
}

// Save batch-upserts one fetched company-month in a single transaction.
// Stale detail rows from a previous fetch are removed first so departed
// insiders do not linger.
func (r *Repository) Save(ctx context.Context, resp *Response) error {
	fetchedAt := time.Now().UTC()

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM share_pledges WHERE stock_id = $1 AND year = $2 AND month = $3`,
			resp.StockID, resp.Year, resp.Month,
		); err != nil {
			return fmt.Errorf("clear details: %w", err)
		}

		const insert = `
			INSERT INTO share_pledges
				(stock_id, company_name, year, month, title, relationship, name,
				 shares_at_election, current_shares, pledged_shares, pledge_ratio, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (stock_id, year, month, title, relationship, name) DO UPDATE SET
				company_name = EXCLUDED.company_name,
				shares_at_election = EXCLUDED.shares_at_election,
				current_shares = EXCLUDED.current_shares,
				pledged_shares = EXCLUDED.pledged_shares,
				pledge_ratio = EXCLUDED.pledge_ratio,
				fetched_at = EXCLUDED.fetched_at`

		batch := &pgx.Batch{}
		for _, d := range resp.Details {
			batch.Queue(insert,
				d.StockID, d.CompanyName, d.Year, d.Month, d.Title, d.Relationship,
				d.Name, d.SharesAtElection, d.CurrentShares, d.PledgedShares,
				d.PledgeRatio, fetchedAt)
		}
		results := tx.SendBatch(ctx, batch)
		if err := results.Close(); err != nil {
			return fmt.Errorf("upsert details: %w", err)
		}

		if resp.Summary == nil {
			return nil
		}
		const upsertSummary = `
			INSERT INTO share_pledge_summaries
				(stock_id, company_name, year, month,
				 non_independent_shares, non_independent_pledged, non_independent_ratio,
				 independent_shares, independent_pledged, independent_ratio,
				 total_shares, total_pledged, total_pledge_ratio, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (stock_id, year, month) DO UPDATE SET
				company_name = EXCLUDED.company_name,
				non_independent_shares = EXCLUDED.non_independent_shares,
				non_independent_pledged = EXCLUDED.non_independent_pledged,
				non_independent_ratio = EXCLUDED.non_independent_ratio,
				independent_shares = EXCLUDED.independent_shares,
				independent_pledged = EXCLUDED.independent_pledged,
				independent_ratio = EXCLUDED.independent_ratio,
				total_shares = EXCLUDED.total_shares,
				total_pledged = EXCLUDED.total_pledged,
				total_pledge_ratio = EXCLUDED.total_pledge_ratio,
				fetched_at = EXCLUDED.fetched_at`

		s := resp.Summary
		if _, err := tx.Exec(ctx, upsertSummary,
			s.StockID, s.CompanyName, s.Year, s.Month,
			s.NonIndependentShares, s.NonIndependentPledged, s.NonIndependentRatio,
			s.IndependentShares, s.IndependentPledged, s.IndependentRatio,
			s.TotalShares, s.TotalPledged, s.TotalPledgeRatio, fetchedAt,
		); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insiders: save: %w", err)
	}
	return nil
}
