package disclosure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formosa-data/formosa/internal/platform/db"
)

// Disclosure categories as stored. Each category maps its own fields onto
// the shared amount columns.
const (
	categoryFundsLending = "funds_lending"
	categoryEndorsement  = "endorsement"
	categoryCrossCompany = "cross_company"
	categoryChina        = "china_guarantee"
)

// Repository persists disclosure rows keyed by
// (stock_id, year, month, category, entity, has_balance). MOPS reports the
// balance-carrying and balance-free variants of one entity as separate rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a disclosure repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the cached response for a company-month, or nil when absent.
func (r *Repository) Get(ctx context.Context, q Query) (*Response, error) {
	const query = `
		SELECT company_name, category, entity, has_balance,
		       amount_1, amount_2, amount_3, fetched_at
		FROM disclosures
		WHERE stock_id = $1 AND year = $2 AND month = $3
		ORDER BY category, entity, has_balance`

	pgxRows, err := r.pool.Query(ctx, query, q.StockID, q.Year, q.Month)
	if err != nil {
		return nil, fmt.Errorf("disclosure: query %s %d/%d: %w", q.StockID, q.Year, q.Month, err)
	}
	defer pgxRows.Close()

	resp := &Response{StockID: q.StockID, Year: q.Year, Month: q.Month}
	found := false
	for pgxRows.Next() {
		var (
			category, entity string
			hasBalance       bool
			a1, a2, a3       *int64
		)
		if err := pgxRows.Scan(&resp.CompanyName, &category, &entity, &hasBalance,
			&a1, &a2, &a3, &resp.FetchedAt); err != nil {
			return nil, fmt.Errorf("disclosure: scan row: %w", err)
		}
		found = true
		switch category {
		case categoryFundsLending:
			resp.FundsLending = append(resp.FundsLending, FundsLending{
				Entity: entity, HasBalance: hasBalance,
				CurrentMonth: a1, PreviousMonth: a2, MaxLimit: a3,
			})
		case categoryEndorsement:
			resp.EndorsementGuarantee = append(resp.EndorsementGuarantee, EndorsementGuarantee{
				Entity: entity, HasBalance: hasBalance,
				MonthlyChange: a1, AccumulatedBalance: a2, MaxLimit: a3,
			})
		case categoryCrossCompany:
			resp.CrossCompany = &CrossCompany{ParentToSubsidiary: a1, SubsidiaryToParent: a2}
		case categoryChina:
			resp.ChinaGuarantee = append(resp.ChinaGuarantee, ChinaGuarantee{
				Entity: entity, HasBalance: hasBalance,
				MonthlyChange: a1, AccumulatedBalance: a2,
			})
		}
	}
	if err := pgxRows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return resp, nil
}

// Save replaces the month's rows in a single transaction. Categories vanish
// from the page when the company stops reporting them, so a delete-and-insert
// keeps the cache faithful.
func (r *Repository) Save(ctx context.Context, resp *Response) error {
	fetchedAt := time.Now().UTC()

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM disclosures WHERE stock_id = $1 AND year = $2 AND month = $3`,
			resp.StockID, resp.Year, resp.Month,
		); err != nil {
			return fmt.Errorf("clear rows: %w", err)
		}

		const insert = `
			INSERT INTO disclosures
				(stock_id, company_name, year, month, category, entity,
				 has_balance, amount_1, amount_2, amount_3, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (stock_id, year, month, category, entity, has_balance) DO UPDATE SET
				company_name = EXCLUDED.company_name,
				amount_1 = EXCLUDED.amount_1,
				amount_2 = EXCLUDED.amount_2,
				amount_3 = EXCLUDED.amount_3,
				fetched_at = EXCLUDED.fetched_at`

		batch := &pgx.Batch{}
		queue := func(category, entity string, hasBalance bool, a1, a2, a3 *int64) {
			batch.Queue(insert,
				resp.StockID, resp.CompanyName, resp.Year, resp.Month,
				category, entity, hasBalance, a1, a2, a3, fetchedAt)
		}
		for _, fl := range resp.FundsLending {
			queue(categoryFundsLending, fl.Entity, fl.HasBalance, fl.CurrentMonth, fl.PreviousMonth, fl.MaxLimit)
		}
		for _, eg := range resp.EndorsementGuarantee {
			queue(categoryEndorsement, eg.Entity, eg.HasBalance, eg.MonthlyChange, eg.AccumulatedBalance, eg.MaxLimit)
		}
		if cc := resp.CrossCompany; cc != nil {
			queue(categoryCrossCompany, EntityParent, false, cc.ParentToSubsidiary, cc.SubsidiaryToParent, nil)
		}
		for _, cg := range resp.ChinaGuarantee {
			queue(categoryChina, cg.Entity, cg.HasBalance, cg.MonthlyChange, cg.AccumulatedBalance, nil)
		}
		if batch.Len() == 0 {
			return nil
		}
		results := tx.SendBatch(ctx, batch)
		if err := results.Close(); err != nil {
			return fmt.Errorf("upsert rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("disclosure: save: %w", err)
	}
	return nil
}
