package insiders

import "time"

// PledgeDetail is one insider's shareholding and pledge line for a month.
// Relationship distinguishes the insider's own holdings from the spouse and
// minor children line MOPS reports separately.
type PledgeDetail struct {
	StockID          string   `json:"stock_id"`
	CompanyName      string   `json:"company_name"`
	Year             int      `json:"year"`
	Month            int      `json:"month"`
	Title            string   `json:"title"`
	Relationship     string   `json:"relationship"`
	Name             string   `json:"name"`
	SharesAtElection *int64   `json:"shares_at_election"`
	CurrentShares    *int64   `json:"current_shares"`
	PledgedShares    *int64   `json:"pledged_shares"`
	PledgeRatio      *float64 `json:"pledge_ratio"`

	FetchedAt time.Time `json:"fetched_at"`
}

// PledgeSummary is the board-level rollup MOPS prints under the detail
// table, split by director independence.
type PledgeSummary struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`

	NonIndependentShares  *int64   `json:"non_independent_director_shares"`
	NonIndependentPledged *int64   `json:"non_independent_director_pledged"`
	NonIndependentRatio   *float64 `json:"non_independent_director_ratio"`

	IndependentShares  *int64   `json:"independent_director_shares"`
	IndependentPledged *int64   `json:"independent_director_pledged"`
	IndependentRatio   *float64 `json:"independent_director_ratio"`

	TotalShares      *int64   `json:"total_shares"`
	TotalPledged     *int64   `json:"total_pledged"`
	TotalPledgeRatio *float64 `json:"total_pledge_ratio"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Response bundles the summary and detail rows for one company-month.
type Response struct {
	StockID     string         `json:"stock_id"`
	CompanyName string         `json:"company_name"`
	Year        int            `json:"year"`
	Month       int            `json:"month"`
	Summary     *PledgeSummary `json:"summary,omitempty"`
	Details     []PledgeDetail `json:"details"`
}

// Query identifies one company-month pledge lookup. Market is sii or otc;
// the pledge endpoint does not cover emerging or unlisted companies.
type Query struct {
	StockID string
	Year    int
	Month   int
	Market  string
}
