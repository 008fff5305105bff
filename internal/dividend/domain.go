package dividend

import "time"

// Record is one dividend distribution line. Quarter is nil for annual
// distributions; quarterly payers like 2330 report four records per year.
type Record struct {
	StockID             string   `json:"stock_id"`
	CompanyName         string   `json:"company_name"`
	Year                int      `json:"year"`
	Quarter             *int     `json:"quarter"`
	BoardResolutionDate *string  `json:"board_resolution_date"`
	CashDividend        *float64 `json:"cash_dividend"`
	StockDividend       *float64 `json:"stock_dividend"`
	TotalDividend       float64  `json:"total_dividend"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Response carries every record in the queried year range.
type Response struct {
	StockID     string   `json:"stock_id"`
	CompanyName string   `json:"company_name"`
	YearStart   int      `json:"year_start"`
	YearEnd     int      `json:"year_end"`
	Count       int      `json:"count"`
	Records     []Record `json:"records"`
}

// Summary folds one year's records into annual totals.
type Summary struct {
	StockID            string   `json:"stock_id"`
	CompanyName        string   `json:"company_name"`
	Year               int      `json:"year"`
	TotalCashDividend  float64  `json:"total_cash_dividend"`
	TotalStockDividend float64  `json:"total_stock_dividend"`
	TotalDividend      float64  `json:"total_dividend"`
	QuarterlyDividends []Record `json:"quarterly_dividends"`
}

// Query types accepted by the MOPS endpoint.
const (
	QueryByResolutionYear = 1
	QueryByDividendYear   = 2
)

// Query identifies one dividend lookup over an inclusive ROC year range.
type Query struct {
	StockID   string
	YearStart int
	YearEnd   int
	QueryType int
}
