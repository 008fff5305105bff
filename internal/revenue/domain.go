// Package revenue crawls and caches the MOPS monthly revenue pages.
package revenue

import "time"

// Markets accepted by the monthly revenue endpoint.
var Markets = map[string]string{
	"sii":  "上市",
	"otc":  "上櫃",
	"rotc": "興櫃",
	"pub":  "公開發行",
}

// Row is one company's monthly revenue filing. Amounts are in thousands
// of TWD; change fields are percentages.
type Row struct {
	StockID             string    `json:"stock_id"`
	CompanyName         string    `json:"company_name"`
	Year                int       `json:"year"`
	Month               int       `json:"month"`
	Market              string    `json:"market"`
	Revenue             *int64    `json:"revenue"`
	RevenueLastMonth    *int64    `json:"revenue_last_month"`
	RevenueLastYear     *int64    `json:"revenue_last_year"`
	MoMChange           *float64  `json:"mom_change"`
	YoYChange           *float64  `json:"yoy_change"`
	AccumulatedRevenue  *int64    `json:"accumulated_revenue"`
	AccumulatedLastYear *int64    `json:"accumulated_last_year"`
	AccumulatedYoY      *float64  `json:"accumulated_yoy_change"`
	Comment             string    `json:"comment,omitempty"`
	FetchedAt           time.Time `json:"fetched_at,omitempty"`
}

// Query identifies one cached market page.
type Query struct {
	Market      string
	Year        int
	Month       int
	CompanyType int
}
