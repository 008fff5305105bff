package revenue

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/shared"
)

// Rows that aren't company filings: industry totals and repeated headers.
var skipMarkers = map[string]bool{
	"合計":   true,
	"合計:":  true,
	"公司代號": true,
	"公司":   true,
}

// ParseTables extracts revenue rows from a decoded monthly revenue page.
// MOPS renders one table per industry with a header row and a trailing
// total row; both are skipped. Rows failing numeric parse in the revenue
// column count against the skip budget.
func ParseTables(tables []mops.Table, q Query) ([]Row, int, error) {
	var rows []Row
	var skipped, discovered int

	for _, table := range tables {
		for _, cells := range table.Rows {
			if len(cells) < 5 {
				continue
			}
			stockID := strings.TrimSpace(cells[0])
			if stockID == "" || len(stockID) < 4 || skipMarkers[stockID] {
				continue
			}
			if !unicode.IsDigit(rune(stockID[0])) {
				continue
			}
			discovered++

			row, ok := parseRow(cells, q)
			if !ok {
				skipped++
				continue
			}
			rows = append(rows, row)
		}
	}

	if mops.SkipBudgetExceeded(skipped, discovered) {
		return nil, skipped, fmt.Errorf("%w: revenue page for %s %d/%d: %d of %d rows unparseable",
			mops.ErrRowParse, q.Market, q.Year, q.Month, skipped, discovered)
	}
	return rows, skipped, nil
}

// Column layout: 代號, 名稱, 當月營收, 上月營收, 去年當月營收, 上月比較
// 增減(%), 去年同月增減(%), 當月累計營收, 去年累計營收, 前期比較增減(%), 備註.
func parseRow(cells []string, q Query) (Row, bool) {
	row := Row{
		StockID:     strings.TrimSpace(cells[0]),
		CompanyName: strings.TrimSpace(cells[1]),
		Year:        q.Year,
		Month:       q.Month,
		Market:      q.Market,
	}

	revenue, ok := shared.ParseInt64(cells[2])
	if !ok {
		// The current-month figure is the one required field.
		return Row{}, false
	}
	row.Revenue = &revenue

	row.RevenueLastMonth = optInt(cells, 3)
	row.RevenueLastYear = optInt(cells, 4)
	row.MoMChange = optFloat(cells, 5)
	row.YoYChange = optFloat(cells, 6)
	row.AccumulatedRevenue = optInt(cells, 7)
	row.AccumulatedLastYear = optInt(cells, 8)
	row.AccumulatedYoY = optFloat(cells, 9)
	if len(cells) > 10 {
		if comment := strings.TrimSpace(cells[10]); comment != "-" {
			row.Comment = comment
		}
	}
	return row, true
}

func optInt(cells []string, i int) *int64 {
	if i >= len(cells) {
		return nil
	}
	v, ok := shared.ParseInt64(cells[i])
	if !ok {
		return nil
	}
	return &v
}

func optFloat(cells []string, i int) *float64 {
	if i >= len(cells) {
		return nil
	}
	v, ok := shared.ParseFloat(cells[i])
	if !ok {
		return nil
	}
	return &v
}
