package dividend

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/shared"
)

var rocYearPattern = regexp.MustCompile(`(\d+)年`)

// CompanyName extracts the company name from whichever table leads with
// "2330台灣積體電路製造股份有限公司".
func CompanyName(tables []mops.Table, stockID string) string {
	for _, t := range tables {
		cell := t.Cell(0, 0)
		if strings.Contains(cell, stockID) {
			return strings.TrimSpace(strings.ReplaceAll(cell, stockID, ""))
		}
	}
	return ""
}

// ParseRecords extracts dividend rows from every table carrying the
// distribution period header. Rows without an extractable ROC year are
// rollups or separators and count against the skip budget.
func ParseRecords(tables []mops.Table, stockID, companyName string) ([]Record, int, error) {
	var records []Record
	discovered, skipped := 0, 0

	for _, t := range tables {
		if maxWidth(t) < 3 || len(t.Rows) < 2 {
			continue
		}
		if !t.Contains("股利所屬期間") && !t.Contains("現金股利") {
			continue
		}
		for i := range t.Rows {
			first := t.Cell(i, 0)
			period := t.Cell(i, 1)
			if isHeaderCell(first) || isHeaderCell(period) {
				continue
			}
			discovered++
			year, ok := extractYear(period)
			if !ok {
				skipped++
				continue
			}

			rec := Record{
				StockID:     stockID,
				CompanyName: companyName,
				Year:        year,
				Quarter:     extractQuarter(period),
			}
			if board := t.Cell(i, 2); board != "" && board != "-" {
				rec.BoardResolutionDate = &board
			}
			if v, ok := shared.ParseFloat(t.Cell(i, 6)); ok {
				rec.CashDividend = &v
				rec.TotalDividend += v
			}
			if v, ok := shared.ParseFloat(t.Cell(i, 7)); ok {
				rec.StockDividend = &v
				rec.TotalDividend += v
			}
			records = append(records, rec)
		}
	}

	if mops.SkipBudgetExceeded(skipped, discovered) {
		return nil, skipped, mops.ErrRowParse
	}
	return records, skipped, nil
}

func isHeaderCell(s string) bool {
	return s == "" || strings.Contains(s, "股利") || strings.Contains(s, "期間")
}

func extractYear(text string) (int, bool) {
	m := rocYearPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

// extractQuarter maps the distribution period to a quarter by its start or
// end date. Annual periods carry neither and return nil.
func extractQuarter(text string) *int {
	quarter := 0
	switch {
	case strings.Contains(text, "01/01") || strings.Contains(text, "03/31"):
		quarter = 1
	case strings.Contains(text, "04/01") || strings.Contains(text, "06/30"):
		quarter = 2
	case strings.Contains(text, "07/01") || strings.Contains(text, "09/30"):
		quarter = 3
	case strings.Contains(text, "10/01") || strings.Contains(text, "12/31"):
		quarter = 4
	default:
		return nil
	}
	return &quarter
}

func maxWidth(t mops.Table) int {
	w := 0
	for _, row := range t.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}
