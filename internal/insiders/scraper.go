package insiders

import (
	"strings"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/shared"
)

// CompanyName extracts the company name from the page's first table, where
// MOPS renders it as "2330台灣積體電路製造股份有限公司".
func CompanyName(tables []mops.Table, stockID string) string {
	if len(tables) == 0 {
		return ""
	}
	cell := tables[0].Cell(0, 0)
	if strings.HasPrefix(cell, stockID) {
		return strings.TrimSpace(strings.TrimPrefix(cell, stockID))
	}
	return ""
}

// ParseDetails extracts insider detail rows from every table wide enough to
// carry them. Title cells fold the relationship into the text, so
// "董事長本人" splits into title 董事長 and relationship 本人.
func ParseDetails(tables []mops.Table, q Query, companyName string) ([]PledgeDetail, int, error) {
	var details []PledgeDetail
	discovered, skipped := 0, 0

	for _, t := range tables {
		if maxWidth(t) < 5 {
			continue
		}
		if !t.Contains("職稱") && len(t.Rows) < 3 {
			continue
		}
		for i := range t.Rows {
			title := t.Cell(i, 0)
			if title == "" || title == "職稱" || strings.Contains(title, "持股") {
				continue
			}
			discovered++

			relationship := "本人"
			switch {
			case strings.Contains(title, "本人"):
				title = strings.ReplaceAll(title, "本人", "")
			case strings.Contains(title, "配偶"):
				relationship = "配偶"
				title = strings.ReplaceAll(title, "配偶", "")
			}

			name := t.Cell(i, 1)
			if name == "" || name == "姓名" {
				skipped++
				continue
			}

			d := PledgeDetail{
				StockID:      q.StockID,
				CompanyName:  companyName,
				Year:         q.Year,
				Month:        q.Month,
				Title:        strings.TrimSpace(title),
				Relationship: relationship,
				Name:         name,
			}
			if v, ok := shared.ParseInt64(t.Cell(i, 2)); ok {
				d.SharesAtElection = &v
			}
			if v, ok := shared.ParseInt64(t.Cell(i, 3)); ok {
				d.CurrentShares = &v
			}
			if v, ok := shared.ParseInt64(t.Cell(i, 4)); ok {
				d.PledgedShares = &v
			}
			if v, ok := shared.ParseFloat(t.Cell(i, 5)); ok {
				d.PledgeRatio = &v
			}
			details = append(details, d)
		}
	}

	if mops.SkipBudgetExceeded(skipped, discovered) {
		return nil, skipped, mops.ErrRowParse
	}
	return details, skipped, nil
}

var summaryFields = []struct {
	marker string
	ratio  bool
	assign func(*PledgeSummary, *int64, *float64)
}{
	{"非獨立董事持股設質比例", true, func(s *PledgeSummary, _ *int64, f *float64) { s.NonIndependentRatio = f }},
	{"非獨立董事持股設質合計", false, func(s *PledgeSummary, v *int64, _ *float64) { s.NonIndependentPledged = v }},
	{"非獨立董事持股合計", false, func(s *PledgeSummary, v *int64, _ *float64) { s.NonIndependentShares = v }},
	{"獨立董事持股設質比例", true, func(s *PledgeSummary, _ *int64, f *float64) { s.IndependentRatio = f }},
	{"獨立董事持股設質合計", false, func(s *PledgeSummary, v *int64, _ *float64) { s.IndependentPledged = v }},
	{"獨立董事持股合計", false, func(s *PledgeSummary, v *int64, _ *float64) { s.IndependentShares = v }},
	{"全體董監持股設質比例", true, func(s *PledgeSummary, _ *int64, f *float64) { s.TotalPledgeRatio = f }},
	{"全體董監持股設質合計", false, func(s *PledgeSummary, v *int64, _ *float64) { s.TotalPledged = v }},
	{"全體董監持股合計", false, func(s *PledgeSummary, v *int64, _ *float64) { s.TotalShares = v }},
}

// ParseSummary extracts the rollup table, identified by its 全體董監持股合計
// row. Returns nil when the page carries no rollup.
func ParseSummary(tables []mops.Table, q Query, companyName string) *PledgeSummary {
	for _, t := range tables {
		if !t.Contains("全體董監持股合計") {
			continue
		}
		s := &PledgeSummary{
			StockID:     q.StockID,
			CompanyName: companyName,
			Year:        q.Year,
			Month:       q.Month,
		}
		for i := range t.Rows {
			label := t.Cell(i, 0)
			value := t.Cell(i, 1)
			for _, f := range summaryFields {
				if !strings.Contains(label, f.marker) {
					continue
				}
				if f.ratio {
					if v, ok := shared.ParseFloat(value); ok {
						f.assign(s, nil, &v)
					}
				} else {
					if v, ok := shared.ParseInt64(value); ok {
						f.assign(s, &v, nil)
					}
				}
				break
			}
		}
		return s
	}
	return nil
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
