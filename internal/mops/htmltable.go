package mops

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is one HTML table flattened to trimmed cell text.
type Table struct {
	Rows [][]string
}

// Cell returns the cell at (row, col), or "" when absent. MOPS tables drift
// between layouts, so scrapers index defensively instead of assuming width.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// Contains reports whether any cell contains the substring.
func (t Table) Contains(sub string) bool {
	for _, row := range t.Rows {
		for _, cell := range row {
			if strings.Contains(cell, sub) {
				return true
			}
		}
	}
	return false
}

// ParseTables extracts every <table> in the document as a row/cell grid.
// Nested tables are reported separately, matching how the scrapers probe
// each candidate table for its identifying header text.
func ParseTables(html string) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("mops: parse html: %w", err)
	}

	var tables []Table
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var t Table
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			// Skip rows that belong to a nested table; they surface
			// when that table is visited.
			if tr.Closest("table").Get(0) != table.Get(0) {
				return
			}
			var row []string
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				if cell.Closest("tr").Get(0) != tr.Get(0) {
					return
				}
				row = append(row, normalizeCell(cell.Text()))
			})
			if len(row) > 0 {
				t.Rows = append(t.Rows, row)
			}
		})
		if len(t.Rows) > 0 {
			tables = append(tables, t)
		}
	})
	return tables, nil
}

func normalizeCell(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "　", " ")
	return strings.Join(strings.Fields(s), " ")
}

// SkipBudgetExceeded applies the tolerance rule for row-level parse
// failures: more than a quarter of discovered rows failing signals format
// drift rather than noise, and the whole parse is rejected.
func SkipBudgetExceeded(skipped, discovered int) bool {
	if discovered == 0 {
		return false
	}
	return float64(skipped) > 0.25*float64(discovered)
}
