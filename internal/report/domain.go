// Package report builds and serves hierarchical financial statements from
// MOPS XBRL filings.
package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type identifies one of the four standard statements.
type Type string

const (
	TypeBalanceSheet    Type = "balance_sheet"
	TypeIncomeStatement Type = "income_statement"
	TypeCashFlow        Type = "cash_flow"
	TypeEquityStatement Type = "equity_statement"
)

// roleForType maps report types to their canonical XBRL role names; the
// presentation linkbase role containing the name defines the tree.
var roleForType = map[Type]string{
	TypeBalanceSheet:    "StatementOfFinancialPosition",
	TypeIncomeStatement: "StatementOfComprehensiveIncome",
	TypeCashFlow:        "StatementOfCashFlows",
	TypeEquityStatement: "StatementOfChangesInEquity",
}

// Valid reports whether t is one of the four statement types.
func (t Type) Valid() bool {
	_, ok := roleForType[t]
	return ok
}

// Role returns the canonical XBRL role name for the type.
func (t Type) Role() string {
	return roleForType[t]
}

// Key identifies one filing. Years are ROC calendar years.
type Key struct {
	StockID    string
	Year       int
	Quarter    int
	ReportType Type
}

// Item is one node of the statement tree.
type Item struct {
	Concept  string           `json:"concept"`
	LabelZH  string           `json:"label_zh"`
	LabelEN  string           `json:"label_en"`
	Value    *decimal.Decimal `json:"value"`
	Weight   float64          `json:"weight"`
	Depth    int              `json:"depth"`
	Children []Item           `json:"children,omitempty"`
}

// Statement is a built financial statement. Empty marks the case where the
// filing exists but carries no presentation tree for the requested role.
type Statement struct {
	StockID    string    `json:"stock_id"`
	Year       int       `json:"year"`
	Quarter    int       `json:"quarter"`
	ReportType Type      `json:"report_type"`
	Currency   string    `json:"currency"`
	UnitScale  int       `json:"unit_scale"`
	ReportDate string    `json:"report_date"`
	Empty      bool      `json:"empty,omitempty"`
	Items      []Item    `json:"items"`
	FetchedAt  time.Time `json:"fetched_at,omitempty"`
}

// Key returns the statement's identity tuple.
func (s *Statement) Key() Key {
	return Key{StockID: s.StockID, Year: s.Year, Quarter: s.Quarter, ReportType: s.ReportType}
}

// Flatten returns the tree in depth-first order with children removed,
// for the flat output format.
func (s *Statement) Flatten() []Item {
	var out []Item
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, item := range items {
			flat := item
			flat.Children = nil
			out = append(out, flat)
			walk(item.Children)
		}
	}
	walk(s.Items)
	return out
}

// AvailableReport is one stored filing, as listed by the repository.
type AvailableReport struct {
	StockID    string    `json:"stock_id"`
	Year       int       `json:"year"`
	Quarter    int       `json:"quarter"`
	ReportType Type      `json:"report_type"`
	FetchedAt  time.Time `json:"fetched_at"`
}
