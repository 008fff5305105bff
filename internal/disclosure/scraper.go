package disclosure

import (
	"regexp"
	"strings"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/shared"
)

// Matches the provider banner, e.g. "本資料由　(上市公司) 鴻海　公司提供".
var companyNamePattern = regexp.MustCompile(`\)\s*(.+?)\s*公司`)

// CompanyName extracts the company name from the provider banner cell.
func CompanyName(tables []mops.Table) string {
	for _, t := range tables {
		cell := t.Cell(0, 0)
		if !strings.Contains(cell, "公司") {
			continue
		}
		if m := companyNamePattern.FindStringSubmatch(cell); m != nil {
			return m[1]
		}
	}
	return ""
}

// ParseFundsLending extracts lending-balance rows, identified by their
// 資金貸放餘額 label.
func ParseFundsLending(tables []mops.Table) []FundsLending {
	var results []FundsLending
	for _, t := range tables {
		if !t.Contains("資金貸放餘額") {
			continue
		}
		for i := range t.Rows {
			label := t.Cell(i, 0)
			if !strings.Contains(label, "資金貸放餘額") {
				continue
			}
			results = append(results, FundsLending{
				Entity:        entityOf(label),
				HasBalance:    strings.Contains(label, "有"),
				CurrentMonth:  optInt(t.Cell(i, 1)),
				PreviousMonth: optInt(t.Cell(i, 2)),
				MaxLimit:      optInt(t.Cell(i, 3)),
			})
		}
	}
	return results
}

// ParseEndorsement extracts general endorsement and guarantee rows. Tables
// for the mainland China and parent-subsidiary breakdowns carry the same
// label and are excluded by their own markers.
func ParseEndorsement(tables []mops.Table) []EndorsementGuarantee {
	var results []EndorsementGuarantee
	for _, t := range tables {
		if !t.Contains("背書保證資訊") || t.Contains("大陸") || t.Contains("子公司間") {
			continue
		}
		for i := range t.Rows {
			label := t.Cell(i, 0)
			if !strings.Contains(label, "背書保證資訊") {
				continue
			}
			results = append(results, EndorsementGuarantee{
				Entity:             entityOf(label),
				HasBalance:         strings.Contains(label, "有"),
				MonthlyChange:      optInt(t.Cell(i, 1)),
				AccumulatedBalance: optInt(t.Cell(i, 2)),
				MaxLimit:           optInt(t.Cell(i, 3)),
			})
		}
	}
	return results
}

// ParseCrossCompany extracts the parent-subsidiary guarantee rollup.
// Returns nil when neither direction carries a value.
func ParseCrossCompany(tables []mops.Table) *CrossCompany {
	for _, t := range tables {
		if !t.Contains("本公司與子公司間") {
			continue
		}
		cc := &CrossCompany{}
		for i := range t.Rows {
			label := t.Cell(i, 0)
			switch {
			case strings.Contains(label, "本公司對子公司"):
				cc.ParentToSubsidiary = optInt(t.Cell(i, 1))
			case strings.Contains(label, "子公司對本公司"):
				cc.SubsidiaryToParent = optInt(t.Cell(i, 1))
			}
		}
		if cc.ParentToSubsidiary != nil || cc.SubsidiaryToParent != nil {
			return cc
		}
	}
	return nil
}

// ParseChinaGuarantee extracts guarantee rows toward mainland China.
func ParseChinaGuarantee(tables []mops.Table) []ChinaGuarantee {
	var results []ChinaGuarantee
	for _, t := range tables {
		if !t.Contains("對大陸地區") {
			continue
		}
		for i := range t.Rows {
			label := t.Cell(i, 0)
			if !strings.Contains(label, "大陸地區") {
				continue
			}
			results = append(results, ChinaGuarantee{
				Entity:             entityOf(label),
				HasBalance:         strings.Contains(label, "有"),
				MonthlyChange:      optInt(t.Cell(i, 1)),
				AccumulatedBalance: optInt(t.Cell(i, 2)),
			})
		}
	}
	return results
}

func entityOf(label string) string {
	if strings.Contains(label, EntityParent) {
		return EntityParent
	}
	return EntitySubsidiary
}

func optInt(s string) *int64 {
	v, ok := shared.ParseInt64(s)
	if !ok {
		return nil
	}
	return &v
}
