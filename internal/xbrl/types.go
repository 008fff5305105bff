// Package xbrl parses MOPS XBRL packages: ZIP archives holding an instance
// document (native XBRL or inline XBRL) and its taxonomy linkbases.
package xbrl

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedPackage indicates no instance document could be located.
	ErrMalformedPackage = errors.New("xbrl: malformed package")
	// ErrParse indicates invalid XML or HTML that cannot be interpreted.
	ErrParse = errors.New("xbrl: parse error")
)

// Fact is a single concept-valued datum bound to a context. Concepts are
// stored by local name; MOPS linkbases address concepts the same way.
type Fact struct {
	Concept    string
	ContextRef string
	UnitRef    string
	// Numeric is set when the fact carried a unitRef and parsed cleanly.
	Numeric  *decimal.Decimal
	Text     string
	Decimals *int
}

// Context is the reporting period, entity and optional scenario for facts.
type Context struct {
	ID     string
	Entity string
	// Instant is set for point-in-time contexts, Start/End for durations.
	Instant *time.Time
	Start   *time.Time
	End     *time.Time
	// Scenario and segment markup is preserved verbatim, never interpreted.
	Scenario []byte
}

// IsInstant reports whether the context period is a single date.
func (c Context) IsInstant() bool {
	return c.Instant != nil
}

// CalculationArc is a signed, weighted summation relation between concepts.
type CalculationArc struct {
	From   string
	To     string
	Weight float64
	Order  float64
}

// PresentationArc orders a child concept under its parent for display.
type PresentationArc struct {
	From           string
	To             string
	Order          float64
	PreferredLabel string
}

// CalculationMap groups calculation arcs by parent concept, order ascending.
type CalculationMap map[string][]CalculationArc

// PresentationSet holds presentation trees keyed by extended link role URI.
type PresentationSet map[string]map[string][]PresentationArc

// ForRole returns the arc map whose role URI contains the given role name.
func (p PresentationSet) ForRole(roleName string) map[string][]PresentationArc {
	var roles []string
	for role := range p {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		if containsRole(role, roleName) {
			return p[role]
		}
	}
	return nil
}

// Merge flattens every role into a single arc map.
func (p PresentationSet) Merge() map[string][]PresentationArc {
	merged := make(map[string][]PresentationArc)
	for _, arcs := range p {
		for from, list := range arcs {
			merged[from] = append(merged[from], list...)
		}
	}
	for from := range merged {
		sortPresentationArcs(merged[from])
	}
	return merged
}

// Package is the parsed content of one filing. Instance keeps the raw
// instance document so callers can resolve remote taxonomy references.
type Package struct {
	Facts        []Fact
	Contexts     map[string]Context
	Calculation  CalculationMap
	Presentation PresentationSet
	Labels       *LabelSet
	Instance     []byte
	Warnings     []string
}

// Weight returns the calculation weight of concept under any parent,
// defaulting to +1 when no arc names it.
func (m CalculationMap) Weight(concept string) float64 {
	for _, arcs := range m {
		for _, arc := range arcs {
			if arc.To == concept {
				return arc.Weight
			}
		}
	}
	return 1
}

func sortCalculationArcs(arcs []CalculationArc) {
	sort.SliceStable(arcs, func(i, j int) bool {
		if arcs[i].Order != arcs[j].Order {
			return arcs[i].Order < arcs[j].Order
		}
		return arcs[i].To < arcs[j].To
	})
}

func sortPresentationArcs(arcs []PresentationArc) {
	sort.SliceStable(arcs, func(i, j int) bool {
		if arcs[i].Order != arcs[j].Order {
			return arcs[i].Order < arcs[j].Order
		}
		return arcs[i].To < arcs[j].To
	})
}
