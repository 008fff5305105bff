package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/formosa-data/formosa/internal/shared"
	"github.com/formosa-data/formosa/internal/xbrl"
)

// DefaultUnitScale is the power-of-ten multiplier Taiwanese issuers apply
// to monetary values; filings report in thousands of TWD.
const DefaultUnitScale = 1000

// Builder assembles statement trees from a parsed filing.
type Builder struct {
	Currency  string
	UnitScale int
}

// NewBuilder returns a Builder with TWD defaults.
func NewBuilder() *Builder {
	return &Builder{Currency: "TWD", UnitScale: DefaultUnitScale}
}

// Build constructs the statement for the key from a parsed package. A role
// missing from the presentation linkbase yields an empty statement, not an
// error; a filing with no presentation linkbase at all degrades to a flat
// fact listing.
func (b *Builder) Build(pkg *xbrl.Package, key Key) *Statement {
	stmt := &Statement{
		StockID:    key.StockID,
		Year:       key.Year,
		Quarter:    key.Quarter,
		ReportType: key.ReportType,
		Currency:   b.Currency,
		UnitScale:  b.UnitScale,
		ReportDate: shared.QuarterEnd(key.Year, key.Quarter).Format("2006-01-02"),
		Items:      []Item{},
	}

	ctx, ok := selectContext(pkg.Contexts, key)
	if !ok {
		stmt.Empty = true
		return stmt
	}
	values := bindFacts(pkg.Facts, ctx.ID)

	if len(pkg.Presentation) == 0 {
		stmt.Items = flatItems(values, pkg)
		return stmt
	}

	arcs := pkg.Presentation.ForRole(key.ReportType.Role())
	if arcs == nil {
		stmt.Empty = true
		return stmt
	}

	visited := make(map[string]bool)
	for _, root := range rootConcepts(arcs) {
		if item, ok := b.buildNode(root, 1, 0, arcs, values, pkg, visited); ok {
			stmt.Items = append(stmt.Items, item)
		}
	}
	if len(stmt.Items) == 0 {
		stmt.Empty = true
	}
	return stmt
}

// buildNode builds the subtree rooted at concept. Each concept appears at
// most once in the whole tree; repeat references are dropped.
func (b *Builder) buildNode(
	concept string,
	weight float64,
	depth int,
	arcs map[string][]xbrl.PresentationArc,
	values map[string]*decimal.Decimal,
	pkg *xbrl.Package,
	visited map[string]bool,
) (Item, bool) {
	if visited[concept] {
		return Item{}, false
	}
	visited[concept] = true

	item := Item{
		Concept: concept,
		LabelZH: label(pkg.Labels, concept, "zh"),
		LabelEN: label(pkg.Labels, concept, "en"),
		Value:   values[concept],
		Weight:  weight,
		Depth:   depth,
	}
	for _, arc := range arcs[concept] {
		child, ok := b.buildNode(arc.To, childWeight(pkg.Calculation, concept, arc.To),
			depth+1, arcs, values, pkg, visited)
		if !ok {
			continue
		}
		if arc.PreferredLabel != "" {
			child.LabelZH = labelWithRole(pkg.Labels, arc.To, "zh", arc.PreferredLabel)
			child.LabelEN = labelWithRole(pkg.Labels, arc.To, "en", arc.PreferredLabel)
		}
		item.Children = append(item.Children, child)
	}
	return item, true
}

// selectContext picks the context matching the reporting period: an instant
// equal to quarter end for the balance sheet, a fiscal year-to-date duration
// otherwise. Ties prefer the filer's own entity, then an empty scenario.
func selectContext(contexts map[string]xbrl.Context, key Key) (xbrl.Context, bool) {
	end := shared.QuarterEnd(key.Year, key.Quarter)
	start := shared.FiscalYearStart(key.Year)

	var candidates []xbrl.Context
	for _, ctx := range contexts {
		switch key.ReportType {
		case TypeBalanceSheet:
			if ctx.Instant != nil && ctx.Instant.Equal(end) {
				candidates = append(candidates, ctx)
			}
		default:
			if ctx.Start != nil && ctx.End != nil &&
				ctx.Start.Equal(start) && ctx.End.Equal(end) {
				candidates = append(candidates, ctx)
			}
		}
	}
	if len(candidates) == 0 {
		return xbrl.Context{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if am, bm := a.Entity == key.StockID, b.Entity == key.StockID; am != bm {
			return am
		}
		if ae, be := len(a.Scenario) == 0, len(b.Scenario) == 0; ae != be {
			return ae
		}
		return a.ID < b.ID
	})
	return candidates[0], true
}

// bindFacts maps concepts to numeric values within the selected context.
// The first fact per concept wins, preserving document order.
func bindFacts(facts []xbrl.Fact, contextID string) map[string]*decimal.Decimal {
	values := make(map[string]*decimal.Decimal)
	for _, fact := range facts {
		if fact.ContextRef != contextID || fact.Numeric == nil {
			continue
		}
		if _, seen := values[fact.Concept]; !seen {
			values[fact.Concept] = fact.Numeric
		}
	}
	return values
}

// rootConcepts returns parents that never appear as a child, sorted for
// deterministic output.
func rootConcepts(arcs map[string][]xbrl.PresentationArc) []string {
	isChild := make(map[string]bool)
	for _, list := range arcs {
		for _, arc := range list {
			isChild[arc.To] = true
		}
	}
	var roots []string
	for from := range arcs {
		if !isChild[from] {
			roots = append(roots, from)
		}
	}
	sort.Strings(roots)
	return roots
}

// childWeight finds the calculation weight of child under parent, falling
// back to the child's weight under any parent, then +1.
func childWeight(calc xbrl.CalculationMap, parent, child string) float64 {
	for _, arc := range calc[parent] {
		if arc.To == child {
			return arc.Weight
		}
	}
	return calc.Weight(child)
}

// label resolves a display string, falling back to the concept local name.
func label(labels *xbrl.LabelSet, concept, lang string) string {
	if text := labels.Label(concept, lang, ""); text != "" {
		return text
	}
	return concept
}

func labelWithRole(labels *xbrl.LabelSet, concept, lang, role string) string {
	if text := labels.Label(concept, lang, role); text != "" {
		return text
	}
	return concept
}

// flatItems lists every bound fact as a depth-zero item sorted by concept,
// used when the filing ships no presentation linkbase.
func flatItems(values map[string]*decimal.Decimal, pkg *xbrl.Package) []Item {
	concepts := make([]string, 0, len(values))
	for concept := range values {
		concepts = append(concepts, concept)
	}
	sort.Strings(concepts)

	items := make([]Item, 0, len(concepts))
	for _, concept := range concepts {
		items = append(items, Item{
			Concept: concept,
			LabelZH: label(pkg.Labels, concept, "zh"),
			LabelEN: label(pkg.Labels, concept, "en"),
			Value:   values[concept],
			Weight:  pkg.Calculation.Weight(concept),
		})
	}
	return items
}

// CalculationMismatch describes one violated summation identity.
type CalculationMismatch struct {
	Concept  string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

// VerifyCalculation checks every node whose children all carry values
// against its calculation arcs: |parent - sum(weight*child)| must stay
// within max(1, |parent| * 1e-6).
func VerifyCalculation(stmt *Statement, calc xbrl.CalculationMap) []CalculationMismatch {
	var mismatches []CalculationMismatch
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, item := range items {
			walk(item.Children)
			if item.Value == nil || len(calc[item.Concept]) == 0 {
				continue
			}
			sum, complete := decimal.Zero, true
			for _, arc := range calc[item.Concept] {
				child := findItem(item.Children, arc.To)
				if child == nil || child.Value == nil {
					complete = false
					break
				}
				sum = sum.Add(child.Value.Mul(decimal.NewFromFloat(arc.Weight)))
			}
			if !complete {
				continue
			}
			tolerance := decimal.NewFromInt(1)
			if rel := item.Value.Abs().Mul(decimal.New(1, -6)); rel.GreaterThan(tolerance) {
				tolerance = rel
			}
			if item.Value.Sub(sum).Abs().GreaterThan(tolerance) {
				mismatches = append(mismatches, CalculationMismatch{
					Concept:  item.Concept,
					Expected: sum,
					Actual:   *item.Value,
				})
			}
		}
	}
	walk(stmt.Items)
	return mismatches
}

func findItem(items []Item, concept string) *Item {
	for i := range items {
		if items[i].Concept == concept {
			return &items[i]
		}
	}
	return nil
}
