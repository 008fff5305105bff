package xbrl

import (
	"bytes"
	"fmt"
	"log/slog"
)

// Backend extracts one slice of a filing. Two implementations exist: one
// reading the inline XBRL report, one reading a native instance document.
// MOPS packages vary by year in which of the two is authoritative, so the
// Parser runs a primary backend and falls back per operation.
type Backend interface {
	Name() string
	Available(a *Archive) bool
	ExtractFacts(a *Archive) ([]Fact, error)
	ExtractContexts(a *Archive) (map[string]Context, error)
	ExtractCalculation(a *Archive) (CalculationMap, []string, error)
	ExtractPresentation(a *Archive) (PresentationSet, error)
	ExtractLabels(a *Archive) (*LabelSet, error)
}

// inlineBackend reads facts and contexts out of the iXBRL report file.
type inlineBackend struct{}

func (inlineBackend) Name() string { return "inline" }

func (inlineBackend) Available(a *Archive) bool {
	return a != nil && IsInlineXBRL(a.Instance())
}

func (inlineBackend) ExtractFacts(a *Archive) ([]Fact, error) {
	return ParseInlineFacts(a.Instance())
}

func (inlineBackend) ExtractContexts(a *Archive) (map[string]Context, error) {
	return ParseInlineContexts(a.Instance())
}

func (inlineBackend) ExtractCalculation(a *Archive) (CalculationMap, []string, error) {
	return archiveCalculation(a)
}

func (inlineBackend) ExtractPresentation(a *Archive) (PresentationSet, error) {
	return archivePresentation(a)
}

func (inlineBackend) ExtractLabels(a *Archive) (*LabelSet, error) {
	return archiveLabels(a)
}

// instanceBackend reads a native XBRL instance document.
type instanceBackend struct{}

func (instanceBackend) Name() string { return "instance" }

func (instanceBackend) Available(a *Archive) bool {
	return a != nil && bytes.Contains(a.Instance(), []byte("<xbrli:xbrl"))
}

func (instanceBackend) ExtractFacts(a *Archive) ([]Fact, error) {
	return ParseInstanceFacts(a.Instance())
}

func (instanceBackend) ExtractContexts(a *Archive) (map[string]Context, error) {
	return ParseInstanceContexts(a.Instance())
}

func (instanceBackend) ExtractCalculation(a *Archive) (CalculationMap, []string, error) {
	return archiveCalculation(a)
}

func (instanceBackend) ExtractPresentation(a *Archive) (PresentationSet, error) {
	return archivePresentation(a)
}

func (instanceBackend) ExtractLabels(a *Archive) (*LabelSet, error) {
	return archiveLabels(a)
}

// Linkbase extraction is shared; both backends read the same sidecar files.

func archiveCalculation(a *Archive) (CalculationMap, []string, error) {
	merged := make(CalculationMap)
	var warnings []string
	for _, name := range a.Calculation {
		m, w, err := ParseCalculation(a.Files[name])
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		warnings = append(warnings, w...)
		for from, arcs := range m {
			merged[from] = append(merged[from], arcs...)
		}
	}
	for from := range merged {
		sortCalculationArcs(merged[from])
	}
	return merged, warnings, nil
}

func archivePresentation(a *Archive) (PresentationSet, error) {
	merged := make(PresentationSet)
	for _, name := range a.Presentation {
		set, err := ParsePresentation(a.Files[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for role, byFrom := range set {
			target, ok := merged[role]
			if !ok {
				target = make(map[string][]PresentationArc)
				merged[role] = target
			}
			for from, arcs := range byFrom {
				target[from] = append(target[from], arcs...)
			}
		}
	}
	for _, byFrom := range merged {
		for from := range byFrom {
			sortPresentationArcs(byFrom[from])
		}
	}
	return merged, nil
}

func archiveLabels(a *Archive) (*LabelSet, error) {
	merged := NewLabelSet()
	for _, name := range a.Label {
		set, err := ParseLabels(a.Files[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		merged.Merge(set)
	}
	return merged, nil
}

// Parser orchestrates the two backends with per-operation fallback: the
// primary is tried first, the secondary covers its failures. A Parser is
// safe for concurrent use; it holds no per-filing state.
type Parser struct {
	primary   Backend
	secondary Backend
	logger    *slog.Logger
}

// NewParser builds a Parser preferring the inline backend. A nil logger
// disables fallback logging.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{primary: inlineBackend{}, secondary: instanceBackend{}, logger: logger}
}

// Parse interprets raw downloaded content as either a ZIP package or a
// bare iXBRL document and returns the assembled filing.
func (p *Parser) Parse(content []byte) (*Package, error) {
	var a *Archive
	if bytes.HasPrefix(content, []byte("PK")) {
		var err error
		a, err = OpenArchive(content)
		if err != nil {
			return nil, err
		}
	} else if IsInlineXBRL(content) {
		a = &Archive{
			Files:        map[string][]byte{"report.html": content},
			InstancePath: "report.html",
		}
	} else {
		return nil, fmt.Errorf("%w: neither zip nor inline xbrl", ErrMalformedPackage)
	}
	return p.ParseArchive(a)
}

// ParseArchive runs both backends over an opened archive.
func (p *Parser) ParseArchive(a *Archive) (*Package, error) {
	pkg := &Package{Instance: a.Instance()}

	contexts, err := p.extractContexts(a)
	if err != nil {
		return nil, err
	}
	pkg.Contexts = contexts

	facts, err := p.extractFacts(a)
	if err != nil {
		return nil, err
	}
	// Facts bound to an undefined context are unusable downstream.
	for _, fact := range facts {
		if _, ok := contexts[fact.ContextRef]; !ok {
			pkg.Warnings = append(pkg.Warnings, fmt.Sprintf(
				"fact %s references missing context %s", fact.Concept, fact.ContextRef))
			continue
		}
		pkg.Facts = append(pkg.Facts, fact)
	}

	calc, calcWarnings, err := p.extractCalculation(a)
	if err != nil {
		pkg.Warnings = append(pkg.Warnings, fmt.Sprintf("calculation linkbase: %v", err))
		calc = make(CalculationMap)
	}
	pkg.Calculation = calc
	pkg.Warnings = append(pkg.Warnings, calcWarnings...)

	pres, err := p.extractPresentation(a)
	if err != nil {
		pkg.Warnings = append(pkg.Warnings, fmt.Sprintf("presentation linkbase: %v", err))
		pres = make(PresentationSet)
	}
	pkg.Presentation = pres

	labels, err := p.extractLabels(a)
	if err != nil {
		pkg.Warnings = append(pkg.Warnings, fmt.Sprintf("label linkbase: %v", err))
		labels = NewLabelSet()
	}
	pkg.Labels = labels

	return pkg, nil
}

// order returns the backends to try, availability-filtered, primary first.
func (p *Parser) order(a *Archive) []Backend {
	var backends []Backend
	for _, b := range []Backend{p.primary, p.secondary} {
		if b != nil && b.Available(a) {
			backends = append(backends, b)
		}
	}
	return backends
}

func (p *Parser) extractFacts(a *Archive) ([]Fact, error) {
	var lastErr error
	for _, b := range p.order(a) {
		facts, err := b.ExtractFacts(a)
		if err == nil && len(facts) > 0 {
			return facts, nil
		}
		if err != nil {
			p.logFallback(b, "facts", err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: no facts found", ErrParse)
}

func (p *Parser) extractContexts(a *Archive) (map[string]Context, error) {
	var lastErr error
	for _, b := range p.order(a) {
		contexts, err := b.ExtractContexts(a)
		if err == nil && len(contexts) > 0 {
			return contexts, nil
		}
		if err != nil {
			p.logFallback(b, "contexts", err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: no contexts found", ErrParse)
}

func (p *Parser) extractCalculation(a *Archive) (CalculationMap, []string, error) {
	var lastErr error
	for _, b := range p.order(a) {
		m, warnings, err := b.ExtractCalculation(a)
		if err == nil {
			return m, warnings, nil
		}
		p.logFallback(b, "calculation", err)
		lastErr = err
	}
	return nil, nil, lastErr
}

func (p *Parser) extractPresentation(a *Archive) (PresentationSet, error) {
	var lastErr error
	for _, b := range p.order(a) {
		set, err := b.ExtractPresentation(a)
		if err == nil {
			return set, nil
		}
		p.logFallback(b, "presentation", err)
		lastErr = err
	}
	return nil, lastErr
}

func (p *Parser) extractLabels(a *Archive) (*LabelSet, error) {
	var lastErr error
	for _, b := range p.order(a) {
		set, err := b.ExtractLabels(a)
		if err == nil {
			return set, nil
		}
		p.logFallback(b, "labels", err)
		lastErr = err
	}
	return nil, lastErr
}

func (p *Parser) logFallback(b Backend, op string, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("xbrl backend failed, trying fallback",
		slog.String("backend", b.Name()),
		slog.String("operation", op),
		slog.String("error", err.Error()))
}
