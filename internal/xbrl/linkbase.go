package xbrl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Linkbase parsing. Arcs reference locator labels, not concepts; each
// extended link carries its own locator scope, so labels are resolved when
// the link element closes.

type rawArc struct {
	fromLabel      string
	toLabel        string
	weight         float64
	order          float64
	preferredLabel string
}

type labelResource struct {
	lang string
	role string
	text string
}

// ParseCalculation extracts calculation arcs grouped by parent concept.
// Arcs default to weight +1 and order 1; output is sorted by order
// ascending, ties by child concept. Cycles are invalid per XBRL: the
// cycle-closing arc is dropped and reported as a warning.
func ParseCalculation(content []byte) (CalculationMap, []string, error) {
	result := make(CalculationMap)

	err := walkLinks(content, "calculationLink", "calculationArc",
		func(_ string, locs map[string]string, arcs []rawArc, _ map[string][]labelResource) {
			for _, arc := range arcs {
				from, okFrom := locs[arc.fromLabel]
				to, okTo := locs[arc.toLabel]
				if !okFrom || !okTo {
					continue
				}
				result[from] = append(result[from], CalculationArc{
					From:   from,
					To:     to,
					Weight: arc.weight,
					Order:  arc.order,
				})
			}
		})
	if err != nil {
		return nil, nil, err
	}

	warnings := dropCalculationCycles(result)
	for from := range result {
		sortCalculationArcs(result[from])
	}
	return result, warnings, nil
}

// ParsePresentation extracts presentation arcs grouped by extended link
// role, then by parent concept, sorted like calculation arcs.
func ParsePresentation(content []byte) (PresentationSet, error) {
	result := make(PresentationSet)

	err := walkLinks(content, "presentationLink", "presentationArc",
		func(role string, locs map[string]string, arcs []rawArc, _ map[string][]labelResource) {
			for _, arc := range arcs {
				from, okFrom := locs[arc.fromLabel]
				to, okTo := locs[arc.toLabel]
				if !okFrom || !okTo {
					continue
				}
				byFrom, ok := result[role]
				if !ok {
					byFrom = make(map[string][]PresentationArc)
					result[role] = byFrom
				}
				byFrom[from] = append(byFrom[from], PresentationArc{
					From:           from,
					To:             to,
					Order:          arc.order,
					PreferredLabel: arc.preferredLabel,
				})
			}
		})
	if err != nil {
		return nil, err
	}

	for _, byFrom := range result {
		for from := range byFrom {
			sortPresentationArcs(byFrom[from])
		}
	}
	return result, nil
}

// ParseLabels extracts bilingual label resources. labelArc links a concept
// locator to one or more label resources carrying xml:lang and xlink:role.
func ParseLabels(content []byte) (*LabelSet, error) {
	set := NewLabelSet()

	err := walkLinks(content, "labelLink", "labelArc",
		func(_ string, locs map[string]string, arcs []rawArc, resources map[string][]labelResource) {
			for _, arc := range arcs {
				concept, ok := locs[arc.fromLabel]
				if !ok {
					continue
				}
				for _, res := range resources[arc.toLabel] {
					set.Add(concept, res.lang, res.role, res.text)
				}
			}
		})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// walkLinks streams the linkbase, collecting locators, arcs and label
// resources per extended link, and invokes visit when each link closes.
func walkLinks(
	content []byte,
	linkName, arcName string,
	visit func(role string, locs map[string]string, arcs []rawArc, resources map[string][]labelResource),
) error {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var (
		inLink    bool
		role      string
		locs      map[string]string
		arcs      []rawArc
		resources map[string][]labelResource
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrParse, err)
		}

		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case linkName:
				inLink = true
				role = attr(el, "role")
				locs = make(map[string]string)
				arcs = nil
				resources = make(map[string][]labelResource)
			case "loc":
				if inLink {
					label := attr(el, "label")
					if concept := conceptFromHref(attr(el, "href")); label != "" && concept != "" {
						locs[label] = concept
					}
				}
			case arcName:
				if inLink {
					arcs = append(arcs, rawArc{
						fromLabel:      attr(el, "from"),
						toLabel:        attr(el, "to"),
						weight:         attrFloat(el, "weight", 1),
						order:          attrFloat(el, "order", 1),
						preferredLabel: attr(el, "preferredLabel"),
					})
				}
			case "label":
				if inLink {
					key := attr(el, "label")
					res := labelResource{
						lang: attr(el, "lang"),
						role: attr(el, "role"),
					}
					var text strings.Builder
					if err := collectText(decoder, el.Name, &text); err != nil {
						return err
					}
					res.text = strings.TrimSpace(text.String())
					if key != "" {
						resources[key] = append(resources[key], res)
					}
				}
			}
		case xml.EndElement:
			if inLink && el.Name.Local == linkName {
				visit(role, locs, arcs, resources)
				inLink = false
			}
		}
	}
}

// collectText consumes tokens until the matching end element, appending
// character data.
func collectText(decoder *xml.Decoder, name xml.Name, out *strings.Builder) error {
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrParse, err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			_ = t
		case xml.CharData:
			out.Write(t)
		}
	}
	return nil
}

// attr returns an attribute by local name, ignoring namespace prefixes.
func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func attrFloat(el xml.StartElement, local string, def float64) float64 {
	raw := attr(el, local)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

// conceptFromHref maps a locator href fragment to a concept local name.
// Fragments follow the prefix_LocalName element-id convention, e.g.
// "tifrs-bsci-cr_2024-03-31.xsd#tifrs-SCF_Revenue" -> "Revenue".
func conceptFromHref(href string) string {
	idx := strings.LastIndexByte(href, '#')
	if idx < 0 || idx == len(href)-1 {
		return ""
	}
	fragment := href[idx+1:]
	if u := strings.IndexByte(fragment, '_'); u >= 0 && u < len(fragment)-1 {
		return fragment[u+1:]
	}
	return fragment
}

// dropCalculationCycles removes cycle-closing arcs in place and returns one
// warning per dropped arc.
func dropCalculationCycles(m CalculationMap) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int)
	var warnings []string

	var visit func(node string, stack map[string]bool)
	visit = func(node string, stack map[string]bool) {
		state[node] = visiting
		stack[node] = true

		arcs := m[node]
		kept := arcs[:0]
		for _, arc := range arcs {
			if stack[arc.To] {
				warnings = append(warnings, fmt.Sprintf(
					"calculation cycle dropped: %s -> %s", arc.From, arc.To))
				continue
			}
			kept = append(kept, arc)
			if state[arc.To] == unvisited {
				visit(arc.To, stack)
			}
		}
		m[node] = kept

		delete(stack, node)
		state[node] = done
	}

	// Deterministic traversal order.
	var parents []string
	for parent := range m {
		parents = append(parents, parent)
	}
	sortStrings(parents)
	for _, parent := range parents {
		if state[parent] == unvisited {
			visit(parent, make(map[string]bool))
		}
	}
	return warnings
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
