package xbrl

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/formosa-data/formosa/internal/shared"
)

// Inline XBRL parsing. MOPS consolidated reports embed facts as
// ix:nonfraction / ix:nonnumeric elements inside the rendered HTML, with
// xbrli:context definitions in a hidden section. The html tokenizer
// lowercases element and attribute names, so matching is done lowercase.

// IsInlineXBRL reports whether the bytes look like an iXBRL document.
func IsInlineXBRL(content []byte) bool {
	head := content
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<html")) &&
		(bytes.Contains(bytes.ToLower(content), []byte("ix:nonfraction")) ||
			bytes.Contains(bytes.ToLower(content), []byte("xbrli:context")))
}

// ParseInlineFacts walks the document extracting ix facts in document
// order. Numeric values apply the sign and scale transforms:
// value = parsed * sign * 10^scale.
func ParseInlineFacts(content []byte) ([]Fact, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var facts []Fact
	walkHTML(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "ix:nonfraction", "nonfraction":
			if f, ok := inlineNumericFact(n); ok {
				facts = append(facts, f)
			}
		case "ix:nonnumeric", "nonnumeric":
			if f, ok := inlineTextFact(n); ok {
				facts = append(facts, f)
			}
		}
	})
	return facts, nil
}

// ParseInlineContexts extracts the xbrli:context definitions embedded in
// the hidden section of the document.
func ParseInlineContexts(content []byte) (map[string]Context, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	contexts := make(map[string]Context)
	walkHTML(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if n.Data != "xbrli:context" && n.Data != "context" {
			return
		}
		ctx := Context{ID: htmlAttr(n, "id")}
		if ctx.ID == "" {
			return
		}
		walkHTML(n, func(child *html.Node) {
			if child.Type != html.ElementNode {
				return
			}
			switch localName(child.Data) {
			case "identifier":
				ctx.Entity = strings.TrimSpace(nodeText(child))
			case "instant":
				ctx.Instant = parseXBRLDate(nodeText(child))
			case "startdate":
				ctx.Start = parseXBRLDate(nodeText(child))
			case "enddate":
				ctx.End = parseXBRLDate(nodeText(child))
			case "scenario":
				if inner := renderChildren(child); len(bytes.TrimSpace(inner)) > 0 {
					ctx.Scenario = inner
				}
			}
		})
		contexts[ctx.ID] = ctx
	})
	return contexts, nil
}

func inlineNumericFact(n *html.Node) (Fact, bool) {
	fact := Fact{
		Concept:    localConcept(htmlAttr(n, "name")),
		ContextRef: htmlAttr(n, "contextref"),
		UnitRef:    htmlAttr(n, "unitref"),
		Text:       strings.TrimSpace(nodeText(n)),
	}
	if fact.Concept == "" || fact.ContextRef == "" {
		return Fact{}, false
	}
	if raw := htmlAttr(n, "decimals"); raw != "" && raw != "INF" {
		if d, err := strconv.Atoi(raw); err == nil {
			fact.Decimals = &d
		}
	}

	parsed, ok := shared.ParseDecimalString(fact.Text)
	if !ok {
		// A dash or empty cell is still a reportable fact, just nil-valued.
		return fact, true
	}
	if htmlAttr(n, "sign") == "-" {
		parsed = parsed.Neg()
	}
	if raw := htmlAttr(n, "scale"); raw != "" {
		if scale, err := strconv.Atoi(raw); err == nil {
			parsed = parsed.Shift(int32(scale))
		}
	}
	fact.Numeric = &parsed
	return fact, true
}

func inlineTextFact(n *html.Node) (Fact, bool) {
	fact := Fact{
		Concept:    localConcept(htmlAttr(n, "name")),
		ContextRef: htmlAttr(n, "contextref"),
		Text:       strings.TrimSpace(nodeText(n)),
	}
	if fact.Concept == "" || fact.ContextRef == "" {
		return Fact{}, false
	}
	return fact, true
}

// localConcept strips the namespace prefix from an ix name attribute,
// e.g. "tifrs-bsci-cr:Revenue" -> "Revenue".
func localConcept(name string) string {
	if idx := strings.LastIndexByte(name, ':'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func localName(tag string) string {
	return localConcept(strings.ToLower(tag))
}

func htmlAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func walkHTML(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fn(c)
		walkHTML(c, fn)
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

func renderChildren(n *html.Node) []byte {
	var b bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.Bytes()
}
