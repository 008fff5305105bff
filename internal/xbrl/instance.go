package xbrl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/formosa-data/formosa/internal/shared"
)

// Native XBRL instance parsing. Facts are any elements carrying a
// contextRef attribute; the concept is the element's local name.

type xmlContext struct {
	ID     string `xml:"id,attr"`
	Entity struct {
		Identifier string `xml:"identifier"`
	} `xml:"entity"`
	Period struct {
		Instant   string `xml:"instant"`
		StartDate string `xml:"startDate"`
		EndDate   string `xml:"endDate"`
	} `xml:"period"`
	Scenario struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"scenario"`
}

// ParseInstanceContexts extracts every xbrli:context keyed by id.
func ParseInstanceContexts(content []byte) (map[string]Context, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	contexts := make(map[string]Context)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return contexts, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		el, ok := token.(xml.StartElement)
		if !ok || el.Name.Local != "context" {
			continue
		}
		var raw xmlContext
		if err := decoder.DecodeElement(&raw, &el); err != nil {
			return nil, fmt.Errorf("%w: context: %v", ErrParse, err)
		}
		ctx := Context{
			ID:     raw.ID,
			Entity: strings.TrimSpace(raw.Entity.Identifier),
		}
		if len(bytes.TrimSpace(raw.Scenario.Inner)) > 0 {
			ctx.Scenario = raw.Scenario.Inner
		}
		if raw.Period.Instant != "" {
			ctx.Instant = parseXBRLDate(raw.Period.Instant)
		} else {
			ctx.Start = parseXBRLDate(raw.Period.StartDate)
			ctx.End = parseXBRLDate(raw.Period.EndDate)
		}
		if raw.ID != "" {
			contexts[raw.ID] = ctx
		}
	}
}

// ParseInstanceFacts extracts facts in document order. Elements with a
// unitRef parse numerically; anything unparseable keeps its text only.
func ParseInstanceFacts(content []byte) ([]Fact, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	var facts []Fact

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return facts, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		el, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		contextRef := attr(el, "contextRef")
		if contextRef == "" || el.Name.Local == "context" {
			continue
		}

		fact := Fact{
			Concept:    el.Name.Local,
			ContextRef: contextRef,
			UnitRef:    attr(el, "unitRef"),
		}
		if raw := attr(el, "decimals"); raw != "" && raw != "INF" {
			if d, err := strconv.Atoi(raw); err == nil {
				fact.Decimals = &d
			}
		}

		var text strings.Builder
		if err := collectText(decoder, el.Name, &text); err != nil {
			return nil, err
		}
		fact.Text = strings.TrimSpace(text.String())

		if fact.UnitRef != "" {
			if value, ok := shared.ParseDecimalString(fact.Text); ok {
				fact.Numeric = &value
			}
		}
		facts = append(facts, fact)
	}
}

func parseXBRLDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// Some instances emit full timestamps for period boundaries.
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
