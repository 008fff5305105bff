package xbrl

import "strings"

// Label role URIs, lowest to highest priority when no preferred label is
// requested.
const (
	RoleVerboseLabel = "http://www.xbrl.org/2003/role/verboseLabel"
	RoleLabel        = "http://www.xbrl.org/2003/role/label"
	RoleTerseLabel   = "http://www.xbrl.org/2003/role/terseLabel"
)

var defaultRolePriority = []string{RoleTerseLabel, RoleLabel, RoleVerboseLabel}

// LabelSet stores every label resource by concept, language and role, and
// answers lookups with the preferred-label and role-priority rules applied.
type LabelSet struct {
	// concept -> lang ("zh"/"en") -> role URI -> text
	byConcept map[string]map[string]map[string]string
}

// NewLabelSet returns an empty label set.
func NewLabelSet() *LabelSet {
	return &LabelSet{byConcept: make(map[string]map[string]map[string]string)}
}

// Add records one label resource.
func (l *LabelSet) Add(concept, lang, role, text string) {
	if concept == "" || text == "" {
		return
	}
	lang = normalizeLang(lang)
	if lang == "" {
		return
	}
	if role == "" {
		role = RoleLabel
	}
	langs, ok := l.byConcept[concept]
	if !ok {
		langs = make(map[string]map[string]string)
		l.byConcept[concept] = langs
	}
	roles, ok := langs[lang]
	if !ok {
		roles = make(map[string]string)
		langs[lang] = roles
	}
	roles[role] = text
}

// Merge copies every label from other into l.
func (l *LabelSet) Merge(other *LabelSet) {
	if other == nil {
		return
	}
	for concept, langs := range other.byConcept {
		for lang, roles := range langs {
			for role, text := range roles {
				l.Add(concept, lang, role, text)
			}
		}
	}
}

// Label resolves the display string for a concept. A preferredRole from a
// presentation arc wins; otherwise terseLabel beats label beats verboseLabel.
// Returns "" when the concept has no label in the language.
func (l *LabelSet) Label(concept, lang, preferredRole string) string {
	if l == nil {
		return ""
	}
	roles, ok := l.byConcept[concept][normalizeLang(lang)]
	if !ok {
		return ""
	}
	if preferredRole != "" {
		if text, ok := roles[preferredRole]; ok {
			return text
		}
	}
	for _, role := range defaultRolePriority {
		if text, ok := roles[role]; ok {
			return text
		}
	}
	for _, text := range roles {
		return text
	}
	return ""
}

// Len reports the number of labelled concepts.
func (l *LabelSet) Len() int {
	if l == nil {
		return 0
	}
	return len(l.byConcept)
}

// MOPS taxonomies tag Chinese labels as zh-TW or zh; English as en.
func normalizeLang(lang string) string {
	lower := strings.ToLower(lang)
	switch {
	case strings.HasPrefix(lower, "zh"), strings.Contains(lower, "tw"):
		return "zh"
	case strings.HasPrefix(lower, "en"):
		return "en"
	default:
		return ""
	}
}

func containsRole(roleURI, roleName string) bool {
	return strings.Contains(roleURI, roleName)
}
