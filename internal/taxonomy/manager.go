// Package taxonomy maintains a local cache of IFRS taxonomy schema and
// linkbase files referenced by MOPS filings.
package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/formosa-data/formosa/internal/shared"
	"github.com/formosa-data/formosa/internal/xbrl"
)

// Fetcher downloads a remote taxonomy file. Satisfied by the MOPS client.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Manager caches taxonomy files on disk keyed by URL path, with an
// in-memory index of what is already present. Concurrent requests for the
// same URL share a single download.
type Manager struct {
	dir     string
	fetcher Fetcher
	logger  *slog.Logger

	flight shared.Flight

	mu    sync.RWMutex
	index map[string]string // remote URL -> local path
}

// LinkbaseSet is the best-effort result of resolving a filing's taxonomy:
// whatever linkbases could be fetched and parsed, plus warnings for the rest.
type LinkbaseSet struct {
	Calculation  xbrl.CalculationMap
	Presentation xbrl.PresentationSet
	Labels       *xbrl.LabelSet
	Warnings     []string
}

// New creates a Manager rooted at dir, creating the directory on first use
// and indexing any files already cached there.
func New(dir string, fetcher Fetcher, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("taxonomy: create cache dir: %w", err)
	}
	m := &Manager{
		dir:     dir,
		fetcher: fetcher,
		logger:  logger,
		index:   make(map[string]string),
	}
	return m, nil
}

// Resolve returns the cached bytes for a remote taxonomy URL, downloading
// and storing them on first request. Concurrent callers for the same URL
// share one fetch.
func (m *Manager) Resolve(ctx context.Context, rawURL string) ([]byte, error) {
	local := m.localPath(rawURL)

	m.mu.RLock()
	_, known := m.index[rawURL]
	m.mu.RUnlock()
	if known {
		return os.ReadFile(local)
	}

	result, err, _ := m.flight.Do(ctx, rawURL, func() (any, error) {
		// Another process may have populated the file already.
		if data, err := os.ReadFile(local); err == nil {
			m.remember(rawURL, local)
			return data, nil
		}

		data, err := m.fetcher.Get(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("taxonomy: fetch %s: %w", rawURL, err)
		}
		if err := m.store(local, data); err != nil {
			return nil, err
		}
		m.remember(rawURL, local)
		if m.logger != nil {
			m.logger.Info("cached taxonomy file",
				slog.String("url", rawURL),
				slog.String("path", local))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// ResolveLinkbases derives the _cal/_pre/_lab sibling URLs of every schema
// the instance references and parses whatever can be fetched. Resolution
// failures never abort the caller; they become warnings on the result.
func (m *Manager) ResolveLinkbases(ctx context.Context, instance []byte) *LinkbaseSet {
	set := &LinkbaseSet{
		Calculation:  make(xbrl.CalculationMap),
		Presentation: make(xbrl.PresentationSet),
		Labels:       xbrl.NewLabelSet(),
	}

	for _, schemaURL := range FindSchemaRefs(instance) {
		for _, linkbaseURL := range SiblingLinkbases(schemaURL) {
			data, err := m.Resolve(ctx, linkbaseURL)
			if err != nil {
				if ctx.Err() != nil {
					return set
				}
				set.Warnings = append(set.Warnings,
					fmt.Sprintf("linkbase %s unavailable: %v", linkbaseURL, err))
				continue
			}
			m.mergeLinkbase(set, linkbaseURL, data)
		}
	}
	return set
}

func (m *Manager) mergeLinkbase(set *LinkbaseSet, source string, data []byte) {
	switch {
	case strings.Contains(source, "_cal"):
		calc, warnings, err := xbrl.ParseCalculation(data)
		if err != nil {
			set.Warnings = append(set.Warnings, fmt.Sprintf("%s: %v", source, err))
			return
		}
		set.Warnings = append(set.Warnings, warnings...)
		for from, arcs := range calc {
			set.Calculation[from] = append(set.Calculation[from], arcs...)
		}
	case strings.Contains(source, "_pre"):
		pres, err := xbrl.ParsePresentation(data)
		if err != nil {
			set.Warnings = append(set.Warnings, fmt.Sprintf("%s: %v", source, err))
			return
		}
		for role, byFrom := range pres {
			target, ok := set.Presentation[role]
			if !ok {
				target = make(map[string][]xbrl.PresentationArc)
				set.Presentation[role] = target
			}
			for from, arcs := range byFrom {
				target[from] = append(target[from], arcs...)
			}
		}
	case strings.Contains(source, "_lab"):
		labels, err := xbrl.ParseLabels(data)
		if err != nil {
			set.Warnings = append(set.Warnings, fmt.Sprintf("%s: %v", source, err))
			return
		}
		set.Labels.Merge(labels)
	}
}

var schemaRefPattern = regexp.MustCompile(`(?:schemaLocation|xlink:href)="([^"]+\.xsd)"`)

// FindSchemaRefs scans an instance document for remote .xsd references.
// xsi:schemaLocation values are whitespace-separated namespace/location
// pairs; only http(s) locations are returned, deduplicated in order.
func FindSchemaRefs(instance []byte) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, match := range schemaRefPattern.FindAllSubmatch(instance, -1) {
		for _, field := range strings.Fields(string(match[1])) {
			if !strings.HasPrefix(field, "http://") && !strings.HasPrefix(field, "https://") {
				continue
			}
			if !strings.HasSuffix(field, ".xsd") || seen[field] {
				continue
			}
			seen[field] = true
			refs = append(refs, field)
		}
	}
	return refs
}

// SiblingLinkbases derives the conventional linkbase URLs next to a schema:
// tifrs-X.xsd publishes tifrs-X_cal.xml, _pre.xml and _lab.xml alongside.
func SiblingLinkbases(schemaURL string) []string {
	base := strings.TrimSuffix(schemaURL, ".xsd")
	if base == schemaURL {
		return nil
	}
	return []string{base + "_cal.xml", base + "_pre.xml", base + "_lab.xml"}
}

// localPath maps a URL to its cache file, keyed by the URL path.
func (m *Manager) localPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return filepath.Join(m.dir, sanitize(rawURL))
	}
	return filepath.Join(m.dir, sanitize(strings.TrimPrefix(u.Path, "/")))
}

func sanitize(p string) string {
	p = strings.ReplaceAll(p, "..", "")
	return filepath.FromSlash(strings.TrimLeft(p, "/"))
}

func (m *Manager) store(local string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	tmp := local + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	if err := os.Rename(tmp, local); err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	return nil
}

func (m *Manager) remember(rawURL, local string) {
	m.mu.Lock()
	m.index[rawURL] = local
	m.mu.Unlock()
}
