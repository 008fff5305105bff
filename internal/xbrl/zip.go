package xbrl

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Archive is an unpacked XBRL ZIP: the raw files, the designated instance
// document, and the recognised linkbase files.
type Archive struct {
	Files        map[string][]byte
	InstancePath string
	Calculation  []string
	Presentation []string
	Label        []string
}

// Instance returns the bytes of the designated instance document.
func (a *Archive) Instance() []byte {
	return a.Files[a.InstancePath]
}

// OpenArchive unpacks ZIP bytes and locates the instance document.
// Detection order: an iXBRL file named tifrs-fr*-ci-*.htm(l), then any XML
// with an <xbrli:xbrl> root, then the largest .htm file.
func OpenArchive(content []byte) (*Archive, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}

	a := &Archive{Files: make(map[string][]byte, len(reader.File))}
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedPackage, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedPackage, f.Name, err)
		}
		a.Files[f.Name] = data
	}

	names := make([]string, 0, len(a.Files))
	for name := range a.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lower := strings.ToLower(name)
		switch {
		case strings.HasSuffix(lower, "_cal.xml"):
			a.Calculation = append(a.Calculation, name)
		case strings.HasSuffix(lower, "_pre.xml"):
			a.Presentation = append(a.Presentation, name)
		case strings.HasSuffix(lower, "_lab.xml"):
			a.Label = append(a.Label, name)
		}
	}

	a.InstancePath = findInstance(names, a.Files)
	if a.InstancePath == "" {
		return nil, fmt.Errorf("%w: no instance document", ErrMalformedPackage)
	}
	return a, nil
}

func findInstance(names []string, files map[string][]byte) string {
	// Preferred: the consolidated iXBRL report file.
	for _, name := range names {
		base := strings.ToLower(path.Base(name))
		if matched, _ := path.Match("tifrs-fr*-ci-*.htm", base); matched {
			return name
		}
		if matched, _ := path.Match("tifrs-fr*-ci-*.html", base); matched {
			return name
		}
	}

	// Next: a native XBRL instance.
	for _, name := range names {
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".xml") || isLinkbaseName(lower) {
			continue
		}
		if bytes.Contains(files[name], []byte("<xbrli:xbrl")) {
			return name
		}
	}

	// Last resort: the largest HTML file.
	var largest string
	var largestSize int
	for _, name := range names {
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".htm") && !strings.HasSuffix(lower, ".html") {
			continue
		}
		if size := len(files[name]); size > largestSize {
			largest, largestSize = name, size
		}
	}
	return largest
}

func isLinkbaseName(lower string) bool {
	for _, marker := range []string{"_cal", "_pre", "_lab", "_def", "_ref"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
