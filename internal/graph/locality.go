package graph

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultVendorMarkers names the directories treated as third-party code
// when no markers are configured.
var DefaultVendorMarkers = []string{".venv"}

// Locality decides whether a file belongs to the caller's own project: it
// must lie under Root, and none of its directories may match a vendor
// marker. Markers are glob patterns matched against single path components
// ("site-packages", ".venv*", "*.egg-info").
type Locality struct {
	Root    string
	markers []glob.Glob
	raw     []string
}

// NewLocality compiles the vendor markers for root. An empty marker list
// falls back to DefaultVendorMarkers.
func NewLocality(root string, markers []string) (*Locality, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	if len(markers) == 0 {
		markers = DefaultVendorMarkers
	}
	l := &Locality{Root: abs, raw: markers}
	for _, m := range markers {
		g, err := glob.Compile(m)
		if err != nil {
			return nil, fmt.Errorf("invalid vendor marker %q: %w", m, err)
		}
		l.markers = append(l.markers, g)
	}
	return l, nil
}

// Markers returns the configured marker patterns.
func (l *Locality) Markers() []string {
	return l.raw
}

// IsLocal reports whether path (absolute, or relative to Root) is project
// code. An empty path, as for modules built into the interpreter, is never
// local.
func (l *Locality) IsLocal(path string) bool {
	if path == "" {
		return false
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.Root, path)
	}
	rel, err := filepath.Rel(l.Root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if l.IsVendorDir(part) {
			return false
		}
	}
	return true
}

// IsVendorDir reports whether a single directory name matches a marker.
func (l *Locality) IsVendorDir(name string) bool {
	for _, g := range l.markers {
		if g.Match(name) {
			return true
		}
	}
	return false
}
