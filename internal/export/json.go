package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/pybundle/internal/extract"
	"github.com/dusk-indust/pybundle/internal/graph"
)

// File names written by WriteBundle.
const (
	PayloadFile  = "bundle.py"
	ManifestFile = "manifest.json"
)

// BundleManifest is the top-level JSON description of a written bundle.
type BundleManifest struct {
	ID          string               `json:"id"`
	ExportedAt  string               `json:"exportedAt"`
	Entry       EntryExport          `json:"entry"`
	Sections    []SectionExport      `json:"sections"`
	Graph       map[string][]string  `json:"graph,omitempty"`
	Diagnostics []extract.Diagnostic `json:"diagnostics,omitempty"`
	Payload     string               `json:"payload"`
}

// EntryExport describes the bundled function or class.
type EntryExport struct {
	Name       string        `json:"name"`
	Module     string        `json:"module"`
	Kind       string        `json:"kind"`
	File       string        `json:"file"`
	Parameters []graph.Param `json:"parameters,omitempty"`
}

// SectionExport describes one section of the payload, in emission order.
type SectionExport struct {
	Kind    string         `json:"kind"`
	Entries []EntryElement `json:"entries"`
}

// EntryElement is one dependency in a section.
type EntryElement struct {
	Name      string   `json:"name"`
	Aliases   []string `json:"aliases,omitempty"`
	Module    string   `json:"module,omitempty"`
	Local     bool     `json:"local,omitempty"`
	Statement string   `json:"statement"`
}

// BuildManifest describes b. The manifest gets a fresh id.
func BuildManifest(b *extract.Bundle) *BundleManifest {
	m := &BundleManifest{
		ID:         uuid.NewString(),
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Entry: EntryExport{
			Name:       b.EntryName,
			Module:     b.EntryModule,
			Kind:       b.EntryKind,
			File:       b.EntryFile,
			Parameters: b.Parameters,
		},
		Graph:       b.Graph,
		Diagnostics: b.Diagnostics,
		Payload:     PayloadFile,
	}

	sections := []struct {
		kind string
		refs []extract.SymbolReference
	}{
		{"local", b.Local},
		{"selective", b.Selective},
		{"standard", b.Standard},
		{"variable", b.Variables},
		{"union", b.Unions},
	}
	for _, s := range sections {
		if len(s.refs) == 0 {
			continue
		}
		sec := SectionExport{Kind: s.kind}
		for _, r := range s.refs {
			sec.Entries = append(sec.Entries, EntryElement{
				Name:      r.Name,
				Aliases:   r.Aliases,
				Module:    r.OriginModule,
				Local:     r.IsLocal,
				Statement: r.Statement(),
			})
		}
		m.Sections = append(m.Sections, sec)
	}
	return m
}

// WriteBundle writes the rendered payload and its manifest into dir,
// creating dir if needed.
func WriteBundle(dir string, b *extract.Bundle) (*BundleManifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, PayloadFile), []byte(b.Render()), 0o644); err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}

	m := BuildManifest(b)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}
