package config

import (
	"log/slog"

	"github.com/dusk-indust/pybundle/internal/extract"
	"github.com/dusk-indust/pybundle/internal/graph"
)

// ProjectConfig holds project-level settings loaded from bundle.yml.
type ProjectConfig struct {
	// SourceRoots are directories whose children are importable as
	// top-level packages.
	SourceRoots []string `mapstructure:"sourceRoots" yaml:"sourceRoots,omitempty"`
	// VendorMarkers are glob patterns naming third-party directories, such
	// as a virtualenv.
	VendorMarkers    []string `mapstructure:"vendorMarkers" yaml:"vendorMarkers,omitempty"`
	ExcludeDirs      []string `mapstructure:"excludeDirs" yaml:"excludeDirs,omitempty"`
	RespectGitignore bool     `mapstructure:"respectGitignore" yaml:"respectGitignore,omitempty"`

	// ExcludeNames are never included in a bundle.
	ExcludeNames []string `mapstructure:"excludeNames" yaml:"excludeNames,omitempty"`
	YAMLSuffix   string   `mapstructure:"yamlSuffix" yaml:"yamlSuffix,omitempty"`
	// YAMLDir is relative to the project root. Empty means src/<root name>.
	YAMLDir string `mapstructure:"yamlDir" yaml:"yamlDir,omitempty"`

	Workers   int  `mapstructure:"workers" yaml:"workers,omitempty"`
	CacheSize int  `mapstructure:"cacheSize" yaml:"cacheSize,omitempty"`
	Verbose   bool `mapstructure:"verbose" yaml:"verbose,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *ProjectConfig {
	return &ProjectConfig{
		SourceRoots:      append([]string(nil), graph.DefaultSourceRoots...),
		VendorMarkers:    append([]string(nil), graph.DefaultVendorMarkers...),
		RespectGitignore: true,
		ExcludeNames:     append([]string(nil), extract.DefaultExcludeNames...),
		YAMLSuffix:       extract.DefaultYAMLSuffix,
		CacheSize:        1024,
	}
}

// IndexerOptions returns the indexing settings.
func (c *ProjectConfig) IndexerOptions(logger *slog.Logger) graph.IndexerOptions {
	return graph.IndexerOptions{
		SourceRoots:      c.SourceRoots,
		ExcludeDirs:      c.ExcludeDirs,
		RespectGitignore: c.RespectGitignore,
		Workers:          c.Workers,
		CacheSize:        c.CacheSize,
		Logger:           logger,
	}
}

// ExtractOptions returns the extraction settings.
func (c *ProjectConfig) ExtractOptions(logger *slog.Logger) extract.Options {
	return extract.Options{
		YAMLSuffix:   c.YAMLSuffix,
		YAMLDir:      c.YAMLDir,
		ExcludeNames: c.ExcludeNames,
		Logger:       logger,
	}
}
