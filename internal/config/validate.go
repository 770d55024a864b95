package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrEmptyYAMLSuffix indicates a missing YAML file suffix.
	ErrEmptyYAMLSuffix = errors.New("empty yaml suffix")

	// ErrInvalidVendorMarker indicates a vendor marker that is not a valid glob.
	ErrInvalidVendorMarker = errors.New("invalid vendor marker")

	// ErrInvalidPath indicates a configured path that escapes the project root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNegativeValue indicates a negative worker or cache count.
	ErrNegativeValue = errors.New("negative value")
)

// Validate checks that the configuration is usable. All problems are
// reported together.
func Validate(cfg *ProjectConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.YAMLSuffix) == "" {
		errs = append(errs, ErrEmptyYAMLSuffix)
	}
	for _, m := range cfg.VendorMarkers {
		if _, err := glob.Compile(m); err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %v", ErrInvalidVendorMarker, m, err))
		}
	}
	for _, p := range append(append([]string{cfg.YAMLDir}, cfg.SourceRoots...), cfg.ExcludeDirs...) {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(p), "..") {
			errs = append(errs, fmt.Errorf("%w %q: must be relative to the project root", ErrInvalidPath, p))
		}
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers %d", ErrNegativeValue, cfg.Workers))
	}
	if cfg.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: cacheSize %d", ErrNegativeValue, cfg.CacheSize))
	}

	return errors.Join(errs...)
}
