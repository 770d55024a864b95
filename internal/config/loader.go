package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables that override file settings,
// for example BUNDLE_YAMLSUFFIX.
const EnvPrefix = "BUNDLE"

// FileNames are the config files looked for in the project root, in order.
var FileNames = []string{"bundle.yml", "bundle.yaml"}

// Load reads bundle.yml or bundle.yaml from dir. Priority, highest first:
// BUNDLE_* environment variables, the config file, defaults. A missing
// config file is not an error. List values given through the environment
// are comma separated.
func Load(dir string) (*ProjectConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		break
	}

	cfg := &ProjectConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key, which also lets AutomaticEnv see them.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("sourceRoots", d.SourceRoots)
	v.SetDefault("vendorMarkers", d.VendorMarkers)
	v.SetDefault("excludeDirs", d.ExcludeDirs)
	v.SetDefault("respectGitignore", d.RespectGitignore)
	v.SetDefault("excludeNames", d.ExcludeNames)
	v.SetDefault("yamlSuffix", d.YAMLSuffix)
	v.SetDefault("yamlDir", d.YAMLDir)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("cacheSize", d.CacheSize)
	v.SetDefault("verbose", d.Verbose)
}
