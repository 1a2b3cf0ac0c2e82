// Package config decodes dep11-config.yml, the generator's single
// configuration file (§6). Grounded on original_source/dep11/config.py's
// DataCacheConfig loader, restated over go.yaml.in/yaml/v3 struct tags
// instead of a hand-rolled JSON/YAML attribute walk.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// defaultIconSizes is used when IconSizes is omitted from the config file.
var defaultIconSizes = []string{"64x64", "128x128"}

// Suite describes one archive suite's processing parameters (§6).
type Suite struct {
	Components    []string `yaml:"components"`
	Architectures []string `yaml:"architectures"`
	UseIconTheme  string   `yaml:"useIconTheme,omitempty"`
	DataPriority  int      `yaml:"dataPriority,omitempty"`
	BaseSuite     string   `yaml:"baseSuite,omitempty"`
}

// Config is the decoded form of dep11-config.yml (§6).
type Config struct {
	ArchiveRoot    string           `yaml:"ArchiveRoot"`
	Suites         map[string]Suite `yaml:"Suites"`
	MediaBaseURL   string           `yaml:"MediaBaseUrl"`
	CacheDir       string           `yaml:"CacheDir,omitempty"`
	ExportDir      string           `yaml:"ExportDir,omitempty"`
	IconSizes      []string         `yaml:"IconSizes,omitempty"`
	DistroName     string           `yaml:"DistroName,omitempty"`
	RepositoryName string           `yaml:"RepositoryName,omitempty"`
}

// Load reads and decodes a dep11-config.yml from path, applying the
// documented defaults for CacheDir, ExportDir and IconSizes when absent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if cfg.ArchiveRoot == "" {
		return nil, fmt.Errorf("config: %s: ArchiveRoot is required", path)
	}
	if len(cfg.Suites) == 0 {
		return nil, fmt.Errorf("config: %s: at least one entry under Suites is required", path)
	}
	if cfg.MediaBaseURL == "" {
		return nil, fmt.Errorf("config: %s: MediaBaseUrl is required", path)
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = "cache"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "export"
	}
	if len(cfg.IconSizes) == 0 {
		cfg.IconSizes = defaultIconSizes
	}
	if cfg.RepositoryName == "" {
		cfg.RepositoryName = cfg.DistroName
	}

	return &cfg, nil
}

// IconSizePixels parses one "WxH" entry from IconSizes, returning its side
// length. Both entries are expected equal (DEP-11 icons are always square).
func IconSizePixels(spec string) (int, error) {
	var w, h int
	if _, err := fmt.Sscanf(spec, "%dx%d", &w, &h); err != nil {
		return 0, fmt.Errorf("config: invalid icon size %q: %w", spec, err)
	}
	if w != h {
		return 0, fmt.Errorf("config: icon size %q is not square", spec)
	}
	return w, nil
}
