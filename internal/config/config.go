// Package config loads the distbuilder configuration and resolves the fixed
// set of build paths once at process start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GeneratedSuffix marks source fragments created by the build itself.
// The cleaner removes them and the watcher never triggers on them.
const GeneratedSuffix = ".gen.js"

// EntrySuffix marks generated entry-only source files (curated re-export
// surfaces), handled separately from the general source set.
const EntrySuffix = ".entry.js"

// Config represents the application configuration
type Config struct {
	Name            string      `yaml:"name"`                       // library name, used for the bundle filename
	GlobalName      string      `yaml:"global_name,omitempty"`      // browser global for the bundle export
	Paths           PathsConfig `yaml:"paths"`
	TransformConfig string      `yaml:"transform_config,omitempty"` // transformation-profile configuration file
	EntriesManifest string      `yaml:"entries_manifest,omitempty"` // entry-file generation manifest
	Cache           CacheConfig `yaml:"cache"`
	Watch           WatchConfig `yaml:"watch"`

	// Resolved is the absolute path set derived from Paths. It is filled
	// exactly once by Load and never mutated afterwards.
	Resolved Paths `yaml:"-"`

	// Profiles holds the named transformation profiles after merging the
	// transform config file over the built-in defaults.
	Profiles map[string]Profile `yaml:"-"`
}

// PathsConfig holds the configurable path roots (relative paths are
// resolved against the config file's directory).
type PathsConfig struct {
	SourceRoot      string `yaml:"source_root"`
	OutRoot         string `yaml:"out_root"`
	LegacyOutDir    string `yaml:"legacy_out,omitempty"` // pre-rename output dir, only ever cleaned
	DocsRoot        string `yaml:"docs_root"`
	BundleEntry     string `yaml:"bundle_entry"`
	HeaderTemplate  string `yaml:"header_template"`
	PackageMetadata string `yaml:"package_metadata"`
}

// CacheConfig controls the transform cache backing the compilers.
type CacheConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// WatchConfig controls watch mode behavior.
type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce"`
	MetricsAddr string        `yaml:"metrics_addr,omitempty"` // optional Prometheus endpoint, e.g. ":9090"
	NATSURL     string        `yaml:"nats_url,omitempty"`     // optional build-event publishing
	NATSSubject string        `yaml:"nats_subject,omitempty"`
	DailyBundle bool          `yaml:"daily_bundle"` // re-bundle once a day so the banner date stays current
}

// Paths is the fully resolved, absolute path set used by every component.
type Paths struct {
	SourceRoot    string
	EntriesSrcDir string // generated entry files live here inside the source tree

	OutRoot       string
	BrowserDir    string
	CjsDir        string
	EsmDir        string
	EntriesOutDir string // nested entry subtree inside the cjs root

	DocsRoot   string
	DocsOutDir string

	BundleEntry   string
	BundleOutfile string

	HeaderTemplate string
	HeaderOutfile  string

	PackageMetadata string
	VersionFragment string

	LegacyOutDir string
}

// Load loads configuration from the specified file. A missing file yields
// the default configuration so the tool works inside a conventional layout
// without any setup.
func Load(configPath string) (*Config, error) {
	// Load .env/.env.local if present; existing env wins.
	for _, envPath := range []string{".env", ".env.local"} {
		if err := godotenv.Load(envPath); err == nil {
			fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
			break
		}
	}

	cfg := defaultConfig()

	baseDir := "."
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		baseDir = filepath.Dir(configPath)
	}

	applyDefaults(cfg)

	if err := cfg.resolve(baseDir); err != nil {
		return nil, err
	}

	profiles, err := LoadProfiles(cfg.TransformConfig)
	if err != nil {
		return nil, err
	}
	cfg.Profiles = profiles

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Name: "lib",
		Paths: PathsConfig{
			SourceRoot:      "src",
			OutRoot:         "dist",
			LegacyOutDir:    "lib",
			DocsRoot:        "docs",
			BundleEntry:     "src/index.js",
			HeaderTemplate:  "HEADER.tmpl",
			PackageMetadata: "package.json",
		},
		Cache: CacheConfig{Path: ".distbuilder/cache.db"},
		Watch: WatchConfig{Debounce: 200 * time.Millisecond},
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.GlobalName == "" {
		cfg.GlobalName = cfg.Name
	}
	if cfg.Paths.SourceRoot == "" {
		cfg.Paths.SourceRoot = def.Paths.SourceRoot
	}
	if cfg.Paths.OutRoot == "" {
		cfg.Paths.OutRoot = def.Paths.OutRoot
	}
	if cfg.Paths.LegacyOutDir == "" {
		cfg.Paths.LegacyOutDir = def.Paths.LegacyOutDir
	}
	if cfg.Paths.DocsRoot == "" {
		cfg.Paths.DocsRoot = def.Paths.DocsRoot
	}
	if cfg.Paths.BundleEntry == "" {
		cfg.Paths.BundleEntry = def.Paths.BundleEntry
	}
	if cfg.Paths.HeaderTemplate == "" {
		cfg.Paths.HeaderTemplate = def.Paths.HeaderTemplate
	}
	if cfg.Paths.PackageMetadata == "" {
		cfg.Paths.PackageMetadata = def.Paths.PackageMetadata
	}
	if cfg.TransformConfig == "" {
		cfg.TransformConfig = "transform.yaml"
	}
	if cfg.EntriesManifest == "" {
		cfg.EntriesManifest = "entries.yaml"
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = def.Cache.Path
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = def.Watch.Debounce
	}
	if cfg.Watch.NATSSubject == "" {
		cfg.Watch.NATSSubject = "distbuilder.build.completed"
	}
}

// resolve converts the configured roots into the absolute Paths set.
func (c *Config) resolve(baseDir string) error {
	abs := func(p string) (string, error) {
		if filepath.IsAbs(p) {
			return filepath.Clean(p), nil
		}
		return filepath.Abs(filepath.Join(baseDir, p))
	}

	var err error
	p := Paths{}
	if p.SourceRoot, err = abs(c.Paths.SourceRoot); err != nil {
		return fmt.Errorf("failed to resolve source root: %w", err)
	}
	if p.OutRoot, err = abs(c.Paths.OutRoot); err != nil {
		return fmt.Errorf("failed to resolve output root: %w", err)
	}
	if p.LegacyOutDir, err = abs(c.Paths.LegacyOutDir); err != nil {
		return fmt.Errorf("failed to resolve legacy output dir: %w", err)
	}
	if p.DocsRoot, err = abs(c.Paths.DocsRoot); err != nil {
		return fmt.Errorf("failed to resolve docs root: %w", err)
	}
	if p.BundleEntry, err = abs(c.Paths.BundleEntry); err != nil {
		return fmt.Errorf("failed to resolve bundle entry: %w", err)
	}
	if p.HeaderTemplate, err = abs(c.Paths.HeaderTemplate); err != nil {
		return fmt.Errorf("failed to resolve header template: %w", err)
	}
	if p.PackageMetadata, err = abs(c.Paths.PackageMetadata); err != nil {
		return fmt.Errorf("failed to resolve package metadata: %w", err)
	}

	p.EntriesSrcDir = filepath.Join(p.SourceRoot, "entries")
	p.BrowserDir = filepath.Join(p.OutRoot, "browser")
	p.CjsDir = filepath.Join(p.OutRoot, "cjs")
	p.EsmDir = filepath.Join(p.OutRoot, "esm")
	p.EntriesOutDir = filepath.Join(p.CjsDir, "entries")
	p.DocsOutDir = filepath.Join(p.OutRoot, "docs")
	p.BundleOutfile = filepath.Join(p.BrowserDir, c.Name+".min.js")
	p.HeaderOutfile = filepath.Join(p.OutRoot, "HEADER.txt")
	p.VersionFragment = filepath.Join(p.SourceRoot, "version"+GeneratedSuffix)

	c.Resolved = p

	if c.TransformConfig, err = abs(c.TransformConfig); err != nil {
		return fmt.Errorf("failed to resolve transform config: %w", err)
	}
	if c.EntriesManifest, err = abs(c.EntriesManifest); err != nil {
		return fmt.Errorf("failed to resolve entries manifest: %w", err)
	}
	if !c.Cache.Disabled {
		if c.Cache.Path, err = abs(c.Cache.Path); err != nil {
			return fmt.Errorf("failed to resolve cache path: %w", err)
		}
	}
	return nil
}
