package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Names of the two built-in transformation profiles.
const (
	ProfileLegacy = "legacy"
	ProfileNative = "native"
)

// Profile is a named source-to-source transformation configuration.
type Profile struct {
	Name string `yaml:"-"`

	// Format selects the module convention of the output:
	// "commonjs" rewrites module syntax for broad compatibility,
	// "esm" preserves native import/export syntax.
	Format string `yaml:"format"`

	// Target is the language baseline the output must run on
	// (e.g. "es2018", "esnext").
	Target string `yaml:"target"`

	// Inject lists polyfill source files injected into the bundle when
	// this profile drives the packaging step. Per-file transforms only
	// honor Target.
	Inject []string `yaml:"inject,omitempty"`
}

// DefaultProfiles returns the built-in legacy and native profiles.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileLegacy: {Name: ProfileLegacy, Format: "commonjs", Target: "es2018"},
		ProfileNative: {Name: ProfileNative, Format: "esm", Target: "esnext"},
	}
}

type transformFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads the transformation-profile configuration file and
// merges its per-profile overrides over the built-in defaults. A missing
// file yields the defaults unchanged.
func LoadProfiles(path string) (map[string]Profile, error) {
	profiles := DefaultProfiles()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return profiles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transform config: %w", err)
	}

	var tf transformFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &tf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transform config: %w", err)
	}

	for name, override := range tf.Profiles {
		merged, ok := profiles[name]
		if !ok {
			merged = Profile{}
		}
		merged.Name = name
		if override.Format != "" {
			merged.Format = override.Format
		}
		if override.Target != "" {
			merged.Target = override.Target
		}
		if len(override.Inject) > 0 {
			merged.Inject = override.Inject
		}
		profiles[name] = merged
	}

	return profiles, nil
}
