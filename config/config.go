// Package config loads Feral's optional VM configuration file: search
// locations supplementing FERAL_PATHS, the call-stack depth bound, and
// the compiled-script flag.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rnshah9/feral/ferrors"
)

// Config is the on-disk shape of a feral.yml file.
type Config struct {
	// SearchPaths supplements FERAL_PATHS; entries here are consulted
	// after the environment variable's paths but before the
	// installation prefix, for both script and native module lookup.
	SearchPaths []string `yaml:"search_paths"`
	// ExecStackMax overrides vm.ExecStackMaxDefault when positive.
	ExecStackMax int `yaml:"exec_stack_max"`
	// Compiled selects the `.cfer` extension over `.fer` for script
	// resolution.
	Compiled bool `yaml:"compiled"`
}

// Load reads and parses path. A missing file is not an error: Feral runs
// with built-in defaults when no config is present.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, ferrors.Wrap(ferrors.LoadError, 0, 0, err, "reading config %s", path)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, ferrors.Wrap(ferrors.LoadError, 0, 0, err, "parsing config %s", path)
	}
	return &c, nil
}
