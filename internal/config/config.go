// Package config loads the optional i8gen configuration file: settings
// that tune the driver without cluttering the command line, in the
// style the rest of the pack uses YAML for (github.com/gmofishsauce/i8gen's
// own go.mod pulls in gopkg.in/yaml.v3 for exactly this).
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds driver-wide defaults that would otherwise need to be
// repeated on every invocation.
type Config struct {
	// DefaultProvider supplies the function namespace implied for any
	// FUNC line whose provider field is "-", letting a build's IR omit
	// a repeated project-wide prefix.
	DefaultProvider string `yaml:"default_provider"`

	// MaxStackWarn is the stack depth above which the driver logs a
	// warning rather than silently trusting a MAXSTACK declaration the
	// frontend may have gotten wrong. Zero disables the check.
	MaxStackWarn int `yaml:"max_stack_warn"`
}

// Load reads and parses the YAML config file at path. A missing file is
// not an error: it returns a zero-value Config, matching the CLI's
// "-config is optional" contract.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return &c, nil
}
