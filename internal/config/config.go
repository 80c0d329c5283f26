// Package config holds the command-line configuration and its validation.
package config

import (
	"errors"

	"github.com/idelchi/gogen/pkg/validator"
)

// Mode is the operation a command runs.
type Mode int

const (
	Encrypt Mode = iota
	Decrypt
	Check
)

// Config holds the settings of one command invocation, populated by viper from
// flags and FOLDERCRYPT_* environment variables.
type Config struct {
	// Password sources
	Password     string `label:"--password"      mapstructure:"password"      mask:"filled" validate:"exclusive=PasswordFile"`
	PasswordFile string `label:"--password-file" mapstructure:"password-file"`

	// Key derivation
	Algorithm string `label:"--algorithm" mapstructure:"algorithm" validate:"algorithm"`

	// Output
	Suffix     string `label:"--suffix"      mapstructure:"suffix"      validate:"required,excludesall=/\\"`
	Force      bool   `label:"--force"       mapstructure:"force"`
	Verbose    bool   `label:"--verbose"     mapstructure:"verbose"     validate:"exclusive=Quiet"`
	Quiet      bool   `label:"--quiet"       mapstructure:"quiet"`
	NoProgress bool   `label:"--no-progress" mapstructure:"no-progress"`
	Stats      bool   `label:"--stats"       mapstructure:"stats"`
	Show       bool   `label:"--show"        mapstructure:"show"`

	// Encrypt only
	SkipPasswordCheck bool `label:"--skip-password-check" mapstructure:"skip-password-check"`

	// Decrypt and check only
	Select     []string `label:"--select"      mapstructure:"select"`
	SelectFrom string   `label:"--select-from" mapstructure:"select-from"`

	// Set by the commands, not by flags
	Mode             Mode   `mapstructure:"-"`
	PasswordFromFlag bool   `mapstructure:"-"`
	Source           string `label:"SRC"  mapstructure:"-" validate:"required"`
	Destination      string `label:"DST"  mapstructure:"-" validate:"required_unless=Mode 2"`
}

// Display reports whether the configuration should be printed instead of run.
func (c *Config) Display() bool {
	return c.Show
}

// Validate checks config against its struct tags, including the
// exclusive and algorithm validators.
func (c *Config) Validate(config any) error {
	v := validator.NewValidator()

	if err := registerValidators(v); err != nil {
		return err
	}

	return errors.Join(v.Validate(config)...)
}
