// Package config builds the static session configuration from command-line
// flags and awm.conf.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/cockroachdb/errors"

	"github.com/1broseidon/awm/internal/logging"
)

// FileName is the configuration file looked up in every search root.
const FileName = "awm.conf"

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceFlag    SourceKind = "flag"
)

// Source records where a setting came from.
type Source struct {
	Kind SourceKind
	File string
}

func (s Source) String() string {
	if s.Kind == SourceFile && s.File != "" {
		return fmt.Sprintf("%s (%s)", s.Kind, s.File)
	}
	return string(s.Kind)
}

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source.File, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

type DragConfig struct {
	// MetaDragging allows dragging a client from anywhere inside it while
	// Modifier is held.
	MetaDragging bool   `yaml:"meta_dragging"`
	Modifier     string `yaml:"modifier"`
}

type MetricsConfig struct {
	// Listen is the address the Prometheus endpoint is served on. Empty
	// disables it.
	Listen string `yaml:"listen,omitempty"`
}

type PluginsConfig struct {
	// Paths are plugin files, or directories whose regular files are all
	// loaded.
	Paths []string `yaml:"paths,omitempty"`
}

// Config is everything the session needs at start-up. It does not change
// while the session runs.
type Config struct {
	// Path is the awm.conf that was loaded, empty when none was found.
	Path string `yaml:"path,omitempty"`

	ForceRandR14  bool `yaml:"force_randr14"`
	ForceXinerama bool `yaml:"force_xinerama"`

	Drag    DragConfig     `yaml:"drag_n_drop"`
	Log     logging.Config `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Plugins PluginsConfig  `yaml:"plugins"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Drag: DragConfig{
			MetaDragging: true,
			Modifier:     "mod4",
		},
		Log: logging.Config{
			Level: "info",
		},
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for values the session cannot use.
func (c *Config) Validate() error {
	return c.validate(nil)
}

func (c *Config) validate(sources map[string]Source) error {
	fail := func(path string, err error) error {
		return &ValidationError{Path: path, Source: sources[path], Err: err}
	}

	if c.ForceRandR14 && c.ForceXinerama {
		return fail("force_xinerama", errors.New("-R and -X are mutually exclusive"))
	}
	if err := validModifier(c.Drag.Modifier); err != nil {
		return fail("drag_n_drop.modifier", err)
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		return fail("log.level", errors.Newf("level must be one of: %s", strings.Join(logLevels, ", ")))
	}
	if c.Log.MaxSizeMB < 0 {
		return fail("log.max_size_mb", errors.New("max_size_mb must be >= 0"))
	}
	if c.Log.MaxBackups < 0 {
		return fail("log.max_backups", errors.New("max_backups must be >= 0"))
	}
	for i, p := range c.Plugins.Paths {
		if strings.TrimSpace(p) == "" {
			return fail("plugins.paths", errors.Newf("entry %d is empty", i))
		}
	}
	return nil
}

// validModifier accepts a single modifier name as used in key binding
// strings, such as "mod4" or "control".
func validModifier(name string) error {
	if name == "" {
		return errors.New("modifier is required")
	}
	lower := strings.ToLower(name)
	for _, m := range keybind.NiceModifiers {
		if m != "" && m == lower {
			return nil
		}
	}
	return errors.Newf("unknown modifier %q (want one of: %s)", name,
		strings.Join(slices.DeleteFunc(slices.Clone(keybind.NiceModifiers), func(s string) bool { return s == "" }), ", "))
}
