package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/1broseidon/awm/internal/logging"
)

// Flags are the command-line settings that feed into loading.
type Flags struct {
	// Root overrides the first search root.
	Root          string
	ForceRandR14  bool
	ForceXinerama bool
}

// LoadResult is a resolved configuration together with where each value
// came from.
type LoadResult struct {
	Config  *Config
	Sources map[string]Source // setting path -> where its value came from
	// Searched lists the roots that were considered, in order.
	Searched []string
}

// setting binds one awm.conf key to its place in Config.
type setting struct {
	path    string
	section string
	key     string
	set     func(c *Config, k *ini.Key) error
	get     func(c *Config) any
}

var settings = []setting{
	{
		path: "drag_n_drop.meta_dragging", section: "DRAG_N_DROP", key: "meta_dragging",
		set: func(c *Config, k *ini.Key) (err error) { c.Drag.MetaDragging, err = k.Bool(); return },
		get: func(c *Config) any { return c.Drag.MetaDragging },
	},
	{
		path: "drag_n_drop.modifier", section: "DRAG_N_DROP", key: "modifier",
		set: func(c *Config, k *ini.Key) error { c.Drag.Modifier = strings.ToLower(k.String()); return nil },
		get: func(c *Config) any { return c.Drag.Modifier },
	},
	{
		path: "log.level", section: "LOG", key: "level",
		set: func(c *Config, k *ini.Key) error { c.Log.Level = strings.ToLower(k.String()); return nil },
		get: func(c *Config) any { return c.Log.Level },
	},
	{
		path: "log.file", section: "LOG", key: "file",
		set: func(c *Config, k *ini.Key) error { c.Log.File = expandHome(k.String()); return nil },
		get: func(c *Config) any { return c.Log.File },
	},
	{
		path: "log.max_size_mb", section: "LOG", key: "max_size_mb",
		set: func(c *Config, k *ini.Key) (err error) { c.Log.MaxSizeMB, err = k.Int(); return },
		get: func(c *Config) any { return c.Log.MaxSizeMB },
	},
	{
		path: "log.max_backups", section: "LOG", key: "max_backups",
		set: func(c *Config, k *ini.Key) (err error) { c.Log.MaxBackups, err = k.Int(); return },
		get: func(c *Config) any { return c.Log.MaxBackups },
	},
	{
		path: "metrics.listen", section: "METRICS", key: "listen",
		set: func(c *Config, k *ini.Key) error { c.Metrics.Listen = k.String(); return nil },
		get: func(c *Config) any { return c.Metrics.Listen },
	},
	{
		path: "plugins.paths", section: "PLUGINS", key: "paths",
		set: func(c *Config, k *ini.Key) error {
			c.Plugins.Paths = nil
			for _, p := range k.Strings(",") {
				c.Plugins.Paths = append(c.Plugins.Paths, expandHome(p))
			}
			return nil
		},
		get: func(c *Config) any { return c.Plugins.Paths },
	},
}

// flagSettings are only settable on the command line.
var flagSettings = map[string]func(c *Config) any{
	"force_randr14":  func(c *Config) any { return c.ForceRandR14 },
	"force_xinerama": func(c *Config) any { return c.ForceXinerama },
}

// ConfDir is the directory under each search root that holds awm.conf.
const ConfDir = "conf"

// SearchRoots returns the directories awm.conf is looked up in, in order:
// <override>/conf, $XDG_CONFIG_HOME/awm/conf (default ~/.config/awm/conf),
// ~/.awm/conf and /etc/awm/conf. An override without a conf directory is
// skipped with an error log.
func SearchRoots(override string) []string {
	var roots []string

	if override != "" {
		override = filepath.Clean(override)
		dir := filepath.Join(override, ConfDir)
		if st, err := os.Stat(override); err != nil || !st.IsDir() {
			logging.L().Error("configuration root does not exist", zap.String("path", override))
		} else if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			logging.L().Error("configuration folder does not exist", zap.String("path", dir))
		} else {
			roots = append(roots, dir)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.Getenv("HOME")
	}
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" && home != "" {
		xdg = filepath.Join(home, ".config")
	}
	if xdg != "" {
		roots = append(roots, filepath.Join(xdg, "awm", ConfDir))
	}
	if home != "" {
		roots = append(roots, filepath.Join(home, ".awm", ConfDir))
	}
	return append(roots, filepath.Join("/etc/awm", ConfDir))
}

// Load resolves the configuration: defaults, then the first awm.conf found
// in the search roots, then the flags. The result is validated.
func Load(flags Flags) (*LoadResult, error) {
	res := &LoadResult{
		Config:   DefaultConfig(),
		Sources:  map[string]Source{},
		Searched: SearchRoots(flags.Root),
	}

	for _, root := range res.Searched {
		path := filepath.Join(root, FileName)
		if exists, err := pathExists(path); err != nil {
			return nil, err
		} else if !exists {
			continue
		}
		if err := loadFile(path, res.Config, res.Sources); err != nil {
			return nil, err
		}
		res.Config.Path = path
		break
	}
	if res.Config.Path == "" {
		logging.L().Warn("no configuration file found, using defaults", zap.Strings("searched", res.Searched))
	}

	if flags.ForceRandR14 {
		res.Config.ForceRandR14 = true
		res.Sources["force_randr14"] = Source{Kind: SourceFlag}
	}
	if flags.ForceXinerama {
		res.Config.ForceXinerama = true
		res.Sources["force_xinerama"] = Source{Kind: SourceFlag}
	}

	if err := res.Config.validate(res.Sources); err != nil {
		return nil, err
	}
	return res, nil
}

// LoadFile reads a single awm.conf on top of the defaults.
func LoadFile(path string) (*LoadResult, error) {
	res := &LoadResult{
		Config:  DefaultConfig(),
		Sources: map[string]Source{},
	}
	if err := loadFile(path, res.Config, res.Sources); err != nil {
		return nil, err
	}
	res.Config.Path = path
	if err := res.Config.validate(res.Sources); err != nil {
		return nil, err
	}
	return res, nil
}

func loadFile(path string, cfg *Config, sources map[string]Source) error {
	f, err := ini.LoadSources(ini.LoadOptions{}, path)
	if err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	src := Source{Kind: SourceFile, File: path}

	known := map[string]map[string]setting{}
	for _, s := range settings {
		if known[s.section] == nil {
			known[s.section] = map[string]setting{}
		}
		known[s.section][s.key] = s
	}

	for _, sec := range f.Sections() {
		keys, ok := known[sec.Name()]
		if !ok {
			if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
				continue
			}
			return &ValidationError{Path: sec.Name(), Source: src, Err: errors.New("unknown section")}
		}
		for _, k := range sec.Keys() {
			s, ok := keys[k.Name()]
			if !ok {
				return &ValidationError{Path: sec.Name() + "." + k.Name(), Source: src, Err: errors.New("unknown key")}
			}
			if err := s.set(cfg, k); err != nil {
				return &ValidationError{Path: s.path, Source: src, Err: err}
			}
			sources[s.path] = src
		}
	}
	return nil
}

func pathExists(path string) (bool, error) {
	st, err := os.Stat(path)
	switch {
	case err == nil:
		return !st.IsDir(), nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "stat %s", path)
	}
}

func expandHome(p string) string {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
