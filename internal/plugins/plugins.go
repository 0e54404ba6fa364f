// Package plugins loads shared-object plugins and runs their
// initialisation once.
//
// A plugin is built with -buildmode=plugin and exports
//
//	func Name() string
//	func Init()
//
// Init is called once, off the event loop. Plugins get no access to the
// session.
package plugins

import (
	"os"
	"path/filepath"
	"plugin"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/logging"
)

// Exported symbol names.
const (
	SymbolName = "Name"
	SymbolInit = "Init"
)

// Symbols is the part of an opened plugin the loader needs.
type Symbols interface {
	Lookup(name string) (plugin.Symbol, error)
}

// Opener opens the plugin at path.
type Opener func(path string) (Symbols, error)

// OpenShared opens a Go plugin with the plugin package.
func OpenShared(path string) (Symbols, error) {
	return plugin.Open(path)
}

// Plugin is one loaded plugin.
type Plugin struct {
	Path string
	Name string
	init func()
}

// Enqueuer schedules a task, as workpool.Pool does.
type Enqueuer interface {
	Enqueue(task func()) error
}

// Loader opens plugin files and resolves their entry points.
type Loader struct {
	open Opener
}

// NewLoader returns a loader using open; nil means OpenShared.
func NewLoader(open Opener) *Loader {
	if open == nil {
		open = OpenShared
	}
	return &Loader{open: open}
}

// Expand resolves paths to plugin files. A directory contributes its
// regular files in name order; missing entries are reported and skipped.
func Expand(paths []string) ([]string, error) {
	var (
		files []string
		errs  []error
	)
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "plugin path %s", p))
			continue
		}
		if !st.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "read plugin directory %s", p))
			continue
		}
		regular := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
			return filepath.Join(p, e.Name()), e.Type().IsRegular()
		})
		slices.Sort(regular)
		files = append(files, regular...)
	}
	return lo.Uniq(files), errors.Join(errs...)
}

// Load opens every plugin under paths. Plugins that fail to load are
// skipped; their errors are returned joined alongside the ones that did.
func (l *Loader) Load(paths []string) ([]*Plugin, error) {
	files, err := Expand(paths)
	errs := []error{err}

	var out []*Plugin
	for _, f := range files {
		p, err := l.loadOne(f)
		if err != nil {
			logging.L().Error("load plugin", zap.String("path", f), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logging.L().Info("loaded plugin", zap.String("path", f), zap.String("name", p.Name))
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}

func (l *Loader) loadOne(path string) (*Plugin, error) {
	syms, err := l.open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open plugin %s", path)
	}

	nameSym, err := syms.Lookup(SymbolName)
	if err != nil {
		return nil, errors.Wrapf(err, "plugin %s", path)
	}
	name, ok := nameSym.(func() string)
	if !ok {
		return nil, errors.Newf("plugin %s: %s has type %T, want func() string", path, SymbolName, nameSym)
	}

	initSym, err := syms.Lookup(SymbolInit)
	if err != nil {
		return nil, errors.Wrapf(err, "plugin %s", path)
	}
	initFn, ok := initSym.(func())
	if !ok {
		return nil, errors.Newf("plugin %s: %s has type %T, want func()", path, SymbolInit, initSym)
	}

	return &Plugin{Path: path, Name: name(), init: initFn}, nil
}

// Start schedules Init of every plugin on q. A panicking Init is logged
// and does not affect the others.
func Start(q Enqueuer, ps []*Plugin) error {
	var errs []error
	for _, p := range ps {
		p := p
		err := q.Enqueue(func() {
			defer func() {
				if r := recover(); r != nil {
					logging.L().Error("plugin init panicked", zap.String("name", p.Name), zap.Any("panic", r))
				}
			}()
			p.init()
			logging.L().Debug("plugin initialised", zap.String("name", p.Name))
		})
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "schedule init of %s", p.Name))
		}
	}
	return errors.Join(errs...)
}
