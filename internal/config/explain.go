package config

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Paths lists every setting Explain understands.
func Paths() []string {
	paths := make([]string, 0, len(settings)+len(flagSettings))
	for _, s := range settings {
		paths = append(paths, s.path)
	}
	for p := range flagSettings {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Explain returns the effective value at path and where it came from.
//
// Supported paths include:
//
//	force_randr14
//	force_xinerama
//	drag_n_drop.meta_dragging
//	drag_n_drop.modifier
//	log.level
//	metrics.listen
//	plugins.paths
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, errors.New("no config loaded")
	}
	if path == "" {
		return nil, Source{}, errors.New("path is empty")
	}

	src, ok := res.Sources[path]
	if !ok {
		src = Source{Kind: SourceDefault}
	}

	if get, ok := flagSettings[path]; ok {
		return get(res.Config), src, nil
	}
	for _, s := range settings {
		if s.path == path {
			return s.get(res.Config), src, nil
		}
	}
	return nil, Source{}, errors.Newf("unknown setting %q", path)
}
