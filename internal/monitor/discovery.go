package monitor

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/logging"
	"github.com/1broseidon/awm/internal/platform"
)

var (
	// ErrNoStrategy means neither RandR nor Xinerama is usable.
	ErrNoStrategy = errors.New("no multi-head extension available")
	// ErrNoMonitors means a discovery pass produced nothing usable.
	ErrNoMonitors = errors.New("discovery found no usable monitors")
)

// Strategy is the way monitors are queried. It is chosen once per session.
type Strategy int

const (
	StrategyRandR15 Strategy = iota
	StrategyRandR14
	StrategyXinerama
)

func (s Strategy) String() string {
	switch s {
	case StrategyRandR15:
		return "randr-1.5"
	case StrategyRandR14:
		return "randr-1.4"
	case StrategyXinerama:
		return "xinerama"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// UsesRandR reports whether the strategy relies on RandR change events.
func (s Strategy) UsesRandR() bool {
	return s == StrategyRandR15 || s == StrategyRandR14
}

// SelectStrategy picks the best available strategy. forceRandR14 skips the
// RandR 1.5 monitor query; forceXinerama skips RandR altogether.
func SelectStrategy(o platform.Outputs, forceRandR14, forceXinerama bool) (Strategy, error) {
	if !forceXinerama {
		major, minor, err := o.RandRVersion()
		switch {
		case err == nil:
			logging.L().Info("found RandR", zap.Uint32("major", major), zap.Uint32("minor", minor))
			if !forceRandR14 && (major > 1 || (major == 1 && minor >= 5)) {
				return StrategyRandR15, nil
			}
			return StrategyRandR14, nil
		case errors.Is(err, platform.ErrNoExtension):
			logging.L().Warn("RandR is not present, falling back to Xinerama")
		default:
			logging.L().Warn("query RandR version, falling back to Xinerama", zap.Error(err))
		}
	}

	if _, err := o.XineramaScreens(); err != nil {
		return 0, errors.Mark(errors.Wrap(err, "query Xinerama"), ErrNoStrategy)
	}
	return StrategyXinerama, nil
}

// Result is the outcome of one discovery pass.
type Result struct {
	Monitors []Monitor
	// Used is the strategy that produced Monitors. It differs from the
	// session strategy when RandR 1.5 fell back to per-output enumeration.
	Used Strategy
	// Warnings collects failed sub-queries that were skipped.
	Warnings error
}

// Discovery queries monitors with a fixed strategy.
type Discovery struct {
	o        platform.Outputs
	root     xproto.Window
	strategy Strategy
}

// NewDiscovery returns a Discovery bound to root.
func NewDiscovery(o platform.Outputs, root xproto.Window, strategy Strategy) *Discovery {
	return &Discovery{o: o, root: root, strategy: strategy}
}

// Strategy returns the strategy fixed at construction.
func (d *Discovery) Strategy() Strategy {
	return d.strategy
}

// Discover runs one pass. Individual outputs that cannot be queried are
// skipped and reported in Result.Warnings; an error is returned only when
// the pass yields no monitors at all, in which case the caller should keep
// its previous monitors.
func (d *Discovery) Discover() (Result, error) {
	var (
		res  Result
		errs []error
		err  error
	)

	res.Used = d.strategy
	switch d.strategy {
	case StrategyRandR15:
		res.Monitors, errs, err = d.randr15()
		if err != nil || len(res.Monitors) == 0 {
			logging.L().Warn("RandR 1.5 query yielded no monitors, falling back to 1.4", zap.Error(err))
			if err != nil {
				errs = append(errs, err)
			}
			var more []error
			res.Used = StrategyRandR14
			res.Monitors, more, err = d.randr14()
			errs = append(errs, more...)
		}
	case StrategyRandR14:
		res.Monitors, errs, err = d.randr14()
	case StrategyXinerama:
		res.Monitors, err = d.xinerama()
	default:
		err = errors.Newf("unknown discovery strategy %d", int(d.strategy))
	}

	res.Warnings = errors.Join(errs...)
	if err != nil {
		return res, errors.Wrapf(err, "discover monitors with %s", res.Used)
	}
	if len(res.Monitors) == 0 {
		return res, errors.Wrapf(ErrNoMonitors, "strategy %s", res.Used)
	}
	return res, nil
}

// validOutput fetches out's description and reports whether it is connected
// and driven by a CRTC.
func (d *Discovery) validOutput(out randr.Output) (platform.OutputInfo, bool, error) {
	info, err := d.o.OutputInfo(out)
	if err != nil {
		return info, false, errors.Wrapf(err, "output 0x%08x", uint32(out))
	}
	return info, info.Crtc != 0 && info.Connected, nil
}

func (d *Discovery) randr15() ([]Monitor, []error, error) {
	mons, err := d.o.RandRMonitors(d.root)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get RandR monitors")
	}
	logging.L().Info("RandR monitors found", zap.Int("count", len(mons)))

	var (
		out  []Monitor
		errs []error
	)
	for _, m := range mons {
		valid := lo.Filter(m.Outputs, func(o randr.Output, _ int) bool {
			_, ok, err := d.validOutput(o)
			if err != nil {
				errs = append(errs, err)
			}
			return ok
		})
		if len(valid) == 0 {
			logging.L().Debug("skip monitor without active outputs", logging.Handle("name", m.Name))
			continue
		}

		name, err := d.o.AtomName(m.Name)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "monitor name atom %d", m.Name))
		}
		out = append(out, Monitor{Output: valid[0], Name: name, Rect: m.Rect, Primary: m.Primary})
	}
	return out, errs, nil
}

func (d *Discovery) randr14() ([]Monitor, []error, error) {
	outputs, err := d.o.RandROutputs(d.root)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get screen resources")
	}

	var (
		out  []Monitor
		errs []error
	)
	for _, o := range lo.Uniq(outputs) {
		info, ok, err := d.validOutput(o)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		rect, err := d.o.CrtcRect(info.Crtc)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "crtc 0x%08x of %s", uint32(info.Crtc), info.Name))
			continue
		}
		out = append(out, Monitor{Output: o, Name: info.Name, Rect: rect})
	}
	return out, errs, nil
}

func (d *Discovery) xinerama() ([]Monitor, error) {
	heads, err := d.o.XineramaScreens()
	if err != nil {
		return nil, errors.Wrap(err, "query Xinerama screens")
	}
	return lo.Map(heads, func(r geom.Rect, i int) Monitor {
		return Monitor{Output: NoOutput, Name: fmt.Sprintf("xinerama-%d", i), Rect: r, Primary: i == 0}
	}), nil
}
