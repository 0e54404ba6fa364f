// Package session owns the display connection and every piece of window
// manager state, and drives the event loop.
package session

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/client"
	"github.com/1broseidon/awm/internal/config"
	"github.com/1broseidon/awm/internal/events"
	"github.com/1broseidon/awm/internal/ipc"
	"github.com/1broseidon/awm/internal/logging"
	"github.com/1broseidon/awm/internal/metrics"
	"github.com/1broseidon/awm/internal/monitor"
	"github.com/1broseidon/awm/internal/platform"
	"github.com/1broseidon/awm/internal/registry"
)

// Info describes the running process for status reports.
type Info struct {
	Version string
	Display string
}

// Session is one window manager instance on one display. All of its state
// is confined to the goroutine calling Run; Stop and Snapshot are the only
// methods safe to call from elsewhere.
type Session struct {
	b    platform.Backend
	cfg  *config.Config
	info Info

	reg        *registry.Registry
	mons       *monitor.Store
	discovery  *monitor.Discovery
	dispatcher *events.Dispatcher

	stop     atomic.Bool
	closed   bool
	snapshot atomic.Pointer[ipc.Snapshot]
}

// New claims the display's root window and builds the session: atoms,
// the discovery strategy and the initial monitors. Windows that are
// already mapped are adopted. On error nothing needs to be torn down
// besides the backend itself.
func New(b platform.Backend, cfg *config.Config, info Info) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := b.BecomeWM(); err != nil {
		return nil, err
	}

	atoms, err := events.InternAtoms(b)
	if err != nil {
		return nil, err
	}
	if err := b.SetSupported(events.Supported()); err != nil {
		logging.L().Warn("publish supported hints", logging.XError(err))
	}

	strategy, err := monitor.SelectStrategy(b, cfg.ForceRandR14, cfg.ForceXinerama)
	if err != nil {
		return nil, err
	}
	logging.L().Info("monitor discovery strategy", zap.Stringer("strategy", strategy))
	if strategy.UsesRandR() {
		if err := b.SelectRandRInput(b.Root()); err != nil {
			logging.L().Warn("select RandR change events", logging.XError(err))
		}
	}

	opts := events.Options{MetaDragging: cfg.Drag.MetaDragging}
	if opts.MetaDragging {
		mask, err := b.ModifierMask(cfg.Drag.Modifier)
		if err != nil {
			logging.L().Warn("meta dragging disabled", zap.String("modifier", cfg.Drag.Modifier), zap.Error(err))
			opts.MetaDragging = false
		}
		opts.DragModifier = mask
	}

	s := &Session{
		b:         b,
		cfg:       cfg,
		info:      info,
		reg:       registry.New(),
		mons:      monitor.NewStore(),
		discovery: monitor.NewDiscovery(b, b.Root(), strategy),
	}
	s.dispatcher = events.New(b, s.reg, s.mons, atoms, opts)
	s.dispatcher.OutputsChanged = s.Rediscover

	s.Rediscover()
	if s.mons.Len() == 0 {
		screen := monitor.Monitor{Output: monitor.NoOutput, Name: "screen", Rect: b.ScreenRect(), Primary: true}
		logging.L().Warn("no monitors discovered, using the whole screen", zap.Stringer("monitor", screen))
		s.mons.Replace([]monitor.Monitor{screen})
	}

	s.adoptExisting()
	s.publish()
	return s, nil
}

func (s *Session) adoptExisting() {
	wins, err := s.b.ExistingWindows()
	if err != nil {
		logging.L().Warn("list existing windows", logging.XError(err))
		return
	}
	if len(wins) > 0 {
		logging.L().Info("adopting existing windows", zap.Int("count", len(wins)))
	}
	for _, w := range wins {
		s.dispatcher.Manage(w)
	}
}

// Rediscover runs a discovery pass and replaces the monitors when it
// yields any. A failed pass keeps the previous monitors.
func (s *Session) Rediscover() {
	start := time.Now()
	res, err := s.discovery.Discover()
	metrics.DiscoveryDuration.Observe(time.Since(start).Seconds())

	if res.Warnings != nil {
		logging.L().Warn("monitor discovery skipped outputs", zap.Error(res.Warnings))
	}
	if err != nil {
		logging.L().Warn("monitor discovery failed, keeping previous monitors",
			zap.Int("kept", s.mons.Len()), zap.Error(err))
		return
	}

	s.mons.Replace(res.Monitors)
	metrics.Monitors.Reset()
	metrics.Monitors.WithLabelValues(res.Used.String()).Set(float64(s.mons.Len()))
	for _, m := range s.mons.All() {
		logging.L().Info("monitor", zap.Stringer("monitor", m), zap.Stringer("via", res.Used))
	}
}

// Run dispatches events until Stop is called or the connection closes.
// A closed connection is returned as an error.
func (s *Session) Run() error {
	for !s.stop.Load() {
		ev, err := s.b.WaitForEvent()
		if err != nil {
			if errors.Is(err, platform.ErrClosed) {
				return errors.Wrap(err, "event loop")
			}
			s.logProtocolError(err)
			continue
		}
		if ev == nil {
			continue
		}

		s.dispatcher.Dispatch(ev)
		s.publish()
	}
	logging.L().Info("stop requested, leaving event loop")
	return nil
}

func (s *Session) logProtocolError(err error) {
	if platform.IsBadWindow(err) {
		// Usually a window that was destroyed while requests for it were
		// in flight.
		logging.L().Debug("protocol error", logging.XError(err))
		return
	}
	logging.L().Warn("protocol error", logging.XError(err))
}

// Stop asks Run to return after the event being handled. It is safe to
// call from any goroutine, including a signal handler goroutine.
func (s *Session) Stop() {
	if s.stop.Swap(true) {
		return
	}
	if err := s.b.Wake(); err != nil {
		logging.L().Warn("wake event loop", zap.Error(err))
	}
}

// Stopping reports whether Stop has been called.
func (s *Session) Stopping() bool {
	return s.stop.Load()
}

// Close tears the session down in reverse order of construction: clients,
// then monitors, then the connection. It must not run concurrently with
// Run.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	root := s.b.Root()
	n := s.reg.Len()
	s.reg.Each(func(c *client.Client) {
		frame := c.Frame
		c.DestroyFrame(root)
		s.reg.Remove(c.Inner, frame)
	})
	metrics.ManagedClients.Set(0)
	logging.L().Info("released clients", zap.Int("count", n))

	s.mons.Clear()
	metrics.Monitors.Reset()

	s.b.Close()
	logging.L().Info("connection closed")
}

// Registry exposes the client registry to tests and status reporting.
func (s *Session) Registry() *registry.Registry {
	return s.reg
}

// Monitors exposes the monitor store.
func (s *Session) Monitors() *monitor.Store {
	return s.mons
}

// Strategy returns the discovery strategy fixed at start-up.
func (s *Session) Strategy() monitor.Strategy {
	return s.discovery.Strategy()
}

// Snapshot returns the last published state. It is safe to call from any
// goroutine.
func (s *Session) Snapshot() *ipc.Snapshot {
	return s.snapshot.Load()
}

func (s *Session) publish() {
	var clients []ipc.ClientInfo
	s.reg.Each(func(c *client.Client) {
		clients = append(clients, ipc.ClientInfo{
			Inner:      uint32(c.Inner),
			Frame:      uint32(c.Frame),
			Name:       c.Name,
			NameSource: c.NameSource.String(),
			X:          c.Rect.X,
			Y:          c.Rect.Y,
			Width:      c.Rect.Width,
			Height:     c.Rect.Height,
			Fullscreen: c.Fullscreen,
		})
	})
	monitors := lo.Map(s.mons.All(), func(m monitor.Monitor, _ int) ipc.MonitorInfo {
		return ipc.MonitorInfo{
			Output:  uint32(m.Output),
			Name:    m.Name,
			X:       m.Rect.X,
			Y:       m.Rect.Y,
			Width:   m.Rect.Width,
			Height:  m.Rect.Height,
			Primary: m.Primary,
		}
	})

	s.snapshot.Store(&ipc.Snapshot{
		Status: ipc.StatusData{
			Version:      s.info.Version,
			Display:      s.info.Display,
			Strategy:     s.discovery.Strategy().String(),
			ConfigPath:   s.cfg.Path,
			ClientCount:  len(clients),
			MonitorCount: len(monitors),
		},
		Clients:  clients,
		Monitors: monitors,
	})
}
