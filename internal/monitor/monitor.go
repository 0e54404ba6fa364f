// Package monitor tracks display outputs and discovers them from the server.
package monitor

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/handlemap"
	"github.com/1broseidon/awm/internal/logging"
)

// NoOutput is the output id of monitors that have no stable RandR output,
// such as Xinerama heads.
const NoOutput randr.Output = 0

// Monitor is one display area.
type Monitor struct {
	Output  randr.Output
	Name    string
	Rect    geom.Rect
	Primary bool
}

func (m Monitor) String() string {
	if m.Name == "" {
		return m.Rect.String()
	}
	return fmt.Sprintf("%s %s", m.Name, m.Rect)
}

// Store holds the monitors found by the last successful discovery pass.
// Monitors with an output are indexed by it; the rest are kept in order
// for geometry queries only.
type Store struct {
	byOutput  handlemap.Map[randr.Output, Monitor]
	unindexed []Monitor
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps the store's contents for ms.
func (s *Store) Replace(ms []Monitor) {
	s.byOutput.Clear()
	s.unindexed = nil
	for _, m := range ms {
		if m.Output == NoOutput {
			s.unindexed = append(s.unindexed, m)
			continue
		}
		if err := s.byOutput.Insert(m.Output, m); err != nil {
			logging.L().Warn("duplicate monitor output", zap.Stringer("monitor", m), zap.Error(err))
		}
	}
}

// ByOutput looks a monitor up by its RandR output.
func (s *Store) ByOutput(out randr.Output) (Monitor, bool) {
	return s.byOutput.Get(out)
}

// All returns indexed monitors in output order followed by the unindexed
// ones.
func (s *Store) All() []Monitor {
	all := make([]Monitor, 0, s.Len())
	s.byOutput.Range(func(_ randr.Output, m Monitor) bool {
		all = append(all, m)
		return true
	})
	return append(all, s.unindexed...)
}

// Len returns the number of monitors.
func (s *Store) Len() int {
	return s.byOutput.Len() + len(s.unindexed)
}

// Clear drops every monitor.
func (s *Store) Clear() {
	s.Replace(nil)
}

// ContainingPoint returns the monitor whose area contains p.
func (s *Store) ContainingPoint(p geom.Offset) (Monitor, bool) {
	return lo.Find(s.All(), func(m Monitor) bool { return m.Rect.Contains(p) })
}

// AreaFor returns the area a window centred at p should fill: the monitor
// containing p, else the primary monitor, else fallback.
func (s *Store) AreaFor(p geom.Offset, fallback geom.Rect) geom.Rect {
	if m, ok := s.ContainingPoint(p); ok {
		return m.Rect
	}
	if m, ok := lo.Find(s.All(), func(m Monitor) bool { return m.Primary }); ok {
		return m.Rect
	}
	return fallback
}
