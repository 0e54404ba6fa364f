package session

import (
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/1broseidon/awm/internal/logging"
)

// StopSignals end the event loop.
var StopSignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP}

// HandleSignals translates StopSignals into Stop until the returned
// function is called.
func (s *Session) HandleSignals() (release func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, StopSignals...)

	go func() {
		for {
			select {
			case sig := <-ch:
				logging.L().Info("received signal", zap.Stringer("signal", sig))
				s.Stop()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
