package main

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/config"
	"github.com/1broseidon/awm/internal/ipc"
	"github.com/1broseidon/awm/internal/logging"
	"github.com/1broseidon/awm/internal/metrics"
	"github.com/1broseidon/awm/internal/platform"
	"github.com/1broseidon/awm/internal/plugins"
	"github.com/1broseidon/awm/internal/runtimepath"
	"github.com/1broseidon/awm/internal/session"
	"github.com/1broseidon/awm/internal/workpool"
)

func loadConfig() (*config.LoadResult, error) {
	return config.Load(config.Flags{
		Root:          configRoot,
		ForceRandR14:  forceRandR14,
		ForceXinerama: forceXinerama,
	})
}

// initLogging installs a logger for cfg. Until the config is known, a
// default logger is in place so that loading problems are reported.
func initLogging(cfg logging.Config) error {
	lg, err := logging.Init(cfg)
	if err != nil {
		return err
	}
	logging.ReplaceGlobals(lg)
	return nil
}

func runManager() error {
	if err := initLogging(logging.Config{Level: "info"}); err != nil {
		return err
	}
	defer func() { _ = logging.Sync() }()

	res, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := res.Config
	if err := initLogging(cfg.Log); err != nil {
		return err
	}
	logging.L().Info("awm starting",
		zap.String("version", version),
		zap.Int("bits", strconv.IntSize),
		zap.String("config", cfg.Path))

	display := os.Getenv("DISPLAY")
	b, err := platform.NewLinuxBackendFromDisplay(display)
	if err != nil {
		return errors.Wrap(err, "connect to display")
	}

	s, err := session.New(b, cfg, session.Info{Version: version, Display: display})
	if err != nil {
		b.Close()
		return err
	}
	defer s.Close()

	release := s.HandleSignals()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics.Register(reg)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg); err != nil {
				logging.L().Error("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	if srv := startStatusServer(display, s); srv != nil {
		defer srv.Stop()
	}

	pool, err := workpool.New(runtime.NumCPU())
	if err != nil {
		return err
	}
	defer func() {
		if dropped, err := pool.Close(); err != nil || dropped > 0 {
			logging.L().Warn("work pool closed", zap.Int("dropped", dropped), zap.Error(err))
		}
	}()
	startPlugins(pool, cfg.Plugins.Paths)

	if err := s.Run(); err != nil {
		logging.L().Error("event loop ended", zap.Error(err))
		return err
	}
	return nil
}

// startStatusServer serves session snapshots. A socket that cannot be
// created only costs `awm status`, so failures are logged.
func startStatusServer(display string, s *session.Session) *ipc.Server {
	path, err := runtimepath.SocketPath(display)
	if err != nil {
		logging.L().Warn("status socket disabled", zap.Error(err))
		return nil
	}
	srv := ipc.NewServer(path, s.Snapshot)
	if err := srv.Start(); err != nil {
		logging.L().Warn("status socket disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	logging.L().Info("status socket listening", zap.String("path", path))
	return srv
}

func startPlugins(pool *workpool.Pool, paths []string) {
	if len(paths) == 0 {
		return
	}
	ps, err := plugins.NewLoader(nil).Load(paths)
	if err != nil {
		logging.L().Warn("some plugins were not loaded", zap.Error(err))
	}
	if err := plugins.Start(pool, ps); err != nil {
		logging.L().Warn("schedule plugin init", zap.Error(err))
	}
}
