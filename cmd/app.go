package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/adamanr/hr_console/internal/cache"
	"github.com/adamanr/hr_console/internal/config"
	"github.com/adamanr/hr_console/internal/controllers"
	"github.com/adamanr/hr_console/internal/database"
	"github.com/adamanr/hr_console/internal/session"
	"github.com/adamanr/hr_console/internal/transport"
	logging "github.com/adamanr/hr_console/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds everything a command needs. It is built once per process in the
// root command's PersistentPreRunE.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	deps     *controllers.Dependens
	ctrls    *controllers.Controllers
	closers  []io.Closer
}

type options struct {
	configPath string
	console    io.Writer
	verbose    bool
}

func newApp(ctx context.Context, opts options) (*app, error) {
	bootstrap := slog.New(slog.NewTextHandler(opts.console, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(opts.configPath, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	consoleLevel := slog.LevelWarn
	if opts.verbose {
		consoleLevel = slog.LevelDebug
	}

	logger, logFile := logging.SetupLogger(cfg.Log.File, cfg.LogLevel(), opts.console, consoleLevel)
	slog.SetDefault(logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		closers:  []io.Closer{logFile},
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	storage, err := a.sessionStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	store := session.NewStore(storage, logger)

	client, err := transport.NewClient(cfg.API.BaseURL, store, logger,
		transport.WithTimeout(cfg.API.Timeout),
		transport.WithMetrics(transport.NewMetrics(a.registry)),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create api client: %w", err)
	}

	c := cache.New(logger,
		cache.WithDedupInterval(cfg.Cache.DedupInterval),
		cache.WithMetrics(cache.NewMetrics(a.registry)),
	)

	a.deps = &controllers.Dependens{
		API:     client,
		Cache:   c,
		Session: store,
		Logger:  logger,
		Config:  cfg,
		Now:     time.Now,
	}
	a.ctrls = controllers.NewControllers(a.deps)

	return a, nil
}

func (a *app) sessionStorage(ctx context.Context) (session.Storage, error) {
	switch a.cfg.Session.Storage {
	case config.StorageMemory:
		return session.NewMemoryStorage(), nil
	case config.StorageRedis:
		rdb, err := database.NewRedisConn(ctx, a.cfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect session redis: %w", err)
		}
		a.closers = append(a.closers, rdb)

		return session.NewRedisStorage(rdb, a.cfg.Session.RedisPrefix, a.cfg.Session.TTL), nil
	default:
		fs, err := session.NewFileStorage(a.cfg.Session.FilePath, a.cfg.Session.Secret)
		if err != nil {
			return nil, fmt.Errorf("open session file: %w", err)
		}

		return fs, nil
	}
}

// boot restores the saved session. Commands that need a signed-in user call
// requireAuth afterwards.
func (a *app) boot(ctx context.Context) session.State {
	state := a.ctrls.AuthController.Boot(ctx)
	a.logger.Debug("Session restored", slog.String("state", state.String()))

	return state
}

var errNotSignedIn = errors.New("not signed in, run `hrconsole login` first")

func (a *app) requireAuth() error {
	if a.deps.Session.State() != session.StateAuthenticated {
		return errNotSignedIn
	}

	return nil
}

func (a *app) Close() {
	if a.deps != nil {
		a.deps.Cache.Close()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}
}
