package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"diskcli/core"
	"diskcli/gdrive"
	"diskcli/platform"
	"diskcli/yandex"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// StorageFactory builds the backend for a loaded configuration.
type StorageFactory func(ctx context.Context, cfg core.BackendConfig, logger *zap.Logger) (core.Storage, error)

// App carries what every command needs. The backend is built lazily so a
// rejected command line never loads configuration.
type App struct {
	ctx     context.Context
	opts    *Options
	stdout  io.Writer
	stderr  io.Writer
	lookup  core.LookupFunc
	factory StorageFactory
	logger  *zap.Logger
}

func newStorage(ctx context.Context, cfg core.BackendConfig, logger *zap.Logger) (core.Storage, error) {
	switch cfg.Backend {
	case core.Yandex:
		return yandex.New(cfg, logger), nil
	case core.Google:
		return gdrive.New(ctx, cfg, logger)
	}
	return nil, core.Usagef("unsupported service %q", cfg.Backend)
}

func (a *App) verbose() bool {
	return len(a.opts.Verbose) > 0 && a.opts.Verbose[0]
}

func (a *App) log() (*zap.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}

	logger, err := core.NewLogger(core.LogOptions{Verbose: a.verbose(), Path: a.opts.LogFile})
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	a.logger = logger
	return logger, nil
}

// storage validates the service name, loads its configuration and builds
// the backend. No network traffic happens here.
func (a *App) storage() (core.Storage, error) {
	backend, err := core.ParseBackend(a.opts.Service)
	if err != nil {
		return nil, err
	}

	dir := a.opts.ConfigDir
	if dir == "" {
		dir = core.DefaultConfigDir(backend)
	}

	cfg, err := core.LoadBackendConfig(backend, dir, a.lookup)
	if err != nil {
		return nil, err
	}

	logger, err := a.log()
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded",
		zap.String("service", string(backend)),
		zap.String("dir", dir),
		zap.String("base_url", cfg.BaseURL),
		zap.Duration("timeout", cfg.Timeout),
		zap.Uint64("retries", cfg.Retries),
	)

	return a.factory(a.ctx, cfg, logger)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup core.LookupFunc, factory StorageFactory) int {
	app := &App{
		ctx:     ctx,
		opts:    &Options{},
		stdout:  stdout,
		stderr:  stderr,
		lookup:  lookup,
		factory: factory,
	}
	defer func() {
		if app.logger != nil {
			_ = app.logger.Sync()
		}
	}()

	parser, err := newParser(app)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	_, err = parser.ParseArgs(args)
	if err == nil {
		return exitOK
	}

	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %s\n\n", flagsErr.Message)
		parser.WriteHelp(stderr)
		return exitUsage
	}

	var usageErr *core.UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "error: %v\n\n", err)
		parser.WriteHelp(stderr)
		return exitUsage
	}

	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitError
}

func main() {
	platform.SetupConsole()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv, newStorage)
	stop()

	os.Exit(code)
}
