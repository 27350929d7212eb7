// Package daemon wires a ServerConfig into a live store.Store and runs
// the server's main loop. Its shape is grounded on the teacher's own
// daemon: a stdlib *log.Logger for the earliest bootstrap lines (before
// the configured logger exists), a PID file, signal-driven graceful
// shutdown, and a New/Run/Stop lifecycle — generalized here from a
// tmux-session supervisor loop to a document-store host with nothing to
// supervise but its own KV backend and config watcher.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/ridgedb/ridgedb/internal/config"
	"github.com/ridgedb/ridgedb/internal/kv"
	"github.com/ridgedb/ridgedb/internal/kv/memstore"
	"github.com/ridgedb/ridgedb/internal/kv/sqlstore"
	"github.com/ridgedb/ridgedb/internal/logx"
	"github.com/ridgedb/ridgedb/internal/store"
)

// Daemon hosts a document store built from a ServerConfig for the process
// lifetime, watching the config file (if any) for mutable-field changes.
type Daemon struct {
	cfg      *config.ServerConfig
	pidFile  string
	bootLog  *log.Logger
	log      logx.Logger
	kv       kv.Store
	Store    *store.Store
	watcher  *config.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	stopped  bool
}

// Options configures daemon construction.
type Options struct {
	// ConfigPath, if non-empty, is watched for hot-reloadable changes.
	ConfigPath string
	// PidFile, if non-empty, receives this process's PID while running.
	PidFile string
}

// New opens the configured KV backend and builds a Daemon around it.
// bootLog receives the earliest lines, emitted before the configured
// logger exists, matching the teacher's own daemon bootstrap.
func New(ctx context.Context, cfg *config.ServerConfig, opts Options) (*Daemon, error) {
	bootLog := log.New(os.Stderr, "ridgedb: ", log.LstdFlags)

	kvStore, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Backend, err)
	}

	lg := logx.New(os.Stderr, cfg.LogLevel)
	st := store.New(kvStore, lg,
		store.WithMaxDocumentBytes(cfg.MaxDocumentBytes),
	)

	dctx, cancel := context.WithCancel(ctx)
	d := &Daemon{
		cfg:     cfg,
		pidFile: opts.PidFile,
		bootLog: bootLog,
		log:     lg,
		kv:      kvStore,
		Store:   st,
		ctx:     dctx,
		cancel:  cancel,
	}

	if opts.ConfigPath != "" {
		w, err := config.WatchFile(opts.ConfigPath, d.applyReload)
		if err != nil {
			bootLog.Printf("warning: config hot-reload disabled: %v", err)
		} else {
			d.watcher = w
		}
	}

	return d, nil
}

// OpenBackend opens the kv.Store named by cfg.Backend. It is exported so
// cmd/ridgedb can open the same backend a running daemon would, without
// going through a network transport this build doesn't implement.
func OpenBackend(ctx context.Context, cfg *config.ServerConfig) (kv.Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return memstore.New(), nil
	case "sqlite":
		return sqlstore.NewSQLite(ctx, cfg.DSN)
	case "dolt":
		return sqlstore.NewDolt(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// applyReload is the config.Watcher callback; it only updates the
// mutable, already-documented fields of d.cfg (spec's concurrency model
// says nothing about the KV backend identity changing at runtime, so
// backend and dsn are deliberately not re-read here). The logger and the
// store built in New are not rebuilt, so they keep the log level and
// limits they started with.
func (d *Daemon) applyReload(cfg *config.ServerConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.LogLevel = cfg.LogLevel
	d.cfg.DefaultFindLimit = cfg.DefaultFindLimit
	d.cfg.MaxFindLimit = cfg.MaxFindLimit
	d.cfg.SortEvalCap = cfg.SortEvalCap
	d.log.Info("config reloaded: log_level=%s default_find_limit=%d max_find_limit=%d",
		cfg.LogLevel, cfg.DefaultFindLimit, cfg.MaxFindLimit)
}

// Run blocks until a termination signal arrives or ctx is cancelled, then
// shuts the daemon down gracefully. Front-end listeners (HTTP, wire
// protocol) are explicitly out of scope (spec.md Non-goals), so the only
// thing this loop waits on is the process lifetime itself.
func (d *Daemon) Run() error {
	d.bootLog.Printf("ridgedb starting (PID %d, backend %s)", os.Getpid(), d.cfg.Backend)

	if d.pidFile != "" {
		if dir := filepath.Dir(d.pidFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating pid file directory: %w", err)
			}
		}
		if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("writing pid file: %w", err)
		}
		defer func() { _ = os.Remove(d.pidFile) }()
	}

	d.log.Info("ridgedb ready: no front end is wired (spec non-goal); store API is live in-process")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.log.Info("received signal %v, shutting down", sig)
	case <-d.ctx.Done():
		d.log.Info("context cancelled, shutting down")
	}

	return d.shutdown()
}

func (d *Daemon) shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil
	}
	d.stopped = true

	if err := d.kv.Close(); err != nil {
		d.log.Warn("error closing kv backend: %v", err)
	}
	d.log.Info("ridgedb stopped")
	return nil
}

// Stop requests graceful shutdown; Run's goroutine observes d.ctx.Done().
func (d *Daemon) Stop() {
	d.cancel()
}

// IsRunning checks whether a PID file at path names a live process,
// matching the teacher's own daemon.IsRunning probe.
func IsRunning(pidFile string) (bool, int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0, nil
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(pidFile)
		return false, 0, nil
	}
	return true, pid, nil
}
