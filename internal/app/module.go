// Package app wires the configured stores, the engine and the HTTP API into
// one process with a start/stop lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MJE43/mapgame-session-go/internal/api"
	"github.com/MJE43/mapgame-session-go/internal/config"
	"github.com/MJE43/mapgame-session-go/internal/dispatch"
	"github.com/MJE43/mapgame-session-go/internal/engine"
	"github.com/MJE43/mapgame-session-go/internal/store"
)

// Module owns the stores, the engine and the HTTP server.
type Module struct {
	cfg    config.Config
	logger *log.Logger
	output io.Writer

	closers []io.Closer
	sweep   bool

	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	api        *api.Server

	httpServer *http.Server
	addr       net.Addr
	sweeper    *Sweeper
}

type Option func(*Module)

// WithLogOutput sends every component log to w.
func WithLogOutput(w io.Writer) Option {
	return func(m *Module) { m.output = w }
}

// New opens the configured backends but does not start serving.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Module, error) {
	m := &Module{cfg: cfg, output: os.Stdout}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.New(m.output, "[APP] ", log.LstdFlags)

	if err := m.wire(ctx); err != nil {
		m.closeAll()
		return nil, err
	}
	return m, nil
}

func (m *Module) wire(ctx context.Context) error {
	tag, err := m.cfg.LanguageTag()
	if err != nil {
		return err
	}

	var (
		sessions    engine.SessionStore
		definitions engine.DefinitionStore
		pinger      api.Pinger
		sink        engine.ResultSink
		locker      engine.Locker
		apiOpts     = []api.ServerOption{api.WithLogOutput(m.output), api.WithRequestTimeout(m.cfg.RequestTimeout)}
	)

	var fileDefs *store.MemoryDefinitions
	if m.cfg.DefinitionsDir != "" {
		fileDefs, err = store.LoadDirectory(m.cfg.DefinitionsDir, log.New(m.output, "[STORE] ", log.LstdFlags))
		switch {
		case err == nil:
		case m.cfg.SessionBackend == config.BackendSQLite && errors.Is(err, os.ErrNotExist):
			// sqlite keeps previously imported definitions
			m.logger.Printf("definitions_dir_missing dir=%s", m.cfg.DefinitionsDir)
		default:
			return err
		}
	}

	switch m.cfg.SessionBackend {
	case config.BackendSQLite:
		if dir := filepath.Dir(m.cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := store.NewSQLite(m.cfg.SQLitePath)
		if err != nil {
			return err
		}
		m.closers = append(m.closers, db)
		if fileDefs != nil {
			n, err := db.Import(ctx, fileDefs)
			if err != nil {
				return err
			}
			m.logger.Printf("definitions_imported count=%d dir=%s", n, m.cfg.DefinitionsDir)
		}
		sessions, definitions, pinger, sink = db, db, db, db
		m.sweep = true
		apiOpts = append(apiOpts, api.WithDefinitionLister(db), api.WithResultLister(db))

	case config.BackendPostgres:
		pg, err := store.OpenPostgres(ctx, m.cfg.PostgresDSN)
		if err != nil {
			return err
		}
		m.closers = append(m.closers, pg)
		sessions, pinger, sink, locker = pg, pg, pg, pg
		m.sweep = true

	case config.BackendRedis:
		rd := store.NewRedis(m.cfg.RedisAddr, m.cfg.RedisPassword, m.cfg.RedisDB, m.cfg.SessionTTL)
		m.closers = append(m.closers, rd)
		sessions, pinger, locker = rd, rd, rd

	case config.BackendMemory:
		mem := store.NewMemorySessions()
		sessions, pinger = mem, mem
		m.sweep = true

	default:
		return fmt.Errorf("unknown session backend %q", m.cfg.SessionBackend)
	}

	if definitions == nil {
		if fileDefs == nil {
			return fmt.Errorf("backend %s needs a definitions directory", m.cfg.SessionBackend)
		}
		definitions = fileDefs
		apiOpts = append(apiOpts, api.WithDefinitionLister(fileDefs))
	}

	engineOpts := []engine.Option{engine.WithLogger(log.New(m.output, "[ENGINE] ", log.LstdFlags))}
	if sink != nil {
		engineOpts = append(engineOpts, engine.WithResultSink(sink))
	}
	if locker != nil {
		engineOpts = append(engineOpts, engine.WithLocker(locker))
	}
	m.engine = engine.New(definitions, sessions, engineOpts...)

	m.dispatcher, err = dispatch.New(m.engine,
		dispatch.WithLanguage(tag),
		dispatch.WithLogger(log.New(m.output, "[DISPATCH] ", log.LstdFlags)),
	)
	if err != nil {
		return err
	}

	m.api = api.NewServer(m.engine, m.dispatcher, append(apiOpts, api.WithSessionPinger(pinger))...)
	return nil
}

// Start binds the listen address, serves in a goroutine and starts the
// session sweeper. It returns once the socket is bound.
func (m *Module) Start(ctx context.Context) error {
	m.httpServer = &http.Server{
		Handler:           m.api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       m.cfg.RequestTimeout,
		WriteTimeout:      m.cfg.RequestTimeout + 5*time.Second,
	}

	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.cfg.ListenAddr, err)
	}
	m.addr = ln.Addr()
	m.logger.Printf("server_listening addr=%s backend=%s", m.addr, m.cfg.SessionBackend)

	go func() {
		if err := m.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Printf("server_failed error=%v", err)
		}
	}()

	if m.sweep {
		m.sweeper = NewSweeper(m.engine, m.cfg.SessionTTL, m.logger)
		m.sweeper.Start(ctx, m.cfg.SweepInterval)
	}
	return nil
}

// Addr is the bound listen address, valid after Start.
func (m *Module) Addr() string {
	if m.addr == nil {
		return ""
	}
	return m.addr.String()
}

// Shutdown stops the sweeper and the HTTP server, then closes the stores.
func (m *Module) Shutdown(ctx context.Context, reason string) error {
	if m.sweeper != nil {
		m.sweeper.Stop()
	}
	var errs []error
	if m.httpServer != nil {
		if err := m.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	m.api.LogShutdown(reason)
	errs = append(errs, m.closeAll())
	return errors.Join(errs...)
}

func (m *Module) closeAll() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
