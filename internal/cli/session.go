package cli

import (
	"context"
	"time"

	"github.com/roach88/taskrail/internal/cache"
	"github.com/roach88/taskrail/internal/engine"
	"github.com/roach88/taskrail/internal/pipeline"
	"github.com/roach88/taskrail/internal/policy"
	"github.com/roach88/taskrail/internal/record"
	"github.com/roach88/taskrail/internal/store"
)

// Test seams. Production uses real ids and the wall clock; tests swap
// in sequential ids and a fixed clock for deterministic output.
var (
	sessionIDs   pipeline.IDGenerator = engine.UUIDv7Generator{}
	sessionClock                      = time.Now
)

// session wires one CLI invocation: store, guard, sync engine, and the
// reactive cache. The engine's Run loop starts on a background
// goroutine and drains on Close.
type session struct {
	cfg    *Config
	store  *store.Store
	engine *engine.Engine
	cache  *cache.Cache

	cancel context.CancelFunc
	done   chan error
}

func openSession(opts *RootOptions) (*session, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}

	pol := policy.Default()
	if cfg.PolicyDir != "" {
		pol, err = policy.Load(cfg.PolicyDir)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load policy", err)
		}
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	guard := policy.NewGuard(pol, sessionClock)
	eng := engine.New(st, guard, sessionIDs,
		engine.WithNow(sessionClock),
		engine.WithRetry(cfg.Retry.Attempts, cfg.Retry.Backoff.Duration),
	)
	ca := cache.New(st, st.Subscribe, cache.WithTTL(cfg.Cache.TTL.Duration))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	return &session{
		cfg:    cfg,
		store:  st,
		engine: eng,
		cache:  ca,
		cancel: cancel,
		done:   done,
	}, nil
}

// Close drains the engine, then tears down the cache and store.
func (s *session) Close() error {
	s.engine.Stop()
	<-s.done
	s.cancel()
	s.cache.Close()
	return s.store.Close()
}

// resolveConfig loads the config file and applies flag overrides.
func resolveConfig(opts *RootOptions) (*Config, error) {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if cfg.Database == "" {
		return nil, NewExitError(ExitCommandError, "no database configured: pass --db or set database in the config file")
	}
	return cfg, nil
}

// openStore opens just the store, for read-only commands that do not
// need the engine.
func openStore(opts *RootOptions) (*store.Store, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return st, nil
}

// actorFromFlags builds the caller identity. An actor id with no role
// defaults to technician; no actor id at all is the unauthenticated
// case the engine rejects on writes.
func actorFromFlags(opts *RootOptions) record.Actor {
	if opts.Actor == "" {
		return record.Actor{}
	}
	role := record.Role(opts.Role)
	if role == "" {
		role = record.RoleTechnician
	}
	return record.Actor{ID: opts.Actor, Role: role}
}

// awaitPending blocks until the mutation reaches a terminal state and
// surfaces the rollback error, if any.
func awaitPending(ctx context.Context, p *engine.Pending) error {
	_, err := p.Wait(ctx)
	return err
}
