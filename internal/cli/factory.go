package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/deprebuddy"
	"github.com/aretw0/deprebuddy/internal/config"
	"github.com/aretw0/deprebuddy/pkg/adapters/file"
	"github.com/aretw0/deprebuddy/pkg/adapters/memory"
	"github.com/aretw0/deprebuddy/pkg/adapters/redis"
	"github.com/aretw0/deprebuddy/pkg/adapters/sqlite"
	"github.com/aretw0/deprebuddy/pkg/agent"
	"github.com/aretw0/deprebuddy/pkg/agent/gemini"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/observability"
	"github.com/aretw0/deprebuddy/pkg/persistence/middleware"
	"github.com/aretw0/deprebuddy/pkg/ports"
	"github.com/aretw0/deprebuddy/pkg/session"
)

// Services is the wired application graph shared by every command.
type Services struct {
	Engine  *deprebuddy.Engine
	Store   ports.SessionStore
	Metrics *observability.Metrics
	Logger  *slog.Logger

	closers []io.Closer
}

// Close releases backend connections.
func (s *Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildOptions tweaks the graph for a specific command.
type BuildOptions struct {
	// Generator overrides the model client (used in tests).
	Generator ports.Generator
	// Hooks are merged after the metrics hooks.
	Hooks domain.LifecycleHooks
}

// Build wires store, persistence middleware, locker, dispatcher and engine from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Services, error) {
	svc := &Services{
		Metrics: observability.NewMetrics(),
		Logger:  logger,
	}

	store, locker, err := svc.openStore(ctx, cfg)
	if err != nil {
		svc.Close()
		return nil, err
	}

	var mws []middleware.Middleware
	if cfg.Store.Redact {
		mws = append(mws, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
	}
	if cfg.Store.SecretKey != "" {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey: middleware.DeriveKey(cfg.Store.SecretKey),
		}))
	}
	svc.Store = middleware.Chain(store, mws...)

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}

	dispatcher, err := newDispatcher(cfg, logger, opts.Generator)
	if err != nil {
		svc.Close()
		return nil, err
	}

	svc.Engine = deprebuddy.New(
		deprebuddy.WithSessionManager(session.NewManager(svc.Store, sessionOpts...)),
		deprebuddy.WithDispatcher(dispatcher),
		deprebuddy.WithLifecycleHooks(mergeHooks(svc.Metrics.Hooks(logger), opts.Hooks)),
		deprebuddy.WithLogger(logger),
		deprebuddy.WithMaxMessageSize(cfg.Server.MaxMessageSize),
	)
	return svc, nil
}

func (s *Services) openStore(ctx context.Context, cfg *config.Config) (ports.SessionStore, ports.DistributedLocker, error) {
	switch cfg.Store.Type {
	case "redis":
		rs := redis.New(cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB,
			redis.WithTTL(cfg.Store.TTL),
			redis.WithPrefix(cfg.Store.Redis.Prefix),
		)
		s.closers = append(s.closers, rs)
		if err := rs.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Store.Redis.Addr, err)
		}
		s.Logger.Info("Session store ready", "type", "redis", "addr", cfg.Store.Redis.Addr)
		if cfg.Store.Redis.Lock {
			return rs, redis.NewLocker(rs.Client(), cfg.Store.Redis.Prefix), nil
		}
		return rs, nil, nil
	case "file":
		s.Logger.Info("Session store ready", "type", "file", "dir", cfg.Store.File.Dir)
		return file.New(cfg.Store.File.Dir), nil, nil
	case "sqlite":
		ss, err := sqlite.New(cfg.Store.SQLite.Path, sqlite.WithTTL(cfg.Store.TTL))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		s.closers = append(s.closers, ss)
		s.Logger.Info("Session store ready", "type", "sqlite", "path", cfg.Store.SQLite.Path)
		return ss, nil, nil
	default:
		s.Logger.Info("Session store ready", "type", "memory", "ttl", cfg.Store.TTL)
		return memory.NewStore(memory.WithTTL(cfg.Store.TTL)), nil, nil
	}
}

func newDispatcher(cfg *config.Config, logger *slog.Logger, gen ports.Generator) (*agent.Dispatcher, error) {
	if gen == nil {
		if cfg.Agent.Offline {
			logger.Warn("Agent running offline, replies are scripted")
			gen = agent.StaticGenerator{}
		} else {
			clientOpts := []gemini.ClientOption{gemini.WithModel(cfg.Agent.Model)}
			if cfg.Agent.BaseURL != "" {
				clientOpts = append(clientOpts, gemini.WithBaseURL(cfg.Agent.BaseURL))
			}
			gen = gemini.NewClient(cfg.Agent.APIKey, clientOpts...)
		}
	}

	policy := agent.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.Agent.MaxAttempts
	if cfg.Agent.BaseDelay > 0 {
		policy.BaseDelay = cfg.Agent.BaseDelay
	}
	if cfg.Agent.MaxDelay > 0 {
		policy.MaxDelay = cfg.Agent.MaxDelay
	}

	opts := []agent.Option{
		agent.WithRetryPolicy(policy),
		agent.WithHistoryTokens(cfg.Agent.HistoryTokens),
		agent.WithLogger(logger),
	}
	if cfg.Agent.Instructions != "" {
		in, err := agent.LoadInstructions(cfg.Agent.Instructions)
		if err != nil {
			return nil, fmt.Errorf("failed to load instructions: %w", err)
		}
		opts = append(opts, agent.WithInstructions(in))
	}
	return agent.NewDispatcher(gen, opts...), nil
}

// mergeHooks calls a then b for every event either defines.
func mergeHooks(a, b domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter:         chain(a.OnStageEnter, b.OnStageEnter),
		OnCrisis:             chain(a.OnCrisis, b.OnCrisis),
		OnAssessmentComplete: chain(a.OnAssessmentComplete, b.OnAssessmentComplete),
		OnDispatch:           chain(a.OnDispatch, b.OnDispatch),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
