// Package app wires configuration into a ready-to-use evaluation pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/zhenghchen/calhacks2025/src/agents/analysis"
	"github.com/zhenghchen/calhacks2025/src/agents/verification"
	"github.com/zhenghchen/calhacks2025/src/ai/core"
	_ "github.com/zhenghchen/calhacks2025/src/ai/providers"
	"github.com/zhenghchen/calhacks2025/src/config"
	"github.com/zhenghchen/calhacks2025/src/data"
	"github.com/zhenghchen/calhacks2025/src/extraction"
	"github.com/zhenghchen/calhacks2025/src/logging"
	"github.com/zhenghchen/calhacks2025/src/mcp"
	"github.com/zhenghchen/calhacks2025/src/orchestrator"
	"github.com/zhenghchen/calhacks2025/src/search"
)

// ServerInfo identifies the search tool provider during the handshake.
var ServerInfo = mcp.Implementation{Name: "web-search", Version: "1.0.0"}

// App holds the long-lived components of one process.
type App struct {
	Config       config.Config
	Orchestrator *orchestrator.Orchestrator
	Verifier     *verification.Agent
	// Decisions is nil when no database is configured.
	Decisions *data.Decisions

	closers []func() error
}

// LoadConfig resolves configuration, consulting the settings table when a
// MySQL DSN is available. The returned db is nil without a DSN.
func LoadConfig(log logging.Logger) (config.Config, *gorm.DB, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return config.Config{}, nil, err
	}
	if cfg.MySQLDSN == "" {
		return cfg, nil, nil
	}

	db, err := data.ConnectMySQL(cfg.MySQLDSN)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("connect mysql: %w", err)
	}
	if err := data.Migrate(db); err != nil {
		return config.Config{}, nil, fmt.Errorf("migrate: %w", err)
	}
	settings, err := data.LoadSettings(db)
	if err != nil {
		log.Warnf("settings table unavailable, using env and file only: %v", err)
		return cfg, db, nil
	}
	cfg, err = config.Load(settings)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, db, nil
}

// New builds the pipeline. db may be nil.
func New(ctx context.Context, cfg config.Config, db *gorm.DB, log logging.Logger) (*App, error) {
	log = logging.OrNop(log)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model, err := core.NewClient(core.FactoryConfig{
		Provider: cfg.Provider,
		APIKey:   cfg.ModelAPIKey,
		Model:    cfg.Model,
		Timeout:  cfg.PerCallTimeout,
		Retries:  cfg.ModelRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("model client: %w", err)
	}

	a := &App{Config: cfg}

	transport, err := a.toolTransport(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	extractor := extraction.NewClient(model, cfg.Model, cfg.PerCallTimeout)
	a.Verifier = verification.New(model, verification.MCPSessions(transport, logging.Child(log, "mcp")), verification.Config{
		Model:          cfg.VerificationModel,
		MaxToolRounds:  cfg.MaxToolRounds,
		PerCallTimeout: cfg.PerCallTimeout,
		Deadline:       cfg.VerificationDeadline,
	}, logging.Child(log, "verification"))

	a.Orchestrator = orchestrator.New(
		analysis.NewQuantitative(extractor, logging.Child(log, "quantitative")),
		analysis.NewQualitative(extractor, logging.Child(log, "qualitative")),
		analysis.NewStrategic(extractor, logging.Child(log, "strategic")),
		a.Verifier,
		logging.Child(log, "orchestrator"),
	)

	if db != nil {
		a.Decisions = data.NewDecisions(db)
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
	}
	return a, nil
}

func (a *App) toolTransport(ctx context.Context, cfg config.Config, log logging.Logger) (mcp.Transport, error) {
	if cfg.ToolTransport == config.TransportCommand {
		return &mcp.CommandTransport{
			Command: cfg.ToolCommand,
			Args:    cfg.ToolArgs,
			Env:     cfg.SearchEnv(),
		}, nil
	}

	searcher, closeFn, err := NewSearcher(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeFn)
	server, err := NewToolServer(searcher, log)
	if err != nil {
		return nil, err
	}
	return &mcp.InProcessTransport{Server: server}, nil
}

// Close releases database and cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewSearcher builds the Google searcher, fronted by a Redis cache when
// REDIS_URL is set. An unreachable Redis is logged and skipped.
func NewSearcher(ctx context.Context, cfg config.Config, log logging.Logger) (search.Searcher, func() error, error) {
	log = logging.OrNop(log)
	var searcher search.Searcher = search.NewGoogleSearcher(search.GoogleConfig{
		APIKey:   cfg.SearchAPIKey,
		EngineID: cfg.SearchEngineID,
		Timeout:  cfg.PerCallTimeout,
	})
	noop := func() error { return nil }
	if cfg.RedisURL == "" {
		return searcher, noop, nil
	}

	rdb, err := data.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Warnf("search cache disabled: %v", err)
		return searcher, noop, nil
	}
	return search.NewCachedSearcher(searcher, rdb, cfg.SearchCacheTTL, logging.Child(log, "cache")), rdb.Close, nil
}

// NewToolServer exposes web_search over the tool protocol.
func NewToolServer(searcher search.Searcher, log logging.Logger) (*mcp.Server, error) {
	server := mcp.NewServer(ServerInfo, logging.Child(logging.OrNop(log), "tools"))
	if err := search.Register(server, searcher, log); err != nil {
		return nil, err
	}
	return server, nil
}
