package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parley-ai/parley/internal/analysis"
	"github.com/parley-ai/parley/internal/bus"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/history"
	"github.com/parley-ai/parley/internal/identity"
	"github.com/parley-ai/parley/internal/pipeline"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/registry"
	"github.com/parley-ai/parley/internal/store"
	"github.com/parley-ai/parley/internal/stream"
)

// app bundles the wired components behind each command.
type app struct {
	cfg      *config.Config
	store    *store.Store
	dir      *identity.Directory
	resolver *identity.Resolver
	registry *registry.Registry
	events   *bus.EventBus
	analysis *analysis.Pipeline
	pipeline *pipeline.Pipeline
}

// newApp loads config, opens the store, and wires the full pipeline.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Paths.DataDir != "" {
		if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
			return nil, err
		}
	}
	dbPath := cfg.Paths.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Paths.DataDir, "parley.db")
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	dir := identity.NewDirectory(st)
	if err := dir.Load(); err != nil {
		st.Close()
		return nil, err
	}
	resolver := identity.NewResolver(dir, cfg.Pipeline.MaxDelegationHops)

	reg := registry.New()
	topics, err := st.ListTopics()
	if err != nil {
		st.Close()
		return nil, err
	}
	for _, t := range topics {
		reg.Register(t.ID, t.ResponderID)
		reg.SetPriority(t.ID, t.Priority)
	}

	events := bus.NewEventBus()
	anl := analysis.New(st, cfg.Analysis.QueueSize)

	prov := provider.NewOpenAIProvider(
		cfg.Provider.APIKey,
		cfg.Provider.APIBase,
		cfg.Model.Name,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
	)

	orch := stream.New(stream.Options{
		Provider:     prov,
		Persister:    st,
		AnalysisSink: analysisSinkOrNil(cfg, anl),
		Events:       events,
		MaxTokens:    cfg.Model.MaxTokens,
		Temperature:  cfg.Model.Temperature,
	})

	pipe := pipeline.New(pipeline.Options{
		Registry:      reg,
		Resolver:      resolver,
		Invoker:       orch,
		History:       history.NewManager(st),
		Persister:     st,
		Events:        events,
		HistoryWindow: cfg.Pipeline.HistoryWindow,
	})

	return &app{
		cfg:      cfg,
		store:    st,
		dir:      dir,
		resolver: resolver,
		registry: reg,
		events:   events,
		analysis: anl,
		pipeline: pipe,
	}, nil
}

func analysisSinkOrNil(cfg *config.Config, anl *analysis.Pipeline) stream.AnalysisSink {
	if !cfg.Analysis.Enabled {
		return nil
	}
	return anl
}

func (a *app) Close() error {
	return a.store.Close()
}
