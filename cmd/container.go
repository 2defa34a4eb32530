package cmd

import (
	"context"
	"fmt"

	"go.uber.org/dig"

	"skycast/config"
	"skycast/mcp"
	"skycast/model"
	"skycast/provider"
)

// Container holds the client-side services of one command run.
// Callers use the typed getters; they never need to import dig directly.
type Container struct {
	cfg      *config.Config
	provider model.Provider
	manager  *mcp.Manager
	catalog  catalog
}

// catalog is the adapted tool catalog offered to the model.
type catalog []model.FunctionSpec

func (c *Container) Provider() model.Provider { return c.provider }
func (c *Container) Manager() *mcp.Manager { return c.manager }
func (c *Container) Catalog() []model.FunctionSpec { return c.catalog }

// NewContainer connects to every configured capability server and builds the
// provider. withTools=false skips the capability servers.
func NewContainer(ctx context.Context, cfg *config.Config, withTools bool) (*Container, error) {
	d := dig.New()

	provide := []any{
		func() context.Context { return ctx },
		func() *config.Config { return cfg },
		newProvider,
		func(ctx context.Context, cfg *config.Config) (*mcp.Manager, error) {
			if !withTools {
				return mcp.NewManager(), nil
			}
			return connectServers(ctx, cfg)
		},
		newCatalog,
	}
	for _, ctor := range provide {
		if err := d.Provide(ctor); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(p model.Provider, m *mcp.Manager, tools catalog) {
		result = &Container{cfg: cfg, provider: p, manager: m, catalog: tools}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

func newProvider(cfg *config.Config) (model.Provider, error) {
	return provider.NewProvider(provider.Config{
		Type:    provider.MapProviderIDToType(cfg.Model.Provider),
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Model,
		APIKey:  cfg.Model.APIKey,
	})
}

// connectServers opens a session per configured server. A failure closes the
// sessions opened so far.
func connectServers(ctx context.Context, cfg *config.Config) (*mcp.Manager, error) {
	m := mcp.NewManager()
	for _, entry := range cfg.ServerEntries() {
		kind, err := mcp.ParseTransportKind(entry.Transport)
		if err != nil {
			m.Shutdown(context.Background())
			return nil, fmt.Errorf("server %s: %w", entry.ID, err)
		}
		_, err = m.Connect(ctx, mcp.TransportConfig{
			ID:               entry.ID,
			Kind:             kind,
			Command:          entry.Command,
			Args:             entry.Args,
			Env:              entry.Env,
			URL:              entry.URL,
			Headers:          entry.Headers,
			HandshakeTimeout: cfg.Capability.HandshakeTimeout,
		})
		if err != nil {
			m.Shutdown(context.Background())
			return nil, err
		}
	}
	return m, nil
}

func newCatalog(m *mcp.Manager) (catalog, error) {
	specs, err := mcp.AdaptCatalog(m.Tools())
	if err != nil {
		return nil, err
	}
	return catalog(specs), nil
}

// NewOrchestrator starts a fresh conversation over the shared provider and
// sessions.
func (c *Container) NewOrchestrator() *model.Orchestrator {
	return c.NewOrchestratorWith(model.OrchestratorConfig{})
}

// NewOrchestratorWith is NewOrchestrator with callbacks set from base.
func (c *Container) NewOrchestratorWith(base model.OrchestratorConfig) *model.Orchestrator {
	oc := base
	oc.Options = model.StreamOptions{
		Model:           c.cfg.Model.Model,
		MaxOutputTokens: c.cfg.Model.MaxOutputTokens,
	}
	oc.MaxToolRounds = c.cfg.Orchestrator.MaxToolRounds
	oc.ParallelTools = c.cfg.Orchestrator.ParallelTools
	oc.ParallelLimit = c.cfg.Orchestrator.ParallelLimit

	return model.NewOrchestrator(c.provider, c.manager, c.catalog,
		model.NewConversation(c.cfg.Model.SystemPrompt), oc)
}

// ServerIDs lists the connected capability servers.
func (c *Container) ServerIDs() []string {
	var ids []string
	for _, entry := range c.cfg.ServerEntries() {
		if _, ok := c.manager.Session(entry.ID); ok {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

func (c *Container) Close(ctx context.Context) error {
	return c.manager.Shutdown(ctx)
}
