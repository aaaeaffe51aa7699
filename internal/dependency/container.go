// Package dependency wires the confidant service graph using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/dig"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/config"
	"github.com/crystaldolphin/confidant/internal/delivery"
	"github.com/crystaldolphin/confidant/internal/engine"
	"github.com/crystaldolphin/confidant/internal/httpapi"
	"github.com/crystaldolphin/confidant/internal/media"
	"github.com/crystaldolphin/confidant/internal/metrics"
	"github.com/crystaldolphin/confidant/internal/narrator"
	"github.com/crystaldolphin/confidant/internal/persona"
	"github.com/crystaldolphin/confidant/internal/providers"
	"github.com/crystaldolphin/confidant/internal/reengage"
	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
	"github.com/crystaldolphin/confidant/internal/storage"
)

// ChannelFactory builds the transport once the bus exists.
type ChannelFactory func(b bus.Bus) schema.Channel

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	backend   storage.Backend
	store     *session.Store
	bus       *bus.MessageBus
	channel   schema.Channel
	generator schema.Generator
	sched     *reengage.Scheduler
	engine    *engine.Engine
	library   *persona.Library
	reloader  *persona.Reloader
	metrics   *metrics.Metrics
	http      *httpapi.Server
}

func (c *Container) Store() *session.Store          { return c.store }
func (c *Container) MessageBus() *bus.MessageBus    { return c.bus }
func (c *Container) Channel() schema.Channel        { return c.channel }
func (c *Container) Generator() schema.Generator    { return c.generator }
func (c *Container) Scheduler() *reengage.Scheduler { return c.sched }
func (c *Container) Engine() *engine.Engine         { return c.engine }
func (c *Container) Persona() *persona.Library      { return c.library }
func (c *Container) Reloader() *persona.Reloader    { return c.reloader }
func (c *Container) Metrics() *metrics.Metrics      { return c.metrics }
func (c *Container) HTTP() *httpapi.Server          { return c.http }

// Close releases the storage backend.
func (c *Container) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// New builds and wires every service from cfg.
func New(ctx context.Context, cfg *config.Config, newChannel ChannelFactory) (*Container, error) {
	d := dig.New()

	ctors := []any{
		func() context.Context { return ctx },
		func() *config.Config { return cfg },
		func() ChannelFactory { return newChannel },
		newBackend,
		newStore,
		newMetrics,
		newMessageBus,
		newChannelFromFactory,
		newGenerator,
		newScheduler,
		newPacer,
		newLibrary,
		newReloader,
		newNarrator,
		newEngine,
		newHTTPServer,
	}
	for _, p := range ctors {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		backend storage.Backend,
		store *session.Store,
		b *bus.MessageBus,
		ch schema.Channel,
		gen schema.Generator,
		sched *reengage.Scheduler,
		eng *engine.Engine,
		lib *persona.Library,
		reloader *persona.Reloader,
		m *metrics.Metrics,
		srv *httpapi.Server,
	) {
		result = &Container{
			backend:   backend,
			store:     store,
			bus:       b,
			channel:   ch,
			generator: gen,
			sched:     sched,
			engine:    eng,
			library:   lib,
			reloader:  reloader,
			metrics:   m,
			http:      srv,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("dependency: %w", dig.RootCause(err))
	}
	return result, nil
}

func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	return storage.Open(ctx, storage.Options{
		Backend:    cfg.Storage.Backend,
		Dir:        cfg.WorkspaceFile(cfg.Storage.Dir),
		SQLitePath: cfg.WorkspaceFile(cfg.Storage.SQLite),
		Redis: storage.RedisOptions{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		},
	})
}

func newStore(cfg *config.Config, backend storage.Backend) *session.Store {
	return session.NewStore(backend, session.Options{
		TrimAbove:    cfg.Session.TrimAbove,
		TrimTo:       cfg.Session.TrimTo,
		DefaultModel: cfg.Agents.Defaults.Model,
	})
}

func newMetrics(store *session.Store) *metrics.Metrics {
	return metrics.New(store.Count)
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(100)
}

func newChannelFromFactory(f ChannelFactory, b *bus.MessageBus) (schema.Channel, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: no transport", schema.ErrConfig)
	}
	return f(b), nil
}

func newGenerator(ctx context.Context, cfg *config.Config) (schema.Generator, error) {
	model := cfg.Agents.Defaults.Model
	result := cfg.MatchProvider(model)
	if result.Provider == nil {
		return nil, fmt.Errorf("%w: no API key configured for model %q; edit %s", schema.ErrConfig, model, config.ConfigPath())
	}
	return providers.New(ctx, providers.Params{
		APIKey:       result.Provider.APIKey,
		APIBase:      cfg.GetAPIBase(model),
		DefaultModel: model,
		ProviderName: result.Name,
	})
}

func newScheduler(cfg *config.Config, m *metrics.Metrics) *reengage.Scheduler {
	rc := cfg.Reengagement
	ledger := ""
	if rc.PersistDeadlines {
		ledger = cfg.WorkspaceFile(rc.LedgerPath)
	}
	return reengage.New(reengage.Options{
		Windows: reengage.Windows{
			ShortMin: rc.ShortMin.Std(),
			ShortMax: rc.ShortMax.Std(),
			LongMin:  rc.LongMin.Std(),
			LongMax:  rc.LongMax.Std(),
		},
		LedgerPath: ledger,
		Observe:    m.Reengagement,
	}, nil)
}

func newPacer(cfg *config.Config, ch schema.Channel, m *metrics.Metrics) *delivery.Pacer {
	return delivery.NewPacer(ch, delivery.Config{
		PerChar:   cfg.Delivery.PerCharDelay.Std(),
		Heartbeat: cfg.Delivery.Heartbeat.Std(),
		Observe:   m.Chunk,
	})
}

func newLibrary(cfg *config.Config) (*persona.Library, error) {
	a := cfg.Agents.Defaults
	lib := persona.NewLibrary(persona.Paths{
		PromptsDir:         cfg.WorkspaceFile(a.PromptsDir),
		NarratorPromptsDir: cfg.WorkspaceFile(a.NarratorPromptsDir),
		DatesFile:          cfg.WorkspaceFile(a.KnowledgeFile),
		WelcomeFile:        cfg.WorkspaceFile(a.WelcomeFile),
	})
	if err := lib.Load(); err != nil {
		return nil, err
	}
	return lib, nil
}

func newReloader(cfg *config.Config, lib *persona.Library) (*persona.Reloader, error) {
	return persona.NewReloader(lib, cfg.Agents.Defaults.KnowledgeReloadCron)
}

func newNarrator(cfg *config.Config, gen schema.Generator, lib *persona.Library) *narrator.Augmenter {
	return narrator.New(gen, lib, narrator.Config{
		Cadence:      cfg.Session.NarratorCadence,
		UserLabel:    cfg.Agents.Defaults.UserName,
		PersonaLabel: cfg.Agents.Defaults.PersonaName,
	})
}

type engineDeps struct {
	dig.In

	Config    *config.Config
	Bus       *bus.MessageBus
	Store     *session.Store
	Scheduler *reengage.Scheduler
	Channel   schema.Channel
	Pacer     *delivery.Pacer
	Generator schema.Generator
	Narrator  *narrator.Augmenter
	Persona   *persona.Library
	Metrics   *metrics.Metrics
}

func newEngine(in engineDeps) *engine.Engine {
	cfg := in.Config
	var frames schema.FrameDecoder
	if ff := media.NewFFmpeg(""); ff.Available() {
		frames = ff
	} else {
		slog.Warn("dependency: ffmpeg not found, animations disabled")
	}

	return engine.New(engine.Deps{
		Bus:       in.Bus,
		Store:     in.Store,
		Scheduler: in.Scheduler,
		Transport: in.Channel,
		Pacer:     in.Pacer,
		Generator: in.Generator,
		Narrator:  in.Narrator,
		Persona:   in.Persona,
		Frames:    frames,
		Metrics:   in.Metrics,
	}, engine.Config{
		Models:        cfg.Agents.Defaults.Models,
		ShowStats:     cfg.Agents.Defaults.ShowStats,
		SpamThreshold: cfg.Session.SpamThreshold,
		Reengagement:  cfg.Reengagement.Enabled,
		WebAppURL:     cfg.Gateway.WebAppURL,
		Limits: engine.Limits{
			Bio:        cfg.Limits.Bio,
			Character:  cfg.Limits.Character,
			Narrator:   cfg.Limits.Narrator,
			ImageBytes: cfg.Limits.ImageBytes,
			VoiceBytes: cfg.Limits.VoiceBytes,
		},
	})
}

func newHTTPServer(cfg *config.Config, eng *engine.Engine, m *metrics.Metrics) *httpapi.Server {
	return httpapi.New(httpapi.Config{Host: cfg.Gateway.Host, Port: cfg.Gateway.Port}, eng, m.Handler())
}
