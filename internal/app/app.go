// Package app wires the services shared by the HTTP server and the radar CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/findora/tool-radar/internal/api"
	"github.com/findora/tool-radar/internal/assistant"
	"github.com/findora/tool-radar/internal/catalog"
	"github.com/findora/tool-radar/internal/config"
	"github.com/findora/tool-radar/internal/dataset"
	"github.com/findora/tool-radar/internal/discovery"
	"github.com/findora/tool-radar/internal/enrichment"
	"github.com/findora/tool-radar/internal/llm"
	"github.com/findora/tool-radar/internal/monitoring"
	"github.com/findora/tool-radar/internal/notifications"
	"github.com/findora/tool-radar/internal/storage"
	"github.com/sirupsen/logrus"
)

const fetchTimeout = 20 * time.Second

// App holds every long-lived service
type App struct {
	Config     *config.Config
	Store      *catalog.Store
	Dataset    *dataset.Dataset
	Discovery  *discovery.Service
	Sessions   *discovery.SessionRegistry
	Chat       *assistant.ChatManager
	TaskSearch *assistant.TaskSearch
	Workflows  *assistant.WorkflowGenerator
	Pipeline   *enrichment.Pipeline
	Monitoring *monitoring.Service

	closers []io.Closer
}

// SetupLogging applies the logrus configuration shared by all binaries
func SetupLogging(cfg *config.Config) {
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

// New builds the services described by cfg. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	backend, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = catalog.NewStore(backend)

	a.Dataset, err = dataset.Load()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load static dataset: %w", err)
	}
	a.Discovery = discovery.NewService(a.Store, a.Dataset, cfg.QueryTimeout)
	a.Sessions = discovery.NewSessionRegistry(cfg.SessionTTL)

	// interface values stay nil when Gemini is not configured
	var (
		gen     llm.Generator
		chatter llm.Chatter
	)
	if cfg.LLMEnabled() {
		client, err := llm.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			a.Close()
			return nil, err
		}
		gen, chatter = client, client
		logrus.Infof("Assistant features enabled with model %s", client.Model())
	} else {
		logrus.Info("GEMINI_API_KEY not set, assistant features use keyword fallbacks")
	}

	a.Chat = assistant.NewChatManager(chatter, cfg.SessionTTL)
	a.TaskSearch = assistant.NewTaskSearch(gen)
	a.Workflows = assistant.NewWorkflowGenerator(gen)

	fetcher := enrichment.NewFetcher(cfg.ScraperMode, fetchTimeout)
	if c, ok := fetcher.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.Pipeline = enrichment.NewPipeline(
		a.Store,
		enrichment.NewScraper(fetcher),
		enrichment.NewClassifier(gen),
		enrichment.NewTrustAnalyzer(gen),
		cfg.EnrichmentConcurrency,
	)

	a.Monitoring = monitoring.NewService(cfg, a.Store, notifications.NewService(cfg))

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (storage.StorageInterface, error) {
	switch a.Config.StorageBackend {
	case "azure":
		s, err := storage.NewAzureStorage(ctx, a.Config.StorageAccount, a.Config.StorageContainer)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize azure storage: %w", err)
		}
		logrus.Infof("Using Azure blob container %s", a.Config.StorageContainer)
		return s, nil
	case "sqlite":
		s, err := storage.NewSQLiteStorage(ctx, a.Config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		a.closers = append(a.closers, s)
		return s, nil
	default:
		logrus.Warn("Using in-memory storage, data is lost on exit")
		return storage.NewMemoryStorage(), nil
	}
}

// APIServer returns the HTTP API over the app's services
func (a *App) APIServer() *api.Server {
	return api.NewServer(api.Deps{
		Discovery:    a.Discovery,
		Sessions:     a.Sessions,
		Chat:         a.Chat,
		TaskSearch:   a.TaskSearch,
		Workflows:    a.Workflows,
		Jobs:         a.Pipeline,
		Monitor:      a.Monitoring,
		AdminKey:     a.Config.AdminAPIKey,
		DefaultLimit: a.Config.DefaultLimit,
	})
}

// Close releases storage handles and the headless browser, newest first
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
