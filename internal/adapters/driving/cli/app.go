package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/notedex/notedex/internal/adapters/driven/config/file"
	"github.com/notedex/notedex/internal/adapters/driven/embedding/ollama"
	"github.com/notedex/notedex/internal/adapters/driven/embedding/openai"
	"github.com/notedex/notedex/internal/adapters/driven/storage/sqlite"
	"github.com/notedex/notedex/internal/chunker"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/core/services"
	"github.com/notedex/notedex/internal/index/lexical"
	"github.com/notedex/notedex/internal/index/vector"
	"github.com/notedex/notedex/internal/logger"
	"github.com/notedex/notedex/internal/normalisers"
	"github.com/notedex/notedex/internal/normalisers/html"
	"github.com/notedex/notedex/internal/normalisers/markdown"
	"github.com/notedex/notedex/internal/remote"
)

// app holds the wired adapters that need closing on exit.
type app struct {
	store    *sqlite.Store
	embedder driven.EmbeddingService
}

// initApp loads settings, opens the cache and wires the services into
// the package-level command handles.
func initApp() (*app, error) {
	settingsStore, err := file.NewSettingsStore("")
	if err != nil {
		return nil, err
	}
	settings, err := settingsStore.Load()
	if err != nil {
		return nil, err
	}
	appSettings = settings

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.NewStore(filepath.Join(home, ".notedex"))
	if err != nil {
		return nil, err
	}

	limiter := remote.NewRateLimiter(settings.RequestsPerSecond, settings.RequestBurst)
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: os.Getenv("NOTEDEX_TOKEN"),
	})
	remoteClient := remote.NewClient(settings.RemoteBaseURL, tokenSource, limiter)

	embedder := pickEmbedder()

	lex := lexical.NewIndex()
	vec := vector.NewIndex()
	registry := newRegistry()
	ck := chunker.New(
		chunker.WithChunkSize(settings.ChunkSize),
		chunker.WithOverlap(settings.ChunkOverlap),
	)

	engine := services.NewSyncEngine(
		remoteClient, store, registry, ck, lex, vec, embedder, settings,
	)
	// The in-memory indexes restart empty; repopulate from the cache.
	if err := engine.RebuildIndexes(context.Background()); err != nil {
		logger.Warn("Failed to rebuild indexes from cache: %v", err)
	}

	searchService = services.NewSearchPlanner(
		store, lex, vec, embedder, remoteClient, registry, settings,
	)
	syncOrchestrator = engine
	documentService = services.NewDocumentService(store)

	return &app{store: store, embedder: embedder}, nil
}

// newRegistry builds the normaliser registry with every supported
// payload shape registered.
func newRegistry() *normalisers.Registry {
	registry := normalisers.NewRegistry()
	registry.Register(html.New())
	registry.Register(markdown.New())
	return registry
}

// pickEmbedder selects the embedding provider: OpenAI when an API key
// is in the environment, a local Ollama otherwise. An unreachable
// provider degrades search to lexical-only rather than failing startup.
func pickEmbedder() driven.EmbeddingService {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		svc, err := openai.NewEmbeddingService(openai.Config{APIKey: key})
		if err == nil {
			return svc
		}
		logger.Warn("OpenAI embedding unavailable: %v", err)
	}

	svc := ollama.NewEmbeddingService(ollama.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		logger.Warn("Embedding service unreachable, semantic search disabled: %v", err)
		return nil
	}
	return svc
}

func (a *app) Close() {
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			logger.Warn("Failed to close embedding service: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("Failed to close cache store: %v", err)
		}
	}
}
