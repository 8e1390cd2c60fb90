package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"pdfchat/internal/chunker"
	"pdfchat/internal/config"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding/gemini"
	"pdfchat/internal/embedding/openai"
	"pdfchat/internal/embedding/tfidf"
	"pdfchat/internal/history"
	"pdfchat/internal/llm"
	"pdfchat/internal/llm/extractive"
	geminillm "pdfchat/internal/llm/gemini"
	openaillm "pdfchat/internal/llm/openai"
	"pdfchat/internal/loader"
	"pdfchat/internal/prompt"
	"pdfchat/internal/service"
	"pdfchat/internal/vectorstore/chromem"
	"pdfchat/internal/vectorstore/memory"
	"pdfchat/internal/vectorstore/qdrant"
)

// App is the assembled question-answering stack plus whatever must be released on exit.
type App struct {
	QA      *service.QAService
	closers []func() error
}

func (a *App) Close(context.Context) error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	app := &App{}

	ch, err := newChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(ctx, cfg.Embedder, app)
	if err != nil {
		return nil, err
	}
	st, err := newStore(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(ctx, cfg.LLM, app)
	if err != nil {
		return nil, err
	}

	app.QA = service.NewQAService(service.Dependencies{
		Loader:    loader.New(),
		Chunker:   ch,
		Embedder:  emb,
		Store:     st,
		Generator: gen,
		Prompts:   prompt.New(cfg.Retrieval.UseHistory),
		History:   history.New(),
		Search: domain.SearchOptions{
			Type:   domain.SearchType(cfg.Retrieval.SearchType),
			K:      cfg.Retrieval.K,
			FetchK: cfg.Retrieval.FetchK,
			Lambda: cfg.Retrieval.LambdaMult,
		},
		Logger: log,
	})
	log.Info("pipeline ready",
		"chunker", cfg.Chunker.Type,
		"embedder", emb.Name(),
		"store", st.Name(),
		"llm", gen.Name(),
		"search", cfg.Retrieval.SearchType,
	)
	return app, nil
}

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "recursive", "":
		return chunker.NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func newEmbedder(ctx context.Context, cfg config.EmbedderConfig, app *App) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.OpenAI.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	case "gemini":
		if cfg.Gemini == nil {
			return nil, errors.New("gemini embedder config missing")
		}
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKeyEnv: cfg.Gemini.APIKeyEnv,
			Model:     cfg.Gemini.Model,
			BatchSize: cfg.Gemini.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder init failed: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newStore(cfg config.VectorStoreConfig) (domain.VectorStore, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStore(), nil
	case "chromem":
		return chromem.NewStore(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Qdrant.APIKeyEnv),
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func newGenerator(ctx context.Context, cfg config.LLMConfig, app *App) (domain.Generator, error) {
	var gen domain.Generator
	switch cfg.Type {
	case "extractive":
		gen = extractive.New(cfg.MaxSentences)
	case "openai", "":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai llm config missing")
		}
		g, err := openaillm.New(openaillm.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.MaxNewTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("openai llm init failed: %w", err)
		}
		gen = g
	case "gemini":
		if cfg.Gemini == nil {
			return nil, errors.New("gemini llm config missing")
		}
		g, err := geminillm.New(ctx, geminillm.Config{
			APIKeyEnv:   cfg.Gemini.APIKeyEnv,
			Model:       cfg.Gemini.Model,
			MaxTokens:   cfg.MaxNewTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini llm init failed: %w", err)
		}
		app.closers = append(app.closers, g.Close)
		gen = g
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
	if cfg.RequestsPerSecond > 0 || cfg.TimeoutSecs > 0 {
		gen = llm.Limit(gen, cfg.RequestsPerSecond, time.Duration(cfg.TimeoutSecs)*time.Second)
	}
	return gen, nil
}
