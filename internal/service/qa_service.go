package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"pdfchat/internal/domain"
	"pdfchat/internal/history"
	"pdfchat/internal/lexical"
	"pdfchat/internal/prompt"
	"pdfchat/internal/vectorstore"
)

// QAService owns the active index and the conversation log.
// Ingests are serialised; questions run concurrently against whichever index is active when they start.
type QAService struct {
	loader    domain.Loader
	chunker   domain.Chunker
	embedder  domain.Embedder
	store     domain.VectorStore
	generator domain.Generator
	prompts   *prompt.Builder
	history   *history.Log
	search    domain.SearchOptions
	log       *slog.Logger

	ingestMu sync.Mutex
	mu       sync.RWMutex
	active   *snapshot
}

// snapshot pairs an index with the embedder fitted to its corpus.
type snapshot struct {
	index    domain.Index
	embedder domain.Embedder
	source   string
	searches sync.WaitGroup
}

// Dependencies groups the pipeline stages a QAService is assembled from.
type Dependencies struct {
	Loader    domain.Loader
	Chunker   domain.Chunker
	Embedder  domain.Embedder
	Store     domain.VectorStore
	Generator domain.Generator
	Prompts   *prompt.Builder
	History   *history.Log
	Search    domain.SearchOptions
	Logger    *slog.Logger
}

func NewQAService(deps Dependencies) *QAService {
	if deps.Prompts == nil {
		deps.Prompts = prompt.New(false)
	}
	if deps.History == nil {
		deps.History = history.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &QAService{
		loader:    deps.Loader,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		store:     deps.Store,
		generator: deps.Generator,
		prompts:   deps.Prompts,
		history:   deps.History,
		search:    vectorstore.Normalize(deps.Search),
		log:       deps.Logger,
	}
}

// IngestStats describes a completed ingest.
type IngestStats struct {
	Source    string
	Pages     int
	Chunks    int
	Dimension int
	Elapsed   time.Duration
}

// Ingest indexes the file at path and makes it the only searchable document.
// On any error the previously active index stays in place.
func (s *QAService) Ingest(ctx context.Context, path string) (IngestStats, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	start := time.Now()

	docs, err := s.loader.Load(ctx, path)
	if err != nil {
		return IngestStats{}, fmt.Errorf("load %s: %w", path, err)
	}
	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := s.chunker.Chunk(d)
		if err != nil {
			return IngestStats{}, fmt.Errorf("chunk %s: %w", d.ID, err)
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return IngestStats{}, fmt.Errorf("chunk %s: %w", path, domain.ErrEmptyDocument)
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].Index = i
		texts[i] = chunks[i].Text
	}
	s.log.Debug("chunked document", "source", path, "pages", len(docs), "chunks", len(chunks))

	fitted, err := s.embedder.Prepare(texts)
	if err != nil {
		return IngestStats{}, fmt.Errorf("prepare %s embedder: %w", s.embedder.Name(), err)
	}
	vectors, err := fitted.Embed(ctx, texts)
	if err != nil {
		return IngestStats{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return IngestStats{}, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	index, err := s.store.Build(ctx, chunks, vectors)
	if err != nil {
		return IngestStats{}, fmt.Errorf("build %s index: %w", s.store.Name(), err)
	}

	next := &snapshot{index: index, embedder: fitted, source: path}
	s.mu.Lock()
	prev := s.active
	s.active = next
	s.mu.Unlock()

	if prev != nil {
		prev.searches.Wait()
		if err := prev.index.Close(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("close previous index", "source", prev.source, "err", err)
		}
	}

	stats := IngestStats{
		Source:  path,
		Pages:   len(docs),
		Chunks:  len(chunks),
		Elapsed: time.Since(start),
	}
	if len(vectors) > 0 {
		stats.Dimension = len(vectors[0])
	}
	s.log.Info("document indexed",
		"source", stats.Source,
		"pages", stats.Pages,
		"chunks", stats.Chunks,
		"dimension", stats.Dimension,
		"embedder", fitted.Name(),
		"store", s.store.Name(),
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}

// Ask answers question from the active document and records the exchange.
func (s *QAService) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.ErrEmptyQuestion
	}

	results, err := s.retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	chunks := make([]domain.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}

	turns := s.history.Turns()
	answer, err := s.generator.Generate(ctx, domain.GenerateRequest{
		Prompt:   s.prompts.Build(question, chunks, turns),
		Question: question,
		Context:  chunks,
		History:  turns,
	})
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", s.generator.Name(), err)
	}
	s.history.Append(question, answer)
	s.log.Debug("answered", "context_chunks", len(chunks), "history_turns", len(turns))
	return answer, nil
}

// History returns the conversation so far.
func (s *QAService) History() []domain.Turn { return s.history.Turns() }

// Ready reports whether a document has been indexed.
func (s *QAService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil
}

func (s *QAService) retrieve(ctx context.Context, question string) ([]domain.SearchResult, error) {
	s.mu.RLock()
	snap := s.active
	if snap != nil {
		snap.searches.Add(1)
	}
	s.mu.RUnlock()
	if snap == nil {
		return nil, domain.ErrNoDocument
	}
	defer snap.searches.Done()

	vecs, err := snap.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, errors.New("embed question: no vector returned")
	}
	// Out-of-vocabulary questions embed to zero; rank by keyword overlap instead.
	if vectorstore.IsZero(vecs[0]) {
		return lexicalSearch(snap.index.Chunks(), question, s.search.K), nil
	}
	results, err := snap.index.Search(ctx, vecs[0], s.search)
	if err != nil {
		return nil, fmt.Errorf("search %s index: %w", s.store.Name(), err)
	}
	allZero := true
	for _, r := range results {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		return lexicalSearch(snap.index.Chunks(), question, s.search.K), nil
	}
	return results, nil
}

func lexicalSearch(chunks []domain.Chunk, query string, topK int) []domain.SearchResult {
	qset := lexical.TokenSet(query)
	scores := make([]float64, len(chunks))
	for i, ch := range chunks {
		scores[i] = lexical.Ochiai(qset, ch.Text)
	}
	top := vectorstore.TopK(scores, topK)
	out := make([]domain.SearchResult, 0, len(top))
	for _, i := range top {
		out = append(out, domain.SearchResult{Chunk: chunks[i], Score: scores[i]})
	}
	return out
}
