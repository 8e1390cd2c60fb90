package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/chunker"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding/tfidf"
	"pdfchat/internal/llm/extractive"
	"pdfchat/internal/loader"
	"pdfchat/internal/logging"
	"pdfchat/internal/vectorstore/memory"
)

// recordingGenerator returns the text of the first context chunk and remembers every request.
type recordingGenerator struct {
	mu       sync.Mutex
	requests []domain.GenerateRequest
	err      error
}

func (g *recordingGenerator) Name() string { return "recording" }

func (g *recordingGenerator) Generate(_ context.Context, req domain.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	if len(req.Context) == 0 {
		return "", nil
	}
	return req.Context[0].Text, nil
}

// failingStore fails every Build once armed.
type failingStore struct {
	domain.VectorStore
	fail bool
}

func (f *failingStore) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.Index, error) {
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	return f.VectorStore.Build(ctx, chunks, vectors)
}

// closeCountingStore wraps built indexes to count Close calls.
type closeCountingStore struct {
	domain.VectorStore
	mu     sync.Mutex
	closed int
}

type countedIndex struct {
	domain.Index
	store *closeCountingStore
}

func (c *closeCountingStore) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.Index, error) {
	ix, err := c.VectorStore.Build(ctx, chunks, vectors)
	if err != nil {
		return nil, err
	}
	return &countedIndex{Index: ix, store: c}, nil
}

func (c *countedIndex) Close(ctx context.Context) error {
	c.store.mu.Lock()
	c.store.closed++
	c.store.mu.Unlock()
	return c.Index.Close(ctx)
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newService(store domain.VectorStore, gen domain.Generator) *QAService {
	return NewQAService(Dependencies{
		Loader:    loader.New(),
		Chunker:   chunker.NewRecursiveChunker(50, 5),
		Embedder:  tfidf.NewEmbedder(),
		Store:     store,
		Generator: gen,
		Search:    domain.SearchOptions{Type: domain.SearchMMR, K: 2, FetchK: 20, Lambda: 0.25},
		Logger:    logging.Discard(),
	})
}

const launchDoc = "The launch code is 4242.\n\nThe weather on launch day was mild.\n\nCats were not involved in the launch."

func TestAsk_BeforeIngest(t *testing.T) {
	svc := newService(memory.NewStore(), &recordingGenerator{})
	_, err := svc.Ask(context.Background(), "What is the launch code?")
	assert.ErrorIs(t, err, domain.ErrNoDocument)
	assert.Empty(t, svc.History())
	assert.False(t, svc.Ready())
}

func TestAsk_EmptyQuestion(t *testing.T) {
	svc := newService(memory.NewStore(), &recordingGenerator{})
	_, err := svc.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
}

func TestIngestAndAsk_Extractive(t *testing.T) {
	svc := NewQAService(Dependencies{
		Loader:    loader.New(),
		Chunker:   chunker.NewRecursiveChunker(1024, 64),
		Embedder:  tfidf.NewEmbedder(),
		Store:     memory.NewStore(),
		Generator: extractive.New(1),
		Logger:    logging.Discard(),
	})
	stats, err := svc.Ingest(context.Background(), writeDoc(t, "launch.txt", launchDoc))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 1, stats.Chunks)
	assert.Positive(t, stats.Dimension)

	answer, err := svc.Ask(context.Background(), "What is the launch code?")
	require.NoError(t, err)
	assert.Contains(t, answer, "4242")
}

func TestAsk_RetrievesRelevantChunkAndRecordsHistory(t *testing.T) {
	gen := &recordingGenerator{}
	svc := newService(memory.NewStore(), gen)
	_, err := svc.Ingest(context.Background(), writeDoc(t, "launch.txt", launchDoc))
	require.NoError(t, err)
	assert.True(t, svc.Ready())

	answer, err := svc.Ask(context.Background(), "launch code?")
	require.NoError(t, err)
	assert.Equal(t, "The launch code is 4242.", answer)

	_, err = svc.Ask(context.Background(), "weather?")
	require.NoError(t, err)

	turns := svc.History()
	require.Len(t, turns, 2)
	assert.Equal(t, "launch code?", turns[0].Question)
	assert.Equal(t, "weather?", turns[1].Question)

	require.Len(t, gen.requests, 2)
	assert.Len(t, gen.requests[0].Context, 2)
	assert.Empty(t, gen.requests[0].History)
	require.Len(t, gen.requests[1].History, 1)
	assert.Contains(t, gen.requests[1].Prompt, "Question: weather?\nHelpful Answer:")
	assert.NotContains(t, gen.requests[1].Prompt, "Previous conversation")
}

func TestIngest_ReplacesPreviousDocument(t *testing.T) {
	gen := &recordingGenerator{}
	store := &closeCountingStore{VectorStore: memory.NewStore()}
	svc := newService(store, gen)

	_, err := svc.Ingest(context.Background(), writeDoc(t, "a.txt", "Apples are red fruit."))
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), writeDoc(t, "b.txt", "Rockets burn liquid fuel."))
	require.NoError(t, err)
	assert.Equal(t, 1, store.closed)

	_, err = svc.Ask(context.Background(), "apples rockets")
	require.NoError(t, err)
	last := gen.requests[len(gen.requests)-1]
	for _, c := range last.Context {
		assert.NotContains(t, c.Text, "Apples", "first document must not survive a new upload")
	}
}

func TestIngest_FailureKeepsPreviousIndex(t *testing.T) {
	gen := &recordingGenerator{}
	store := &failingStore{VectorStore: memory.NewStore()}
	svc := newService(store, gen)

	_, err := svc.Ingest(context.Background(), writeDoc(t, "a.txt", "The vault code is 1234."))
	require.NoError(t, err)

	store.fail = true
	_, err = svc.Ingest(context.Background(), writeDoc(t, "b.txt", "Completely different content."))
	require.Error(t, err)

	_, err = svc.Ingest(context.Background(), writeDoc(t, "c.txt", "   "))
	require.ErrorIs(t, err, domain.ErrEmptyDocument)

	answer, err := svc.Ask(context.Background(), "vault code")
	require.NoError(t, err)
	assert.Equal(t, "The vault code is 1234.", answer)
}

func TestAsk_OutOfVocabularyFallsBackToKeywords(t *testing.T) {
	gen := &recordingGenerator{}
	svc := newService(memory.NewStore(), gen)
	_, err := svc.Ingest(context.Background(), writeDoc(t, "a.txt", launchDoc))
	require.NoError(t, err)

	// Only stopwords and unseen words: the TF-IDF vector is zero.
	_, err = svc.Ask(context.Background(), "what is zebra?")
	require.NoError(t, err)
	assert.Len(t, gen.requests[0].Context, 2)
}

func TestAsk_GeneratorErrorNotRecorded(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("model down")}
	svc := newService(memory.NewStore(), gen)
	_, err := svc.Ingest(context.Background(), writeDoc(t, "a.txt", launchDoc))
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), "launch code")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "model down"))
	assert.Empty(t, svc.History())
}

func TestAsk_ConcurrentWithIngest(t *testing.T) {
	svc := newService(memory.NewStore(), &recordingGenerator{})
	_, err := svc.Ingest(context.Background(), writeDoc(t, "a.txt", launchDoc))
	require.NoError(t, err)
	other := writeDoc(t, "b.txt", "The launch window opens at dawn.")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Ask(context.Background(), "launch")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), other)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, svc.History(), 20)
}
