package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pdfchat/internal/domain"
	"pdfchat/internal/vectorstore"
)

// Store is a minimal REST client to Qdrant.
// Every Build creates a fresh cosine collection named <collection>-<generation id>.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "pdfchat"
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Store) Name() string { return "qdrant" }

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (s *Store) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (domain.Index, error) {
	if len(chunks) != len(vectors) {
		return nil, errors.New("chunks and vectors length mismatch")
	}
	ix := &Index{
		store:  s,
		name:   s.collection + "-" + uuid.NewString()[:8],
		chunks: append([]domain.Chunk(nil), chunks...),
	}

	points := make([]point, 0, len(chunks))
	dimension := 0
	for i := range chunks {
		// Qdrant cannot normalise a zero vector for cosine distance.
		if vectorstore.IsZero(vectors[i]) {
			continue
		}
		if dimension == 0 {
			dimension = len(vectors[i])
		} else if len(vectors[i]) != dimension {
			return nil, fmt.Errorf("vector %d dimension %d, want %d", i, len(vectors[i]), dimension)
		}
		points = append(points, point{
			ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(ix.name+"/"+chunks[i].ChunkID)).String(),
			Vector: vectors[i],
			Payload: map[string]any{
				"position":    i,
				"document_id": chunks[i].DocumentID,
				"chunk_id":    chunks[i].ChunkID,
				"index":       chunks[i].Index,
				"page":        chunks[i].Page,
			},
		})
	}
	if len(points) == 0 {
		return ix, nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(ix.name), body, nil); err != nil {
		return nil, err
	}
	ix.created = true
	if err := s.do(ctx, http.MethodPut, s.collectionURL(ix.name)+"/points?wait=true", map[string]any{"points": points}, nil); err != nil {
		_ = ix.Close(ctx)
		return nil, err
	}
	ix.stored = len(points)
	return ix, nil
}

// Index is one Qdrant collection plus the local copy of its chunks.
type Index struct {
	store   *Store
	name    string
	chunks  []domain.Chunk
	stored  int
	created bool
}

func (ix *Index) Len() int { return len(ix.chunks) }

func (ix *Index) Chunks() []domain.Chunk { return append([]domain.Chunk(nil), ix.chunks...) }

func (ix *Index) Search(ctx context.Context, query []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	opts = vectorstore.Normalize(opts)
	if ix.stored == 0 || vectorstore.IsZero(query) {
		return nil, nil
	}
	limit := opts.FetchK
	if opts.Type == domain.SearchSimilarity {
		limit = opts.K
	}
	req := map[string]any{
		"vector":       query,
		"limit":        min(limit, ix.stored),
		"with_payload": []string{"position"},
		"with_vector":  true,
	}
	var resp struct {
		Result []struct {
			Score   float64   `json:"score"`
			Vector  []float32 `json:"vector"`
			Payload struct {
				Position *int `json:"position"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := ix.store.do(ctx, http.MethodPost, ix.store.collectionURL(ix.name)+"/points/search", req, &resp); err != nil {
		return nil, err
	}

	candidates := make([][]float32, len(resp.Result))
	for i, r := range resp.Result {
		pos := r.Payload.Position
		if pos == nil || *pos < 0 || *pos >= len(ix.chunks) {
			return nil, fmt.Errorf("qdrant collection %s returned a point without a valid position", ix.name)
		}
		candidates[i] = r.Vector
	}
	ranked := vectorstore.Rank(query, candidates, opts)
	results := make([]domain.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		pos := *resp.Result[r.Position].Payload.Position
		results = append(results, domain.SearchResult{Chunk: ix.chunks[pos], Score: r.Score})
	}
	return results, nil
}

// Close drops the collection.
func (ix *Index) Close(ctx context.Context) error {
	if !ix.created {
		return nil
	}
	return ix.store.do(ctx, http.MethodDelete, ix.store.collectionURL(ix.name), nil, nil)
}

func (s *Store) collectionURL(name string) string {
	return fmt.Sprintf("%s/collections/%s", s.url, name)
}

func (s *Store) do(ctx context.Context, method, url string, body any, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
