package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
	"pdfchat/internal/vectorstore"
)

// fakeQdrant implements the handful of collection endpoints the store uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string][]point
	apiKeys     []string
}

func newFake() *fakeQdrant { return &fakeQdrant{collections: map[string][]point{}} }

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/collections/"), "/")
	name := parts[0]
	switch {
	case r.Method == http.MethodPut && len(parts) == 1:
		f.collections[name] = nil
		_, _ = w.Write([]byte(`{"result":true}`))
	case r.Method == http.MethodDelete && len(parts) == 1:
		delete(f.collections, name)
		_, _ = w.Write([]byte(`{"result":true}`))
	case r.Method == http.MethodPut && len(parts) == 2 && parts[1] == "points":
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = append(f.collections[name], body.Points...)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		pts := append([]point(nil), f.collections[name]...)
		sort.SliceStable(pts, func(i, j int) bool {
			return vectorstore.Cosine(body.Vector, pts[i].Vector) > vectorstore.Cosine(body.Vector, pts[j].Vector)
		})
		if body.Limit < len(pts) {
			pts = pts[:body.Limit]
		}
		result := make([]map[string]any, len(pts))
		for i, p := range pts {
			result[i] = map[string]any{
				"id":      p.ID,
				"score":   vectorstore.Cosine(body.Vector, p.Vector),
				"vector":  p.Vector,
				"payload": map[string]any{"position": p.Payload["position"]},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	default:
		http.NotFound(w, r)
	}
}

func chunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		out[i] = domain.Chunk{DocumentID: "d", ChunkID: "d:" + t, Index: i, Text: t}
	}
	return out
}

func TestBuildSearchClose(t *testing.T) {
	fake := newFake()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()

	s := NewStore(Config{URL: srv.URL, APIKey: "secret", Collection: "test"})
	ix, err := s.Build(ctx, chunks("a", "a-dup", "b", "blank"), [][]float32{{1, 0}, {0.99, 0.01}, {0.6, 0.8}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, 4, ix.Len())

	fake.mu.Lock()
	require.Len(t, fake.collections, 1)
	for name, pts := range fake.collections {
		assert.True(t, strings.HasPrefix(name, "test-"))
		assert.Len(t, pts, 3, "zero vectors are not uploaded")
	}
	fake.mu.Unlock()

	res, err := ix.Search(ctx, []float32{1, 0}, domain.SearchOptions{Type: domain.SearchMMR, K: 2, FetchK: 20, Lambda: 0.25})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Chunk.Text)
	assert.Equal(t, "b", res[1].Chunk.Text)

	res, err = ix.Search(ctx, []float32{1, 0}, domain.SearchOptions{Type: domain.SearchSimilarity, K: 2})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a-dup", res[1].Chunk.Text)

	require.NoError(t, ix.Close(ctx))
	fake.mu.Lock()
	assert.Empty(t, fake.collections)
	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
	fake.mu.Unlock()
}

func TestBuild_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewStore(Config{URL: srv.URL}).Build(context.Background(), chunks("a"), [][]float32{{1}})
	assert.Error(t, err)
}

func TestBuild_AllZeroVectorsSkipsCollection(t *testing.T) {
	fake := newFake()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ix, err := NewStore(Config{URL: srv.URL}).Build(context.Background(), chunks("a"), [][]float32{{0, 0}})
	require.NoError(t, err)
	res, err := ix.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NoError(t, ix.Close(context.Background()))
	assert.Empty(t, fake.apiKeys, "no requests sent")
}
