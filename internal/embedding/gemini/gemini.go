package gemini

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pdfchat/internal/domain"
)

// Client embeds text with a Gemini embedding model.
type Client struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	batchSize int
}

// Config configures the Gemini embeddings client.
type Config struct {
	APIKeyEnv string
	Model     string
	BatchSize int
	// Options are appended to the client options, e.g. option.WithHTTPClient.
	Options []option.ClientOption
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.BatchSize <= 0 {
		// BatchEmbedContents accepts at most 100 requests.
		cfg.BatchSize = 100
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(key)}, cfg.Options...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{client: client, model: client.EmbeddingModel(cfg.Model), batchSize: cfg.BatchSize}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Prepare(corpus []string) (domain.Embedder, error) { return c, nil }

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch := c.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := c.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini embeddings: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini embeddings: got %d vectors for %d inputs", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error { return c.client.Close() }
