package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pdfchat/internal/domain"
)

// Generator answers with a Gemini model.
type Generator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// Config configures the Gemini generation client.
type Config struct {
	APIKeyEnv   string
	Model       string
	MaxTokens   int
	Temperature float32
	// Options are appended to the client options, e.g. option.WithHTTPClient.
	Options []option.ClientOption
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(key)}, cfg.Options...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	if cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Name() string { return "gemini" }

func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		// First candidate with content is the answer.
		break
	}
	answer := strings.TrimSpace(b.String())
	if answer == "" {
		return "", errors.New("gemini returned an empty answer")
	}
	return answer, nil
}

func (g *Generator) Close() error { return g.client.Close() }
