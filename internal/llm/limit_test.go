package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
)

type slowGenerator struct {
	delay time.Duration
	calls int
}

func (s *slowGenerator) Name() string { return "slow" }

func (s *slowGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	s.calls++
	select {
	case <-time.After(s.delay):
		return "answer to " + req.Question, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestLimit_PassesThrough(t *testing.T) {
	g := Limit(&slowGenerator{}, 0, 0)
	assert.Equal(t, "slow", g.Name())
	out, err := g.Generate(context.Background(), domain.GenerateRequest{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "answer to q", out)
}

func TestLimit_Timeout(t *testing.T) {
	g := Limit(&slowGenerator{delay: time.Second}, 0, 20*time.Millisecond)
	_, err := g.Generate(context.Background(), domain.GenerateRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimit_Throttles(t *testing.T) {
	inner := &slowGenerator{}
	g := Limit(inner, 20, 0) // one call per 50ms
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), domain.GenerateRequest{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, inner.calls)
}

func TestLimit_WaitHonoursCancel(t *testing.T) {
	g := Limit(&slowGenerator{}, 0.001, 0)
	_, err := g.Generate(context.Background(), domain.GenerateRequest{})
	require.NoError(t, err) // first token is free

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, domain.GenerateRequest{})
	assert.Error(t, err)
}
