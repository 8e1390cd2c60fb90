// Package llm holds wrappers shared by the answer generators.
package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"pdfchat/internal/domain"
)

// Limited throttles and bounds calls to another Generator.
type Limited struct {
	next    domain.Generator
	limiter *rate.Limiter
	timeout time.Duration
}

// Limit wraps next so that at most rps calls per second start (burst 1) and each
// call is cancelled after timeout. rps <= 0 disables throttling; timeout <= 0 disables the deadline.
func Limit(next domain.Generator, rps float64, timeout time.Duration) *Limited {
	l := &Limited{next: next, timeout: timeout}
	if rps > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return l
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return l.next.Generate(ctx, req)
}
