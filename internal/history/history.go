// Package history keeps the process-wide conversation log.
package history

import (
	"sync"
	"time"

	"pdfchat/internal/domain"
)

// Log is an append-only, ordered list of turns, safe for concurrent use.
type Log struct {
	mu    sync.Mutex
	turns []domain.Turn
	now   func() time.Time
}

func New() *Log {
	return &Log{now: time.Now}
}

// Append records one exchange and returns it with its timestamp set.
func (l *Log) Append(question, answer string) domain.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := domain.Turn{Question: question, Answer: answer, At: l.now()}
	l.turns = append(l.turns, t)
	return t
}

// Turns returns a copy of the log in append order.
func (l *Log) Turns() []domain.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Turn(nil), l.turns...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
