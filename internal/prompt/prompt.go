// Package prompt renders the "stuff" question-answering prompt: every retrieved
// chunk is placed in the prompt verbatim, followed by the question.
package prompt

import (
	"strings"

	"pdfchat/internal/domain"
)

const (
	instruction = "Use the following pieces of context to answer the question at the end. " +
		"If you don't know the answer, just say that you don't know, don't try to make up an answer."
	documentSeparator = "\n\n"
)

// Builder renders prompts. With history enabled, earlier turns are listed before the question.
type Builder struct {
	withHistory bool
}

func New(withHistory bool) *Builder {
	return &Builder{withHistory: withHistory}
}

func (b *Builder) Build(question string, context []domain.Chunk, history []domain.Turn) string {
	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\n")
	for i, c := range context {
		if i > 0 {
			sb.WriteString(documentSeparator)
		}
		sb.WriteString(c.Text)
	}
	sb.WriteString("\n\n")
	if b.withHistory && len(history) > 0 {
		sb.WriteString("Previous conversation:\n")
		for _, t := range history {
			sb.WriteString("Question: ")
			sb.WriteString(t.Question)
			sb.WriteString("\nAnswer: ")
			sb.WriteString(t.Answer)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\nHelpful Answer:")
	return sb.String()
}
