package extractive

import (
	"context"
	"math"
	"sort"
	"strings"

	"pdfchat/internal/domain"
	"pdfchat/internal/lexical"
)

// NoAnswer is returned when no context sentence shares a word with the question.
const NoAnswer = "I don't know."

// Generator answers offline by picking the context sentences that best match the question.
// Sentences are ranked by word frequency across the context, boosted for question words.
type Generator struct {
	maxSentences int
}

// New creates an extractive generator returning at most maxSentences sentences.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Generator{maxSentences: maxSentences}
}

func (g *Generator) Name() string { return "extractive" }

func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sentences []string
	for _, c := range req.Context {
		for _, s := range lexical.Sentences(c.Text) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	question := lexical.TokenSet(req.Question)
	if len(sentences) == 0 || len(question) == 0 {
		return NoAnswer, nil
	}

	// Word frequencies over the whole context, normalised to [0,1].
	freq := map[string]float64{}
	tokens := make([][]string, len(sentences))
	for i, sent := range sentences {
		tokens[i] = lexical.Tokens(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	for k, v := range freq {
		freq[k] = v / maxF
	}

	type pair struct {
		idx     int
		score   float64
		matches int
	}
	scores := make([]pair, 0, len(sentences))
	seen := map[string]struct{}{}
	for i, sent := range sentences {
		// Overlapping chunks repeat sentences.
		if _, dup := seen[sent]; dup {
			continue
		}
		seen[sent] = struct{}{}
		p := pair{idx: i}
		for _, tok := range tokens[i] {
			p.score += freq[tok]
			if _, ok := question[tok]; ok {
				p.score += 2
				p.matches++
			}
		}
		if l := float64(len(tokens[i])); l > 0 {
			p.score /= math.Sqrt(l)
		}
		if p.matches > 0 {
			scores = append(scores, p)
		}
	}
	if len(scores) == 0 {
		return NoAnswer, nil
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n := min(g.maxSentences, len(scores))

	// Keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}
