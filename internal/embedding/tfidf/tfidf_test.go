package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbed_RequiresPrepare(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), []string{"hello"})
	assert.Error(t, err)
}

func TestPrepare_EmptyCorpus(t *testing.T) {
	_, err := NewEmbedder().Prepare(nil)
	assert.Error(t, err)

	_, err = NewEmbedder().Prepare([]string{"the and of"})
	assert.Error(t, err, "stopwords only")
}

func TestPrepare_ReturnsIndependentCopy(t *testing.T) {
	base := NewEmbedder()
	first, err := base.Prepare([]string{"apples grow on trees"})
	require.NoError(t, err)
	second, err := base.Prepare([]string{"rockets fly to orbit", "fuel burns"})
	require.NoError(t, err)

	assert.Equal(t, 0, base.Dimension())
	assert.Equal(t, 3, first.(*Embedder).Dimension())
	assert.Equal(t, 5, second.(*Embedder).Dimension())
}

func TestEmbed_NormalisedAndComparable(t *testing.T) {
	corpus := []string{
		"The invoice total is 4200 euros.",
		"Our cat sleeps on the sofa all day.",
	}
	fitted, err := NewEmbedder().Prepare(corpus)
	require.NoError(t, err)

	vecs, err := fitted.Embed(context.Background(), append(corpus, "invoice total"))
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.InDelta(t, 1.0, norm(v), 1e-5)
	}

	dot := func(a, b []float32) float64 {
		s := 0.0
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	assert.Greater(t, dot(vecs[2], vecs[0]), dot(vecs[2], vecs[1]))
}

func TestEmbed_UnknownTermsGiveZeroVector(t *testing.T) {
	fitted, err := NewEmbedder().Prepare([]string{"alpha beta"})
	require.NoError(t, err)
	vecs, err := fitted.Embed(context.Background(), []string{"gamma"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, norm(vecs[0]))
}
