package capability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/capability"
)

func TestDeterministicEmbedderIsStableAndBounded(t *testing.T) {
	e := capability.NewDeterministicEmbedder(16)

	v1, err := e.Embed("embedding-default-v1", "the quick brown fox")
	require.NoError(t, err)
	v2, err := e.Embed("embedding-default-v1", "the quick brown fox")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Len(t, v1, 16)
	for _, f := range v1 {
		require.GreaterOrEqual(t, f, float32(-1.0))
		require.LessOrEqual(t, f, float32(1.0))
	}

	v3, err := e.Embed("embedding-default-v1", "a completely different string")
	require.NoError(t, err)
	require.NotEqual(t, v1, v3)

	v4, err := e.Embed("other-model", "the quick brown fox")
	require.NoError(t, err)
	require.NotEqual(t, v1, v4, "different model_id must change the vector even for identical text")
}

func TestFixedWidthChunkerOverlapsAndCoversWholeText(t *testing.T) {
	c := capability.NewFixedWidthChunker(10, 3)
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Chunk(text)
	require.NotEmpty(t, chunks)

	var rebuilt string
	for i, ch := range chunks {
		require.Equal(t, i, ch.Index)
		if i == 0 {
			rebuilt = ch.Text
			continue
		}
		require.Equal(t, 3, ch.Overlap)
		rebuilt += ch.Text[ch.Overlap:]
	}
	require.Equal(t, text, rebuilt)
}

func TestKeywordExtractorDedupesMatches(t *testing.T) {
	e := capability.NewKeywordExtractor(0.9)
	entities, err := e.Extract(context.Background(), "Acme Corp signed a deal with Acme Corp and Globex Inc.")
	require.NoError(t, err)

	texts := make(map[string]bool)
	for _, ent := range entities {
		texts[ent.Text] = true
		require.Equal(t, float32(0.9), ent.Confidence)
	}
	require.True(t, texts["Acme Corp"])
	require.True(t, texts["Globex Inc"])
}

func TestForbiddenWordPolicy(t *testing.T) {
	p := capability.NewForbiddenWordPolicy("classified")
	require.NoError(t, p.Check("a public memo"))
	require.Error(t, p.Check("This document is CLASSIFIED"))
}

func TestUnsupportedPDFExtractorFailsClosed(t *testing.T) {
	var e capability.PDFExtractor = capability.UnsupportedPDFExtractor{}
	_, err := e.ExtractText([]byte("%PDF-1.4 ..."))
	require.ErrorIs(t, err, capability.ErrPDFUnsupported)
}
