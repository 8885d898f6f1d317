package idgen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/idgen"
)

func TestChunkIDIsDeterministic(t *testing.T) {
	hash := idgen.ContentHash("text", []byte("hello world"))
	id1 := idgen.ChunkID(hash, 0)
	id2 := idgen.ChunkID(hash, 0)
	require.Equal(t, id1, id2)

	id3 := idgen.ChunkID(hash, 1)
	require.NotEqual(t, id1, id3)
}

func TestEntityIDIsStablePerSurfaceText(t *testing.T) {
	require.Equal(t, idgen.EntityID("Acme Corp"), idgen.EntityID("Acme Corp"))
	require.NotEqual(t, idgen.EntityID("Acme Corp"), idgen.EntityID("Globex Inc"))
}

func TestContentHashIsDomainSeparated(t *testing.T) {
	h1 := idgen.ContentHash("text", []byte("hello"))
	h2 := idgen.ContentHash("file", []byte("hello"))
	require.NotEqual(t, h1, h2)
}
