package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/manual-assistant/config"
	"github/itish2003/manual-assistant/models"
)

func chunksOf(source string, texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, t := range texts {
		out[i] = models.Chunk{ID: source + "-" + t, Index: i, Text: t, Source: source}
	}
	return out
}

func TestLocalStore_SearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalStore(t.TempDir(), &letterEmbedder{}, nopLogger())
	require.NoError(t, err)

	require.NoError(t, s.AddDocuments(ctx, chunksOf("m.pdf", "cccc", "aaaa", "bbbb")))

	docs, err := s.SimilaritySearch(ctx, "aaab", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "aaaa", docs[0].Text)
	assert.Equal(t, "bbbb", docs[1].Text)
	assert.Greater(t, docs[0].Score, docs[1].Score)
	assert.Equal(t, "m.pdf", docs[0].Metadata["source"])

	docs, err = s.SimilaritySearch(ctx, "aaab", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestLocalStore_EmptyStoreSkipsEmbedding(t *testing.T) {
	emb := &letterEmbedder{}
	s, err := OpenLocalStore(t.TempDir(), emb, nopLogger())
	require.NoError(t, err)

	docs, err := s.SimilaritySearch(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 0, emb.callCount())
}

func TestLocalStore_AccumulatesAcrossAdds(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalStore(t.TempDir(), &letterEmbedder{}, nopLogger())
	require.NoError(t, err)

	require.NoError(t, s.AddDocuments(ctx, chunksOf("a.pdf", "one", "two")))
	require.NoError(t, s.AddDocuments(ctx, chunksOf("b.pdf", "three")))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLocalStore_ReloadsFromWorkspace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenLocalStore(dir, &letterEmbedder{}, nopLogger())
	require.NoError(t, err)
	require.NoError(t, s.AddDocuments(ctx, chunksOf("m.pdf", "aaaa", "bbbb")))
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, IndexFileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, IndexFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))

	reopened, err := OpenLocalStore(dir, &letterEmbedder{}, nopLogger())
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := reopened.SimilaritySearch(ctx, "bbb", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "bbbb", docs[0].Text)
	assert.Equal(t, "m.pdf-bbbb", docs[0].Metadata["id"])
}

func TestLocalStore_Reset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenLocalStore(dir, &letterEmbedder{}, nopLogger())
	require.NoError(t, err)
	require.NoError(t, s.AddDocuments(ctx, chunksOf("m.pdf", "aaaa")))

	require.NoError(t, s.Reset(ctx))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	reopened, err := OpenLocalStore(dir, &letterEmbedder{}, nopLogger())
	require.NoError(t, err)
	n, err = reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Reset(ctx))
}

func TestLocalStore_EmbedFailureLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	emb := &letterEmbedder{}
	s, err := OpenLocalStore(t.TempDir(), emb, nopLogger())
	require.NoError(t, err)
	require.NoError(t, s.AddDocuments(ctx, chunksOf("m.pdf", "aaaa")))

	emb.err = errBoom
	err = s.AddDocuments(ctx, chunksOf("m.pdf", "bbbb"))
	assert.ErrorIs(t, err, errBoom)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLocalStore_CorruptIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte("{not json"), 0o644))
	_, err := OpenLocalStore(dir, &letterEmbedder{}, nopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode index")
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 1}))
}

func TestNewStoreOpener(t *testing.T) {
	_, err := NewStoreOpener(config.VectorStoreConfig{Type: "chroma"}, &letterEmbedder{}, nil, nopLogger())
	require.Error(t, err)
	_, err = NewStoreOpener(config.VectorStoreConfig{Type: "faiss"}, &letterEmbedder{}, nil, nopLogger())
	require.Error(t, err)

	open, err := NewStoreOpener(config.VectorStoreConfig{Type: "local", TopK: 3}, &letterEmbedder{}, nil, nopLogger())
	require.NoError(t, err)
	store, err := open(context.Background(), "id", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)
}

func TestLocalStore_WorkspaceCreatedOnFirstWrite(t *testing.T) {
	workspace := filepath.Join(t.TempDir(), "session")
	store, err := OpenLocalStore(workspace, &letterEmbedder{}, nopLogger())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.SimilaritySearch(ctx, "a", 3)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))
	assert.NoDirExists(t, workspace)

	require.NoError(t, store.AddDocuments(ctx, chunksOf("manual.pdf", "aaaa")))
	assert.FileExists(t, filepath.Join(workspace, IndexFileName))
}

func TestChromaStore_DeferredReadsAsEmpty(t *testing.T) {
	store := newDeferredChromaStore(nil, "id", &letterEmbedder{}, nopLogger())
	ctx := context.Background()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	docs, err := store.SimilaritySearch(ctx, "a", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, store.Reset(ctx))
	assert.Nil(t, store.opened())
}
