package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/manual-assistant/config"
)

func newOllamaServer(t *testing.T, handler http.HandlerFunc) config.EmbedderConfig {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return config.EmbedderConfig{OllamaURL: srv.URL, Model: "nomic-embed-text:v1.5", TimeoutSecs: 5}
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var gotModel string
	var gotInput []string
	cfg := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, gotInput = body.Model, body.Input

		embs := make([][]float32, len(body.Input))
		for i := range body.Input {
			embs[i] = []float32{float32(i), 1}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": body.Model, "embeddings": embs})
	})

	e, err := NewOllamaEmbedder(cfg)
	require.NoError(t, err)
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text:v1.5", gotModel)
	assert.Equal(t, []string{"first", "second"}, gotInput)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)
	assert.Equal(t, "nomic-embed-text:v1.5", e.ModelName())
}

func TestOllamaEmbedder_BackendError(t *testing.T) {
	cfg := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	})
	e, err := NewOllamaEmbedder(cfg)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestOllamaEmbedder_EmptyBatchSkipsBackend(t *testing.T) {
	called := false
	cfg := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	e, err := NewOllamaEmbedder(cfg)
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.False(t, called)
}

func TestWrapLRUCache_OnlyMissesReachBackend(t *testing.T) {
	inner := &letterEmbedder{}
	e := WrapLRUCache(inner, 16, time.Minute, nopLogger())

	first, err := e.Embed(context.Background(), []string{"abc", "xyz"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.callCount())

	second, err := e.Embed(context.Background(), []string{"xyz", "new", "abc"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.callCount())
	assert.Equal(t, []string{"abc", "xyz", "new"}, inner.inputs)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])

	_, err = e.Embed(context.Background(), []string{"new", "abc"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.callCount())
}

func TestWrapLRUCache_ReturnsCopies(t *testing.T) {
	e := WrapLRUCache(&letterEmbedder{}, 4, time.Minute, nopLogger())
	a, err := e.Embed(context.Background(), []string{"aaa"})
	require.NoError(t, err)
	a[0][0] = 99

	b, err := e.Embed(context.Background(), []string{"aaa"})
	require.NoError(t, err)
	assert.Equal(t, float32(3), b[0][0])
}

func TestWrapLRUCache_Disabled(t *testing.T) {
	inner := &letterEmbedder{}
	assert.Same(t, inner, WrapLRUCache(inner, 0, time.Minute, nopLogger()))
	assert.Same(t, inner, WrapLRUCache(inner, 8, 0, nopLogger()))
}

func TestWrapLRUCache_PropagatesError(t *testing.T) {
	e := WrapLRUCache(&letterEmbedder{err: errBoom}, 4, time.Minute, nopLogger())
	_, err := e.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, errBoom)
}
