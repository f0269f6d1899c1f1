package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	ollama "github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/config"
)

// Embedder turns a batch of texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// OllamaEmbedder calls the /api/embed endpoint of a local Ollama server.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

func NewOllamaEmbedder(cfg config.EmbedderConfig) (*OllamaEmbedder, error) {
	parsedURL, err := url.Parse(cfg.OllamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}
	hc := &http.Client{Timeout: cfg.Timeout()}
	return &OllamaEmbedder{
		client: ollama.NewClient(parsedURL, hc),
		model:  cfg.Model,
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embed: %w", ErrBackendUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs", ErrBackendUnavailable, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (e *OllamaEmbedder) ModelName() string { return e.model }

// WrapLRUCache puts an expiring LRU in front of next. Only the texts missing
// from the cache are sent to the backend. A non-positive size or ttl returns
// next unchanged.
func WrapLRUCache(next Embedder, size int, ttl time.Duration, log *zap.Logger) Embedder {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruEmbedder{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
		log:   log,
	}
}

type lruEmbedder struct {
	next  Embedder
	cache *expirable.LRU[string, []float32]
	log   *zap.Logger
}

func (l *lruEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if cached, ok := l.cache.Get(l.cacheKey(text)); ok {
			out[i] = cloneEmbedding(cached)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		l.log.Debug("embedding cache hit", zap.Int("texts", len(texts)))
		return out, nil
	}

	fresh, err := l.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		l.cache.Add(l.cacheKey(missTexts[j]), cloneEmbedding(fresh[j]))
	}
	l.log.Debug("embedded texts", zap.Int("texts", len(texts)), zap.Int("cache_misses", len(missTexts)))
	return out, nil
}

func (l *lruEmbedder) ModelName() string { return l.next.ModelName() }

func (l *lruEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(l.next.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
