package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github/itish2003/manual-assistant/models"
)

// IndexFileName is the file a LocalStore keeps inside its workspace.
const IndexFileName = "index.json"

type indexEntry struct {
	models.Chunk
	Embedding []float32 `json:"embedding"`
}

type indexFile struct {
	Model   string       `json:"model"`
	Entries []indexEntry `json:"entries"`
}

// LocalStore keeps every entry in memory and mirrors it to index.json.
// Search is brute-force cosine similarity.
type LocalStore struct {
	path     string
	embedder Embedder
	log      *zap.Logger

	mu      sync.RWMutex
	entries []indexEntry
}

// OpenLocalStore binds a store to workspace, loading an existing index.
// The workspace directory is created by the first write.
func OpenLocalStore(workspace string, embedder Embedder, log *zap.Logger) (*LocalStore, error) {
	s := &LocalStore{
		path:     filepath.Join(workspace, IndexFileName),
		embedder: embedder,
		log:      log,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("decode index %s: %w", s.path, err)
	}
	if idx.Model != "" && idx.Model != s.embedder.ModelName() {
		s.log.Warn("index was built with a different embedding model",
			zap.String("index_model", idx.Model), zap.String("model", s.embedder.ModelName()))
	}
	s.entries = idx.Entries
	s.log.Info("loaded vector index", zap.String("path", s.path), zap.Int("entries", len(s.entries)))
	return nil
}

// persist rewrites the index through a temp file and a rename.
func (s *LocalStore) persist(entries []indexEntry) error {
	data, err := json.Marshal(indexFile{Model: s.embedder.ModelName(), Entries: entries})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

func (s *LocalStore) AddDocuments(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]indexEntry, len(s.entries), len(s.entries)+len(chunks))
	copy(next, s.entries)
	for i, c := range chunks {
		next = append(next, indexEntry{Chunk: c, Embedding: vectors[i]})
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.entries = next
	s.log.Debug("added chunks", zap.Int("added", len(chunks)), zap.Int("total", len(next)))
	return nil
}

func (s *LocalStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.SourceDocument, error) {
	s.mu.RLock()
	empty := len(s.entries) == 0
	s.mu.RUnlock()
	if empty || k <= 0 {
		return []models.SourceDocument{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	q := vectors[0]

	type scored struct {
		entry indexEntry
		score float64
	}
	s.mu.RLock()
	hits := make([]scored, 0, len(s.entries))
	for _, e := range s.entries {
		hits = append(hits, scored{entry: e, score: cosine(q, e.Embedding)})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	docs := make([]models.SourceDocument, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, models.SourceDocument{
			Text:  h.entry.Text,
			Score: h.score,
			Metadata: map[string]interface{}{
				"id":          h.entry.ID,
				"chunk_index": h.entry.Index,
				"source":      h.entry.Source,
			},
		})
	}
	return docs, nil
}

func (s *LocalStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *LocalStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index: %w", err)
	}
	s.entries = nil
	return nil
}

func (s *LocalStore) Close() error { return nil }

// cosine returns 0 when either vector has zero length or the sizes differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
