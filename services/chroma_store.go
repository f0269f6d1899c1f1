package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/models"
)

// ChromaCollectionName is the per-session collection on the Chroma server.
func ChromaCollectionName(sessionID string) string {
	return "manual-" + sessionID
}

// NewChromaClient connects to the Chroma server at baseURL.
func NewChromaClient(baseURL string) (chromago.Client, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("create chroma client: %w", err)
	}
	return client, nil
}

// ChromaStore keeps one session's chunks in its own Chroma collection.
// Embeddings are computed locally and sent with the documents.
type ChromaStore struct {
	client    chromago.Client
	sessionID string
	embedder  Embedder
	log       *zap.Logger

	mu         sync.Mutex
	collection chromago.Collection
}

// OpenChromaStore binds to the session's collection, creating it if needed.
func OpenChromaStore(ctx context.Context, client chromago.Client, sessionID string, embedder Embedder, log *zap.Logger) (*ChromaStore, error) {
	s := newDeferredChromaStore(client, sessionID, embedder, log)
	if _, err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// newDeferredChromaStore creates the collection on the first AddDocuments.
// Until then the store reads as empty.
func newDeferredChromaStore(client chromago.Client, sessionID string, embedder Embedder, log *zap.Logger) *ChromaStore {
	return &ChromaStore{client: client, sessionID: sessionID, embedder: embedder, log: log}
}

func (s *ChromaStore) ensureCollection(ctx context.Context) (chromago.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection != nil {
		return s.collection, nil
	}
	name := ChromaCollectionName(s.sessionID)
	collection, err := s.client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "product manual chunks"),
				chromago.NewStringAttribute("session_id", s.sessionID),
				chromago.NewStringAttribute("embedding_model", s.embedder.ModelName()),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	s.log.Info("opened chroma collection", zap.String("collection", name))
	s.collection = collection
	return collection, nil
}

// opened returns nil while the collection has not been created.
func (s *ChromaStore) opened() chromago.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection
}

func (s *ChromaStore) AddDocuments(ctx context.Context, chunks []models.Chunk) error {
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

	collection, err := s.ensureCollection(ctx)
	if err != nil {
		return err
	}

	ids := make([]chromago.DocumentID, len(chunks))
	embs := make([]embeddings.Embedding, len(chunks))
	metas := make([]chromago.DocumentMetadata, len(chunks))
	for i, c := range chunks {
		ids[i] = chromago.DocumentID(c.ID)
		embs[i] = embeddings.NewEmbeddingFromFloat32(vectors[i])
		metas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute("session_id", s.sessionID),
			chromago.NewStringAttribute("source", c.Source),
			chromago.NewIntAttribute("chunk_index", int64(c.Index)),
		)
	}
	err = collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add %d chunks to chromadb: %w", len(chunks), err)
	}
	s.log.Debug("added chunks", zap.Int("added", len(chunks)))
	return nil
}

func (s *ChromaStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.SourceDocument, error) {
	collection := s.opened()
	if k <= 0 || collection == nil {
		return []models.SourceDocument{}, nil
	}
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []models.SourceDocument{}, nil
	}
	if k > count {
		k = count
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vectors[0])),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	docs := []models.SourceDocument{}
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return docs, nil
	}
	for i, doc := range documentGroups[0] {
		if doc.ContentString() == "" {
			continue
		}
		var meta chromago.DocumentMetadata
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			meta = metadataGroups[0][i]
		}
		docs = append(docs, models.SourceDocument{
			Text:     doc.ContentString(),
			Metadata: metadataToMap(meta, s.log),
		})
	}
	return docs, nil
}

func (s *ChromaStore) Count(ctx context.Context) (int, error) {
	collection := s.opened()
	if collection == nil {
		return 0, nil
	}
	count, err := collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (s *ChromaStore) Reset(ctx context.Context) error {
	collection := s.opened()
	if collection == nil {
		return nil
	}
	where := chromago.EqString("session_id", s.sessionID)
	if err := collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return nil
}

// Close is a no-op: the client is shared by every session and closed at
// shutdown.
func (s *ChromaStore) Close() error { return nil }

// metadataToMap goes through JSON because DocumentMetadata exposes no map
// accessor.
func metadataToMap(meta chromago.DocumentMetadata, log *zap.Logger) map[string]interface{} {
	if meta == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		log.Warn("could not marshal chroma metadata", zap.Error(err))
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		log.Warn("could not unmarshal chroma metadata", zap.Error(err))
		return map[string]interface{}{}
	}
	return out
}
