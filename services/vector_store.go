package services

import (
	"context"
	"fmt"
	"os"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/config"
	"github/itish2003/manual-assistant/models"
)

// VectorStore holds the embedded chunks of one session. A store is bound to a
// single persistence location for its whole lifetime.
type VectorStore interface {
	// AddDocuments embeds and persists chunks. Repeated calls accumulate.
	AddDocuments(ctx context.Context, chunks []models.Chunk) error
	// SimilaritySearch returns up to k chunks, most relevant first.
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.SourceDocument, error)
	Count(ctx context.Context) (int, error)
	// Reset drops every stored chunk but keeps the binding.
	Reset(ctx context.Context) error
	Close() error
}

// StoreOpener binds a new VectorStore to a session workspace.
type StoreOpener func(ctx context.Context, sessionID, workspace string) (VectorStore, error)

// NewStoreOpener returns an opener for the backend named in the config.
// chromaClient is only used by the chroma backend and may be nil otherwise.
func NewStoreOpener(cfg config.VectorStoreConfig, embedder Embedder, chromaClient chromago.Client, log *zap.Logger) (StoreOpener, error) {
	switch cfg.Type {
	case "local", "":
		return func(_ context.Context, _ string, workspace string) (VectorStore, error) {
			return OpenLocalStore(workspace, embedder, log)
		}, nil
	case "chroma":
		if chromaClient == nil {
			return nil, fmt.Errorf("chroma store selected without a chroma client")
		}
		return func(ctx context.Context, sessionID, workspace string) (VectorStore, error) {
			// A session that never stored a manual has no workspace and no
			// collection yet.
			if info, err := os.Stat(workspace); err != nil || !info.IsDir() {
				return newDeferredChromaStore(chromaClient, sessionID, embedder, log), nil
			}
			return OpenChromaStore(ctx, chromaClient, sessionID, embedder, log)
		}, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}
