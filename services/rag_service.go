package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/models"
)

// RAGService interface defines the manual workflow for one session.
type RAGService interface {
	UploadManual(c context.Context, s *Session, fileName string, r io.Reader) (*models.UploadManualResponse, error)
	QueryRAG(c context.Context, s *Session, req models.QueryTextRequest) (*models.QueryRAGResponse, error)
	GetSession(c context.Context, s *Session) (*models.SessionResponse, error)
}

type ragServiceImpl struct {
	extractor     TextExtractor
	chunker       *TextChunker
	resetOnUpload bool
	log           *zap.Logger
}

// NewRAGService wires extraction and chunking. Storage and answering come
// from the Session passed to each call.
func NewRAGService(extractor TextExtractor, chunker *TextChunker, resetOnUpload bool, log *zap.Logger) RAGService {
	return &ragServiceImpl{
		extractor:     extractor,
		chunker:       chunker,
		resetOnUpload: resetOnUpload,
		log:           log,
	}
}

// UploadManual extracts, chunks and stores a PDF in the session's store.
// Earlier uploads are kept unless the service resets on upload.
func (r *ragServiceImpl) UploadManual(c context.Context, s *Session, fileName string, src io.Reader) (*models.UploadManualResponse, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, fileName)
	}
	log := r.log.With(zap.String("session_id", s.ID), zap.String("file", fileName))

	s.mu.Lock()
	defer s.mu.Unlock()

	text, err := r.extractor.ExtractText(src)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		return nil, err
	}
	pages := CountPages(text)
	log.Info("extracted text", zap.Int("pages", pages), zap.Int("chars", len(text)))

	texts, err := r.chunker.ChunkText(text)
	if err != nil {
		return nil, err
	}

	// The workspace marks the session as reopenable after eviction.
	if err := os.MkdirAll(s.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create session workspace: %w", err)
	}

	if r.resetOnUpload {
		if err := s.Store.Reset(c); err != nil {
			return nil, fmt.Errorf("reset store: %w", err)
		}
		log.Info("store reset before upload")
	}
	base, err := s.Store.Count(c)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = models.Chunk{
			ID:     uuid.New().String(),
			Index:  base + i,
			Text:   t,
			Source: fileName,
		}
	}
	if err := s.Store.AddDocuments(c, chunks); err != nil {
		log.Error("failed to store chunks", zap.Error(err))
		return nil, fmt.Errorf("could not store manual chunks: %w", err)
	}

	total, err := s.Store.Count(c)
	if err != nil {
		return nil, err
	}
	log.Info("manual indexed", zap.Int("chunks_added", len(chunks)), zap.Int("total_chunks", total))
	return &models.UploadManualResponse{
		SessionID:   s.ID,
		FileName:    fileName,
		Pages:       pages,
		ChunksAdded: len(chunks),
		TotalChunks: total,
		Message:     "Manual processed. You can now ask questions about it.",
	}, nil
}

// QueryRAG answers one question from the session's stored chunks.
func (r *ragServiceImpl) QueryRAG(c context.Context, s *Session, req models.QueryTextRequest) (*models.QueryRAGResponse, error) {
	r.log.Info("querying manual", zap.String("session_id", s.ID), zap.String("query", req.Query))

	s.mu.Lock()
	defer s.mu.Unlock()

	answer, err := s.QA.Ask(c, req.Query)
	if err != nil {
		return nil, fmt.Errorf("could not answer question: %w", err)
	}
	return &models.QueryRAGResponse{
		Answer:     answer.Text,
		SourceDocs: answer.Sources,
		SessionID:  s.ID,
	}, nil
}

func (r *ragServiceImpl) GetSession(c context.Context, s *Session) (*models.SessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.Store.Count(c)
	if err != nil {
		return nil, err
	}
	return &models.SessionResponse{
		SessionID:   s.ID,
		Workspace:   s.Workspace,
		TotalChunks: count,
	}, nil
}
