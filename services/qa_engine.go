package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github/itish2003/manual-assistant/models"
)

const (
	DefaultTopK = 3

	// NoContextAnswer is returned without calling the generator when the
	// store has nothing relevant to offer.
	NoContextAnswer = "I couldn't find anything about that in the uploaded manual. Please upload a manual first or rephrase your question."
	// EmptyAnswer replaces a blank generation.
	EmptyAnswer = "I'm sorry, I couldn't generate a response."
)

// QAEngine answers questions against one session's vector store.
type QAEngine struct {
	store     VectorStore
	generator Generator
	topK      int
	timeout   time.Duration
	log       *zap.Logger
}

// NewQAEngine binds an engine to store. A non-positive topK falls back to
// DefaultTopK; a zero timeout leaves only the caller's deadline.
func NewQAEngine(store VectorStore, generator Generator, topK int, timeout time.Duration, log *zap.Logger) *QAEngine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QAEngine{store: store, generator: generator, topK: topK, timeout: timeout, log: log}
}

// Ask retrieves the most relevant chunks for query and has the generator
// answer from them.
func (q *QAEngine) Ask(ctx context.Context, query string) (*models.Answer, error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	docs, err := q.store.SimilaritySearch(ctx, query, q.topK)
	if err != nil {
		return nil, q.backendErr("retrieve chunks", err)
	}
	if len(docs) == 0 {
		q.log.Info("no chunks to answer from", zap.String("query", query))
		return &models.Answer{Text: NoContextAnswer, Sources: []models.SourceDocument{}}, nil
	}

	prompt := BuildQAPrompt(query, docs)
	q.log.Debug("sending prompt to generator", zap.Int("chunks", len(docs)), zap.Int("prompt_len", len(prompt)))
	text, err := q.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, q.backendErr("generate answer", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = EmptyAnswer
	}
	return &models.Answer{Text: text, Sources: docs}, nil
}

// backendErr makes every embedding or inference failure, including a
// timeout, match ErrBackendUnavailable.
func (q *QAEngine) backendErr(step string, err error) error {
	q.log.Error("qa step failed", zap.String("step", step), zap.Error(err))
	if errors.Is(err, ErrBackendUnavailable) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %w", step, ErrBackendUnavailable, err)
}
