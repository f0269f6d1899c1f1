package services

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"github/itish2003/manual-assistant/config"
)

// WindowSplitter cuts text into fixed-size character windows. Each window
// after the first starts ChunkSize-ChunkOverlap characters after the previous
// one, so dropping the first ChunkOverlap characters of every later chunk and
// concatenating reproduces the input exactly.
type WindowSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewWindowSplitter validates size > 0 and 0 <= overlap < size.
func NewWindowSplitter(chunkSize, chunkOverlap int) (*WindowSplitter, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunkParams, chunkSize, chunkOverlap)
	}
	return &WindowSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// SplitText counts characters as runes so multi-byte text is never cut
// inside a code point.
func (s *WindowSplitter) SplitText(text string) ([]string, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{}, nil
	}

	step := s.ChunkSize - s.ChunkOverlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

var _ textsplitter.TextSplitter = (*WindowSplitter)(nil)

// TextChunker turns extracted manual text into chunk strings using the
// configured strategy.
type TextChunker struct {
	splitter textsplitter.TextSplitter
}

func NewTextChunker(cfg config.ChunkerConfig) (*TextChunker, error) {
	if cfg.ChunkSize <= 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunkParams, cfg.ChunkSize, cfg.ChunkOverlap)
	}

	var splitter textsplitter.TextSplitter
	switch cfg.Type {
	case "window", "":
		ws, err := NewWindowSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		splitter = ws
	case "recursive":
		splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		)
	case "token":
		splitter = textsplitter.NewTokenSplitter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
	return &TextChunker{splitter: splitter}, nil
}

// ChunkText returns the fully materialised chunk sequence in document order.
func (c *TextChunker) ChunkText(text string) ([]string, error) {
	chunks, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out, nil
}
