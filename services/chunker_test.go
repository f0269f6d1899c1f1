package services

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/manual-assistant/config"
)

func reassemble(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		sb.WriteString(string([]rune(c)[overlap:]))
	}
	return sb.String()
}

func TestWindowSplitter_Scenario(t *testing.T) {
	s, err := NewWindowSplitter(10, 5)
	require.NoError(t, err)

	chunks, err := s.SplitText("AAAAABBBBBCCCCC")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAAABBBBB", "BBBBBCCCCC"}, chunks)
}

func TestWindowSplitter_EdgeCases(t *testing.T) {
	s, err := NewWindowSplitter(10, 3)
	require.NoError(t, err)

	chunks, err := s.SplitText("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.NotNil(t, chunks)

	chunks, err = s.SplitText("short")
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, chunks)

	chunks, err = s.SplitText("0123456789")
	require.NoError(t, err)
	assert.Equal(t, []string{"0123456789"}, chunks)
}

func TestWindowSplitter_ReconstructsInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abcdefgh ijk\nlmnöü→中文")

	for size := 1; size <= 12; size++ {
		for overlap := 0; overlap < size; overlap++ {
			s, err := NewWindowSplitter(size, overlap)
			require.NoError(t, err)

			for _, n := range []int{0, 1, size - 1, size, size + 1, 3*size + 2, 57} {
				if n < 0 {
					continue
				}
				buf := make([]rune, n)
				for i := range buf {
					buf[i] = alphabet[rng.Intn(len(alphabet))]
				}
				text := string(buf)

				chunks, err := s.SplitText(text)
				require.NoError(t, err)
				assert.Equal(t, text, reassemble(chunks, overlap), "size=%d overlap=%d n=%d", size, overlap, n)
				for i, c := range chunks {
					assert.LessOrEqual(t, len([]rune(c)), size)
					if i < len(chunks)-1 {
						assert.Equal(t, size, len([]rune(c)))
					}
				}
			}
		}
	}
}

func TestWindowSplitter_Deterministic(t *testing.T) {
	s, err := NewWindowSplitter(500, 100)
	require.NoError(t, err)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80)

	a, err := s.SplitText(text)
	require.NoError(t, err)
	b, err := s.SplitText(text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNewWindowSplitter_RejectsBadParams(t *testing.T) {
	for _, p := range [][2]int{{0, 0}, {-1, 0}, {10, 10}, {10, 11}, {10, -1}} {
		_, err := NewWindowSplitter(p[0], p[1])
		assert.ErrorIs(t, err, ErrInvalidChunkParams, "size=%d overlap=%d", p[0], p[1])
	}
}

func TestNewTextChunker_Strategies(t *testing.T) {
	c, err := NewTextChunker(config.ChunkerConfig{Type: "window", ChunkSize: 10, ChunkOverlap: 5})
	require.NoError(t, err)
	chunks, err := c.ChunkText("AAAAABBBBBCCCCC")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	c, err = NewTextChunker(config.ChunkerConfig{Type: "recursive", ChunkSize: 50, ChunkOverlap: 10})
	require.NoError(t, err)
	chunks, err = c.ChunkText("Press the power button.\n\nHold for five seconds to reset.")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)

	_, err = NewTextChunker(config.ChunkerConfig{Type: "semantic", ChunkSize: 10, ChunkOverlap: 1})
	require.Error(t, err)

	_, err = NewTextChunker(config.ChunkerConfig{Type: "window", ChunkSize: 5, ChunkOverlap: 5})
	assert.ErrorIs(t, err, ErrInvalidChunkParams)
}

func TestTextChunker_EmptyIsEmptySlice(t *testing.T) {
	c, err := NewTextChunker(config.ChunkerConfig{Type: "recursive", ChunkSize: 50, ChunkOverlap: 10})
	require.NoError(t, err)
	chunks, err := c.ChunkText("")
	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}
