package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jonreiter/govader"
	"go.uber.org/zap"

	"github/itish2003/manual-assistant/config"
	"github/itish2003/manual-assistant/models"
)

const (
	PositiveThreshold = 0.05
	NegativeThreshold = -0.05

	ResultPositive = "Positive feedback detected: Model rewarded."
	ResultNegative = "Negative feedback detected: Model penalized."
	ResultNeutral  = "Neutral feedback received."
)

var ErrFeedbackLogClosed = errors.New("feedback log closed")

// SentimentAnalyzer scores text in [-1, 1].
type SentimentAnalyzer interface {
	Compound(text string) float64
}

var (
	vaderOnce     sync.Once
	vaderAnalyzer *VaderAnalyzer
)

// VaderAnalyzer scores text with the VADER lexicon.
type VaderAnalyzer struct {
	sia *govader.SentimentIntensityAnalyzer
}

// NewVaderAnalyzer loads the lexicon on first use and returns the shared
// analyzer afterwards.
func NewVaderAnalyzer() *VaderAnalyzer {
	vaderOnce.Do(func() {
		vaderAnalyzer = &VaderAnalyzer{sia: govader.NewSentimentIntensityAnalyzer()}
	})
	return vaderAnalyzer
}

// Compound is rounded to four decimals.
func (v *VaderAnalyzer) Compound(text string) float64 {
	score := v.sia.PolarityScores(text).Compound
	return math.Round(score*1e4) / 1e4
}

// Classify applies the strict thresholds: exactly 0.05 and -0.05 are neutral.
func Classify(score float64) (label, result string) {
	switch {
	case score > PositiveThreshold:
		return models.LabelPositive, ResultPositive
	case score < NegativeThreshold:
		return models.LabelNegative, ResultNegative
	default:
		return models.LabelNeutral, ResultNeutral
	}
}

// FormatRecord renders one log record, blank line included.
func FormatRecord(rec models.FeedbackRecord) string {
	return fmt.Sprintf("Feedback: %s\nSentiment: %s\nResult: %s\n\n", rec.Feedback, formatScore(rec.Sentiment), rec.Result)
}

func formatScore(score float64) string {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

type writeReq struct {
	data []byte
	errc chan error
}

// FeedbackLog owns the log file. A single goroutine performs every write so
// concurrent submissions never interleave.
type FeedbackLog struct {
	w    io.WriteCloser
	reqs chan writeReq
	done chan struct{}
	log  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewFeedbackLog opens cfg.LogPath for appending, creating the parent
// directory when it is missing. The file is never rotated or truncated.
func NewFeedbackLog(cfg config.FeedbackConfig, log *zap.Logger) (*FeedbackLog, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create feedback log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	return newFeedbackLog(f, cfg.QueueSize, log), nil
}

func newFeedbackLog(w io.WriteCloser, queueSize int, log *zap.Logger) *FeedbackLog {
	if queueSize <= 0 {
		queueSize = 1
	}
	l := &FeedbackLog{
		w:    w,
		reqs: make(chan writeReq, queueSize),
		done: make(chan struct{}),
		log:  log,
	}
	go l.run()
	return l
}

func (l *FeedbackLog) run() {
	defer close(l.done)
	for req := range l.reqs {
		_, err := l.w.Write(req.data)
		if err != nil {
			l.log.Error("failed to write feedback record", zap.Error(err))
		}
		req.errc <- err
	}
}

// Append queues rec and waits until it has been written. ctx only bounds
// the wait for queue space.
func (l *FeedbackLog) Append(ctx context.Context, rec models.FeedbackRecord) error {
	req := writeReq{data: []byte(FormatRecord(rec)), errc: make(chan error, 1)}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrFeedbackLogClosed
	}
	select {
	case l.reqs <- req:
		l.mu.RUnlock()
	case <-ctx.Done():
		l.mu.RUnlock()
		return ctx.Err()
	}

	// Once queued the record will be written, so report the real outcome.
	if err := <-req.errc; err != nil {
		return fmt.Errorf("write feedback log: %w", err)
	}
	return nil
}

// Close drains queued records and closes the file.
func (l *FeedbackLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.reqs)
	l.mu.Unlock()

	<-l.done
	return l.w.Close()
}

// FeedbackService scores feedback and records it.
type FeedbackService struct {
	analyzer SentimentAnalyzer
	sink     *FeedbackLog
	log      *zap.Logger
}

func NewFeedbackService(analyzer SentimentAnalyzer, sink *FeedbackLog, log *zap.Logger) *FeedbackService {
	return &FeedbackService{analyzer: analyzer, sink: sink, log: log}
}

// Submit rejects blank text with ErrBlankFeedback and writes nothing in that
// case. Otherwise exactly one record is appended.
func (s *FeedbackService) Submit(ctx context.Context, text string) (*models.FeedbackRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrBlankFeedback
	}
	score := s.analyzer.Compound(text)
	label, result := Classify(score)
	rec := models.FeedbackRecord{Feedback: text, Sentiment: score, Label: label, Result: result}
	if err := s.sink.Append(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("feedback recorded", zap.Float64("sentiment", score), zap.String("label", label))
	return &rec, nil
}
