package models

// Chunk is one overlapping slice of an uploaded manual, in document order.
type Chunk struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// SourceDocument represents a retrieved chunk and its origin.
type SourceDocument struct {
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Answer is what the QA engine returns for one question.
type Answer struct {
	Text    string
	Sources []SourceDocument
}

// Sentiment labels.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// FeedbackRecord is one scored feedback submission. Records are append-only.
type FeedbackRecord struct {
	Feedback  string
	Sentiment float64
	Label     string
	Result    string
}
