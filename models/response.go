package models

type UploadManualResponse struct {
	SessionID   string `json:"sessionID"`
	FileName    string `json:"file_name"`
	Pages       int    `json:"pages"`
	ChunksAdded int    `json:"chunks_added"`
	TotalChunks int    `json:"total_chunks"`
	Message     string `json:"message"`
}

type QueryRAGResponse struct {
	Answer     string           `json:"answer"`
	SourceDocs []SourceDocument `json:"source_docs,omitempty"`
	SessionID  string           `json:"sessionID"`
}

type SessionResponse struct {
	SessionID   string `json:"sessionID"`
	Workspace   string `json:"workspace"`
	TotalChunks int    `json:"total_chunks"`
}

type FeedbackResponse struct {
	Sentiment float64 `json:"sentiment"`
	Label     string  `json:"label"`
	Result    string  `json:"result"`
}

type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}
