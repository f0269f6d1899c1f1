package models

// QueryTextRequest is the body of POST /api/v1/query.
type QueryTextRequest struct {
	Query string `json:"query" binding:"required"`
}

// FeedbackRequest is the body of POST /api/v1/feedback. Blank feedback is
// rejected by the service, not by binding, so the caller gets a warning.
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}
