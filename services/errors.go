package services

import "errors"

var (
	ErrBlankFeedback      = errors.New("feedback is blank")
	ErrUnsupportedFile    = errors.New("unsupported file type")
	ErrExtractionFailed   = errors.New("text extraction failed")
	ErrBackendUnavailable = errors.New("model backend unavailable")
	ErrInvalidChunkParams = errors.New("invalid chunk parameters")
)
