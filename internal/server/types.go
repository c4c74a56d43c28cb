package server

import (
	"context"

	"github.com/moneyocr/moneyocr/internal/pipeline"
)

// AmountRecognizer is the pipeline capability the handlers need. The concrete
// implementation is *pipeline.Pipeline; tests substitute a stub.
type AmountRecognizer interface {
	Recognize(ctx context.Context, data []byte) (*pipeline.RecognitionOutcome, error)
	HealthCheck() bool
}

// Machine-readable error codes returned to API clients.
const (
	CodeNoFileProvided    = "NO_FILE_PROVIDED"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeInvalidImage      = "INVALID_IMAGE"
	CodeTimeout           = "OCR_TIMEOUT"
	CodeEngineError       = "OCR_ENGINE_ERROR"
)

// Response is the uniform API envelope.
type Response struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries a stable code alongside the human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchItem is one file's result inside a batch response.
type BatchItem struct {
	Filename string                       `json:"filename"`
	Success  bool                         `json:"success"`
	Data     *pipeline.RecognitionOutcome `json:"data,omitempty"`
	Error    *ErrorDetail                 `json:"error,omitempty"`
}

// BatchData is the data payload of a batch response.
type BatchData struct {
	Results   []BatchItem `json:"results"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// HealthData is the payload of the health endpoint.
type HealthData struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
