package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/moneyocr/moneyocr/internal/pipeline"
	"github.com/moneyocr/moneyocr/internal/version"
)

// handleRecognize processes a single multipart image upload.
func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	data, detail := s.readUpload(r, "file")
	if detail != nil {
		writeError(w, statusForCode(detail.Code), detail)
		return
	}

	outcome, err := s.recognizer.Recognize(r.Context(), data)
	if err != nil {
		status, detail := errorToDetail(err)
		observeRecognition(detail.Code, 0)
		writeError(w, status, detail)
		return
	}
	observeRecognition("ok", outcome.AverageConfidence)
	writeJSON(w, http.StatusOK, Response{Success: true, Data: outcome})
}

// handleRecognizeBatch processes several uploads in one request. Items are
// isolated: one bad or slow image is reported in its slot and the rest still
// complete.
func (s *Server) handleRecognizeBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes()*8)
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeError(w, http.StatusBadRequest, &ErrorDetail{
			Code:    CodeNoFileProvided,
			Message: "failed to parse multipart form: " + err.Error(),
		})
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, &ErrorDetail{
			Code:    CodeNoFileProvided,
			Message: "no files provided in field 'files'",
		})
		return
	}

	batch := BatchData{Results: make([]BatchItem, 0, len(files)), Total: len(files)}
	for _, header := range files {
		item := s.processBatchItem(r, header)
		if item.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
		batch.Results = append(batch.Results, item)
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: batch})
}

func (s *Server) processBatchItem(r *http.Request, header *multipart.FileHeader) BatchItem {
	item := BatchItem{Filename: header.Filename}

	file, err := header.Open()
	if err != nil {
		item.Error = &ErrorDetail{Code: CodeInvalidImage, Message: "failed to open upload: " + err.Error()}
		return item
	}
	data, err := io.ReadAll(file)
	_ = file.Close()
	if err != nil {
		item.Error = &ErrorDetail{Code: CodeInvalidImage, Message: "failed to read upload: " + err.Error()}
		return item
	}
	if _, detail := validateUpload(data, s.maxUploadBytes()); detail != nil {
		item.Error = detail
		return item
	}

	outcome, err := s.recognizer.Recognize(r.Context(), data)
	if err != nil {
		_, detail := errorToDetail(err)
		observeRecognition(detail.Code, 0)
		item.Error = detail
		return item
	}
	observeRecognition("ok", outcome.AverageConfidence)
	item.Success = true
	item.Data = outcome
	return item
}

// handleHealth runs the pipeline self-test and reports process uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := HealthData{
		Status:        "healthy",
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	status := http.StatusOK
	if !s.recognizer.HealthCheck() {
		data.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, Response{Success: status == http.StatusOK, Data: data})
}

// readUpload extracts and validates a single multipart file field.
func (s *Server) readUpload(r *http.Request, field string) ([]byte, *ErrorDetail) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes()*2)
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		return nil, &ErrorDetail{Code: CodeNoFileProvided, Message: "failed to parse multipart form: " + err.Error()}
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, &ErrorDetail{Code: CodeNoFileProvided, Message: "missing file field '" + field + "'"}
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &ErrorDetail{Code: CodeInvalidImage, Message: "failed to read upload: " + err.Error()}
	}
	if _, detail := validateUpload(data, s.maxUploadBytes()); detail != nil {
		return nil, detail
	}
	return data, nil
}

// errorToDetail maps pipeline error types onto API error codes.
func errorToDetail(err error) (int, *ErrorDetail) {
	var decodeErr *pipeline.DecodeError
	if errors.As(err, &decodeErr) {
		return http.StatusBadRequest, &ErrorDetail{Code: CodeInvalidImage, Message: decodeErr.Error()}
	}
	var timeoutErr *pipeline.TimeoutError
	if errors.As(err, &timeoutErr) {
		return http.StatusGatewayTimeout, &ErrorDetail{Code: CodeTimeout, Message: timeoutErr.Error()}
	}
	return http.StatusInternalServerError, &ErrorDetail{Code: CodeEngineError, Message: err.Error()}
}

func statusForCode(code string) int {
	switch code {
	case CodeNoFileProvided, CodeInvalidImage:
		return http.StatusBadRequest
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail *ErrorDetail) {
	writeJSON(w, status, Response{Success: false, Error: detail})
}
