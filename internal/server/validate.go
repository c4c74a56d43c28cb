package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Image formats the pipeline decoder supports.
var supportedFormats = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

// validateUpload checks size and sniffed content type before the bytes reach
// the pipeline. Returns an ErrorDetail suitable for the API envelope.
func validateUpload(data []byte, maxBytes int64) (int, *ErrorDetail) {
	if len(data) == 0 {
		return http.StatusBadRequest, &ErrorDetail{
			Code:    CodeNoFileProvided,
			Message: "uploaded file is empty",
		}
	}
	if int64(len(data)) > maxBytes {
		return http.StatusRequestEntityTooLarge, &ErrorDetail{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("file exceeds limit of %d bytes", maxBytes),
		}
	}
	contentType := http.DetectContentType(data)
	if !supportedFormats[contentType] {
		return http.StatusUnsupportedMediaType, &ErrorDetail{
			Code:    CodeUnsupportedFormat,
			Message: fmt.Sprintf("unsupported content type %s; expected one of %s", contentType, formatList()),
		}
	}
	return 0, nil
}

func formatList() string {
	names := make([]string, 0, len(supportedFormats))
	for name := range supportedFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
