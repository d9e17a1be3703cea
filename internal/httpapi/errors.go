package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jschappet/heron/internal/audit"
	"github.com/jschappet/heron/internal/obs"
)

// ErrorResponse is the uniform error body. Code is the HTTP status,
// ErrorType a stable machine-readable tag, Message human-readable.
type ErrorResponse struct {
	Code      int    `json:"code"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, errorType, msg string) {
	writeJSON(w, code, ErrorResponse{
		Code:      code,
		ErrorType: errorType,
		Message:   msg,
		RequestID: audit.RequestIDFromContext(r.Context()),
	})
}

// internalError logs the real error under a fresh correlation id and
// returns only the id to the client.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	id := uuid.NewString()
	obs.L().Error("internal error",
		zap.String("error_id", id),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Code:      http.StatusInternalServerError,
		ErrorType: "internal",
		Message:   "internal error: " + id,
		RequestID: audit.RequestIDFromContext(r.Context()),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
