package pkg

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var ContentType = struct {
	JSON string
	Text string
}{
	JSON: "application/json",
	Text: "text/plain; charset=utf-8",
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// MessageResponse is used for confirmations which carry no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

func WriteResponse(w http.ResponseWriter, contentType, message string, statusCode int) {
	WriteResponseBytes(w, contentType, []byte(message), statusCode)
}

func WriteTextResponseOK(w http.ResponseWriter, message string) {
	WriteResponseBytes(w, ContentType.Text, []byte(message), http.StatusOK)
}

func WriteResponseBytesOK(w http.ResponseWriter, contentType string, message []byte) {
	WriteResponseBytes(w, contentType, message, http.StatusOK)
}

func WriteResponseBytes(w http.ResponseWriter, contentType string, message []byte, statusCode int) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(statusCode)

	if _, err := w.Write(message); err != nil {
		log.Errorf("failed to write response [%s]: %s", message, err)
	}
}

// WriteJSONResponse marshals v and writes it with the given status code.
func WriteJSONResponse(w http.ResponseWriter, v any, statusCode int) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Server Error", err)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, respBytes, statusCode)
}

// WriteErrorResponse writes {message, error?}. The error text is only
// exposed for internal server errors, client errors carry the message alone.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := ErrorResponse{Message: message}
	if statusCode >= http.StatusInternalServerError && err != nil {
		resp.Error = err.Error()
	}

	respBytes, mErr := json.Marshal(resp)
	if mErr != nil {
		log.Errorf("marshal error response: %s", mErr)
		http.Error(w, message, statusCode)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, respBytes, statusCode)
}

// WriteServiceError maps err to its status code and writes it. Client errors
// use the error text as the message; anything unexpected gets a generic one.
func WriteServiceError(w http.ResponseWriter, err error) {
	status := StatusFromError(err)
	if status == http.StatusInternalServerError {
		WriteErrorResponse(w, status, "Server Error", err)
		return
	}

	message := err.Error()
	var clientErr *Error
	if errors.As(err, &clientErr) {
		message = clientErr.Msg
	}
	WriteErrorResponse(w, status, message, nil)
}
