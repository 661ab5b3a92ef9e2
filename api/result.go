package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/warp/distribution-ledger/config"
	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// RESULT ENVELOPE
// =============================================================================

// Result wraps every response body. Code is the stable error kind on
// failure and empty on success.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Result{Success: true, Data: data})
}

// writeError converts an engine error into a failed Result. Internal errors
// are logged and their text is not sent to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, funcName string, err error) {
	code := ledger.Code(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		config.LogError(h.Logger, "api", funcName, r.Method+" "+r.URL.Path, nil, err)
		msg = "internal error"
	}
	writeJSON(w, status, Result{Success: false, Message: msg, Code: code})
}

func statusFor(code string) int {
	switch code {
	case ledger.CodeNotFound:
		return http.StatusNotFound
	case ledger.CodeValidation:
		return http.StatusBadRequest
	case ledger.CodeInvalidTransition, ledger.CodeConcurrentModification:
		return http.StatusConflict
	case ledger.CodeInsufficientStock, ledger.CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case ledger.CodePeriodLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// REQUEST BINDING
// =============================================================================

// bind decodes the JSON body into dst and validates its tags. On failure the
// response has been written and bind returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, Result{
			Message: "invalid request body: " + err.Error(),
			Code:    ledger.CodeValidation,
		})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			h.writeError(w, r, "bind", err)
			return false
		}
		writeJSON(w, http.StatusBadRequest, Result{
			Message: "invalid request",
			Code:    ledger.CodeValidation,
			Data:    ProcessValidationErrors(ve),
		})
		return false
	}
	return true
}

// ProcessValidationErrors maps each failing field to the tag it failed.
func ProcessValidationErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// =============================================================================
// QUERY PARAMETERS
// =============================================================================

// dateParam parses an optional YYYY-MM-DD query parameter.
func dateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	return ledger.ParseDate(name, v)
}

// optionalDate parses an optional YYYY-MM-DD body field.
func optionalDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return ledger.ParseDate(field, v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ledger.DateLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(ledger.DateLayout)
	return &s
}
