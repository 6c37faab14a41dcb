package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"atelier.dev/internal/audit"
	"atelier.dev/internal/auth"
	"atelier.dev/internal/obs"
)

type successEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type errorEnvelope struct {
	Success   bool              `json:"success"`
	Action    string            `json:"action"`
	ErrorCode string            `json:"errorCode"`
	Message   string            `json:"message"`
	Errors    []auth.FieldError `json:"errors"`
	Data      any               `json:"data"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, code int, data any, message string) {
	writeJSON(w, code, successEnvelope{StatusCode: code, Data: data, Message: message, Success: true})
}

// writeAppError is the single place errors are turned into HTTP responses.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := auth.AsError(err)
	if !ok {
		appErr = auth.NewError("", http.StatusInternalServerError, auth.CodeInternal, "Something went wrong").WithCause(err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		obs.Logger().Error("request failed",
			zap.String("request_id", audit.RequestIDFromContext(r.Context())),
			zap.String("action", appErr.Action),
			zap.Error(err),
		)
	}
	if appErr.Code == auth.CodeTooManyAttempts || appErr.Code == codeRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	fieldErrors := appErr.Errors
	if fieldErrors == nil {
		fieldErrors = []auth.FieldError{}
	}
	writeJSON(w, appErr.Status, errorEnvelope{
		Success:   false,
		Action:    appErr.Action,
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		Errors:    fieldErrors,
		Data:      appErr.Data,
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

func badRequest(action string, err error) *auth.Error {
	msg := err.Error()
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		msg = "request body too large"
	}
	msg = strings.TrimPrefix(msg, "json: ")
	return auth.NewError(action, http.StatusBadRequest, auth.CodeValidation, msg).WithField("body", msg)
}
