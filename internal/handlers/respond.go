package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lojf/gymclass/internal/apperr"
)

type errorBody struct {
	Error   apperr.Code `json:"error"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

// writeError maps a domain error to its status. Anything without a code is
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Printf("[http] %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: apperr.CodeUnknown, Message: "internal error"})
		return
	}
	switch ae.Code {
	case apperr.CodeInvariantViolation:
		log.Printf("[http] %s %s: INVARIANT %v", r.Method, r.URL.Path, err)
	case apperr.CodeContention:
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, ae.Code.HTTPStatus(), errorBody{Error: ae.Code, Message: ae.Message})
}

func badRequest(format string, args ...any) error {
	return apperr.New(apperr.CodeInvalidArgument, fmt.Sprintf(format, args...))
}

// bind decodes the JSON body into dst and validates it. An empty body is
// accepted when optional is set.
func (h *Handlers) bind(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			return badRequest("invalid JSON body: %v", err)
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return badRequest("invalid input")
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return badRequest("validation failed: %s", strings.Join(fields, ", "))
}
