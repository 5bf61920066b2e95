// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/staffdir/staffdir/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string            `json:"type,omitempty"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// MaxBodyBytes caps request bodies read by DecodeJSON.
const MaxBodyBytes = 64 << 10

// DecodeJSON decodes JSON request body into the target struct. Bodies
// larger than MaxBodyBytes are rejected unread.
func DecodeJSON(r *http.Request, target any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("httpx: body exceeds %d bytes: %w", tooLarge.Limit, shared.ErrValidation)
		}
		return fmt.Errorf("httpx: decode body: %w", shared.ErrValidation)
	}
	return nil
}

// Bind decodes the body and validates struct tags.
func Bind(r *http.Request, target any) (map[string]string, error) {
	if err := DecodeJSON(r, target); err != nil {
		return nil, err
	}
	if err := validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			out := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				out[fe.Field()] = fe.Tag()
			}
			return out, fmt.Errorf("httpx: validate body: %w", shared.ErrValidation)
		}
		return nil, err
	}
	return nil, nil
}

// RespondBindError writes a 400 problem listing invalid fields.
func RespondBindError(w http.ResponseWriter, fields map[string]string, err error) {
	if len(fields) == 0 {
		RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  "Validation Failed",
		Status: http.StatusBadRequest,
		Detail: shared.ErrValidation.Error(),
		Errors: fields,
	})
}
