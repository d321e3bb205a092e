package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/validation"
)

// structValidate is a package-level, concurrency-safe validator instance
// for required-field struct tags.
var structValidate = validator.New(validator.WithRequiredStructEnabled())

// DecodeAndValidate reads a JSON body into dst, applies the content rules
// from internal/validation (size/nesting/script-tag rejection) to the raw
// bytes first, then runs struct-tag validation. On any failure it writes
// the typed response and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !decodeValidated(w, r, dst) {
		return false
	}

	if errs := validateStruct(dst); len(errs) > 0 {
		field := errs[0]
		RespondTypedError(w, apperror.New(apperror.KindValidationFailed, field.Message).WithField(field.Field))
		return false
	}

	return true
}

// decodeValidated runs the content-rule scan (size/nesting/script-tag
// rejection) on the raw body and decodes it into dst, without applying
// struct-tag validation — used directly by endpoints whose request shape
// isn't a single fixed struct.
func decodeValidated(w http.ResponseWriter, r *http.Request, dst any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20+1))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "request body could not be read")
		return false
	}
	defer r.Body.Close()

	if len(raw) == 0 {
		RespondError(w, http.StatusBadRequest, "request body is empty")
		return false
	}

	if _, err := validation.ValidateBody(raw); err != nil {
		he, ok := apperror.As(err)
		if !ok {
			he = apperror.New(apperror.KindValidationFailed, "request body failed validation")
		}
		RespondTypedError(w, he)
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	if dec.More() {
		RespondError(w, http.StatusBadRequest, "request body must contain a single JSON object")
		return false
	}

	return true
}

// fieldValidationError is one struct-tag validation failure.
type fieldValidationError struct {
	Field string
	Message string
}

func validateStruct(v any) []fieldValidationError {
	err := structValidate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []fieldValidationError{{Field: "$", Message: err.Error()}}
	}

	out := make([]fieldValidationError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fieldValidationError{
			Field: "$." + jsonFieldName(fe),
			Message: fieldErrorMessage(fe),
		})
	}
	return out
}

func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	return toSnakeCase(ns)
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed '%s' validation", fe.Field(), fe.Tag())
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + 32)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
