package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
)

// maxBodyBytes caps request bodies; ledger payloads are tiny.
const maxBodyBytes = 64 << 10

// decodeJSON decodes exactly one JSON value into v. Unknown fields,
// trailing data, and malformed values are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.Validation("body", "request body must contain a single JSON object")
	}
	return nil
}

func bodyError(err error) error {
	var (
		domainErr *core.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, core.ErrInvalidAmount):
		return core.Validation("amount", "amount must be a decimal number")
	case errors.Is(err, core.ErrInvalidDate):
		return core.Validation("date", err.Error())
	case errors.Is(err, io.EOF):
		return core.Validation("body", "request body is empty")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return core.Validation("body", "request body is not valid JSON")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return core.Validation(field, fmt.Sprintf("%s has the wrong type", field))
	case errors.As(err, &maxErr):
		return core.Validation("body", "request body is too large")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return core.Validation(name, fmt.Sprintf("unknown field %q", name))
	default:
		return core.Validation("body", err.Error())
	}
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Validation("id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// queryPurpose parses the optional purpose filter. ok is false when the
// parameter is absent.
func queryPurpose(r *http.Request) (p core.Purpose, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get("purpose"))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, core.Validation("purpose", fmt.Sprintf("invalid purpose %q", raw))
	}
	return core.Purpose(n), true, nil
}
