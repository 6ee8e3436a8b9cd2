package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds request bodies; a bulk import of a few thousand
// transactions fits comfortably.
const maxBodyBytes = 8 << 20

// parseJSON decodes the request body into T. Unknown fields and trailing
// data are rejected so a misspelled field cannot silently default to zero.
func parseJSON[T any](r *http.Request) (T, error) {
	var out T
	if r.Body == nil {
		return out, errors.New("request body is required")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, errors.New("request body is required")
		}
		return out, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return out, errors.New("request body must contain a single JSON object")
	}
	return out, nil
}

// parseOptionalJSON is parseJSON for bodies that may be empty, in which case
// the zero T is returned.
func parseOptionalJSON[T any](r *http.Request) (T, error) {
	var zero T
	if r.Body == nil || r.ContentLength == 0 {
		return zero, nil
	}
	return parseJSON[T](r)
}
