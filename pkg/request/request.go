// Package request decodes JSON request bodies into the shared error taxonomy.
package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/apperr"
)

// DecodeJSON decodes the body of r into v. An empty body leaves v untouched.
// Oversized bodies (see http.MaxBytesReader) and malformed JSON become
// validation errors.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("Request body too large")
	}
	return apperr.Validation("Invalid JSON in request body")
}
