// Package response writes the JSON envelope used by every endpoint:
//
//	success: {"success": true, ...data, "timestamp": "..."}
//	failure: {"success": false, "error": {"message", "code", "timestamp"}}
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/apperr"
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

func timestamp() string { return now().Format(time.RFC3339Nano) }

// ErrorBody is the "error" member of a failure envelope.
type ErrorBody struct {
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Timestamp string `json:"timestamp"`
}

type failure struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// Success writes data merged with success=true and a timestamp. Keys in data
// named "success" or "timestamp" are overwritten.
func Success(w http.ResponseWriter, status int, data map[string]any) {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	out["success"] = true
	out["timestamp"] = timestamp()
	writeJSON(w, status, out)
}

// Fail writes a failure envelope with an explicit status and message.
func Fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, failure{
		Success: false,
		Error:   ErrorBody{Message: message, Code: status, Timestamp: timestamp()},
	})
}

// Error maps err through the apperr taxonomy and writes the failure envelope.
// Internal causes are not included in the body.
func Error(w http.ResponseWriter, err error) {
	ae := apperr.From(err)
	Fail(w, ae.Status(), ae.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
