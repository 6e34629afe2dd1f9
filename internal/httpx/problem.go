// Package httpx writes the two error envelopes shared by all handlers:
// a problem-style body for domain failures and a short {"error": ...}
// body for simple validation rejects.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
)

// Problem is the error envelope for non-trivial failures.
type Problem struct {
	Status   int    `json:"status"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a short {"error": reason} body.
func WriteError(w http.ResponseWriter, status int, reason string) {
	WriteJSON(w, status, map[string]string{"error": reason})
}

// WriteProblem maps an error kind to a status and writes the envelope.
// This is the single kind-to-status boundary.
func WriteProblem(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(apperr.KindOf(err))
	WriteJSON(w, status, Problem{
		Status:   status,
		Title:    titleFor(apperr.KindOf(err)),
		Detail:   apperr.ReasonOf(err),
		Instance: r.URL.Path,
	})
}

func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func titleFor(kind apperr.Kind) string {
	switch kind {
	case apperr.KindValidation:
		return "invalid request"
	case apperr.KindAuth:
		return "authentication failed"
	case apperr.KindNotFound:
		return "not found"
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindUpstream:
		return "upstream failure"
	default:
		return "internal error"
	}
}
