package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
	"github.com/Vovarama1992/medassist-core/internal/httpx"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type tokenRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type assertionPayload struct {
	Assertion string `json:"assertion"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	TokenType   string `json:"tokenType"`
	ActorType   string `json:"actorType"`
}

// HandleToken — POST /auth/token.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var body tokenRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Payload == nil {
		httpx.WriteError(w, http.StatusBadRequest, "missing payload")
		return
	}

	req := IssueRequest{Kind: GrantKind(body.Type)}

	switch req.Kind {
	case GrantIdentityAssertion:
		var p assertionPayload
		if err := decodeStrict(body.Payload, &p); err != nil || p.Assertion == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid assertion payload")
			return
		}
		req.Assertion = p.Assertion

	case GrantSharedSecret:
		// The secret never travels in the body, only the header.
		var p struct{}
		if err := decodeStrict(body.Payload, &p); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "payload must be empty")
			return
		}
		key, ok := apiKeyFromHeader(r)
		if !ok {
			httpx.WriteProblem(w, r, apperr.New(apperr.KindAuth, "api_key_header_missing", nil))
			return
		}
		req.APIKey = key

	default:
		httpx.WriteError(w, http.StatusBadRequest, "unsupported grant type")
		return
	}

	issued, err := h.svc.Issue(r.Context(), req)
	if err != nil {
		httpx.WriteProblem(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: issued.AccessToken,
		ExpiresIn:   issued.ExpiresIn,
		TokenType:   issued.TokenType,
		ActorType:   string(issued.Actor),
	})
}

func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func apiKeyFromHeader(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const scheme = "ApiKey "
	if !strings.HasPrefix(header, scheme) {
		return "", false
	}
	key := strings.TrimSpace(strings.TrimPrefix(header, scheme))
	return key, key != ""
}
