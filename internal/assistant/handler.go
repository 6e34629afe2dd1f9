package assistant

import (
	"encoding/json"
	"net/http"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
	"github.com/Vovarama1992/medassist-core/internal/auth"
	"github.com/Vovarama1992/medassist-core/internal/httpx"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type askRequest struct {
	OwnerExternalID int64  `json:"ownerExternalId"`
	Text            string `json:"text"`
	ConversationID  string `json:"conversationId,omitempty"`
	IdempotencyKey  string `json:"idempotencyKey"`
}

type askResponse struct {
	ConversationID string `json:"conversationId"`
	IdempotencyKey string `json:"idempotencyKey"`
	AssistantText  string `json:"assistantText"`
}

// HandleAsk — POST /assistant/ask.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteProblem(w, r, apperr.New(apperr.KindAuth, "identity_missing", nil))
		return
	}

	var body askRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Text == "" || body.IdempotencyKey == "" || body.OwnerExternalID <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "missing ownerExternalId, text or idempotencyKey")
		return
	}

	// An end-user token only speaks for its own Telegram id. A foreign
	// owner looks like a missing one.
	if id.Actor == auth.ActorEndUserApp && id.TelegramID != body.OwnerExternalID {
		httpx.WriteProblem(w, r, apperr.New(apperr.KindNotFound, "owner_not_found", nil))
		return
	}

	out, err := h.svc.Ask(r.Context(), AskInput{
		TelegramID:     body.OwnerExternalID,
		Text:           body.Text,
		ConversationID: body.ConversationID,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		httpx.WriteProblem(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, askResponse{
		ConversationID: out.ConversationID,
		IdempotencyKey: out.IdempotencyKey,
		AssistantText:  out.AssistantText,
	})
}
