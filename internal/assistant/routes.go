package assistant

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, h *Handler, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Post("/assistant/ask", h.HandleAsk)
}
