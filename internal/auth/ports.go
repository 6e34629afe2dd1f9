package auth

import "context"

type ActorKind string

const (
	ActorEndUserApp     ActorKind = "end_user_app"
	ActorBackendService ActorKind = "backend_service"
)

type GrantKind string

const (
	GrantIdentityAssertion GrantKind = "identity_assertion"
	GrantSharedSecret      GrantKind = "shared_secret"
)

// Identity — кто пришёл. Never persisted, lives for one request.
type Identity struct {
	Actor      ActorKind
	TelegramID int64
	ClientID   string
	Scopes     []string
}

// IssueRequest carries one validated grant to the token service.
type IssueRequest struct {
	Kind GrantKind
	// Assertion is the raw signed init-data payload (identity_assertion).
	Assertion string
	// APIKey is the presented shared secret (shared_secret), taken from
	// the Authorization header, never from the body.
	APIKey string
}

type Issued struct {
	AccessToken string
	ExpiresIn   int64
	TokenType   string
	Actor       ActorKind
}

// Service — выдача токенов.
type Service interface {
	Issue(ctx context.Context, req IssueRequest) (Issued, error)
}
