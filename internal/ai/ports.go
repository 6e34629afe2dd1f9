package ai

import "context"

// Request — провайдеро-независимый запрос на генерацию.
type Request struct {
	Model       string // empty means the configured default
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Result is the uniform shape every provider maps its response into.
type Result struct {
	Provider          string
	Model             string
	Content           string
	FinishReason      string
	PromptTokens      int
	CompletionTokens  int
	ProviderRequestID string
}

// Gateway — внешний интеллект, не знает ни про владельцев, ни про БД.
type Gateway interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Provider is one upstream generation backend behind the router.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
}
