package ai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
)

// Router resolves the effective model and picks a provider. Today there
// is exactly one provider; the registry keeps the interface open.
type Router struct {
	defaultModel string
	defaultName  string
	providers    map[string]Provider
}

func NewRouter(defaultModel string, providers ...Provider) *Router {
	if defaultModel == "" {
		defaultModel = openai.GPT4oMini
	}
	r := &Router{
		defaultModel: defaultModel,
		providers:    make(map[string]Provider, len(providers)),
	}
	for _, p := range providers {
		if r.defaultName == "" {
			r.defaultName = p.Name()
		}
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Router) Generate(ctx context.Context, req Request) (Result, error) {
	if req.Model == "" {
		req.Model = r.defaultModel
	}
	p, ok := r.providers[r.defaultName]
	if !ok {
		return Result{}, apperr.New(apperr.KindInternal, "no_provider_configured", nil)
	}
	return p.Generate(ctx, req)
}
