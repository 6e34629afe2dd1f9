package auth

import (
	"context"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
)

type service struct {
	signer        *Signer
	initData      InitDataValidator
	apiKeys       APIKeyValidator
	serviceScopes []string
}

func NewService(
	signer *Signer,
	initData InitDataValidator,
	apiKeys APIKeyValidator,
	serviceScopes []string,
) Service {
	return &service{
		signer:        signer,
		initData:      initData,
		apiKeys:       apiKeys,
		serviceScopes: serviceScopes,
	}
}

// Issue dispatches on the grant kind, validates the caller, and mints a
// token for the resolved identity.
func (s *service) Issue(_ context.Context, req IssueRequest) (Issued, error) {
	var id Identity

	switch req.Kind {
	case GrantIdentityAssertion:
		telegramID, err := s.initData.Validate(req.Assertion)
		if err != nil {
			return Issued{}, err
		}
		id = Identity{
			Actor:      ActorEndUserApp,
			TelegramID: telegramID,
		}

	case GrantSharedSecret:
		if err := s.apiKeys.Validate(req.APIKey); err != nil {
			return Issued{}, err
		}
		id = Identity{
			Actor:  ActorBackendService,
			Scopes: s.serviceScopes,
		}

	default:
		return Issued{}, apperr.New(apperr.KindValidation, "unsupported_grant_type", nil)
	}

	token, expiresIn, err := s.signer.Sign(id)
	if err != nil {
		return Issued{}, err
	}
	return Issued{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Actor:       id.Actor,
	}, nil
}
