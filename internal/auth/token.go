package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
)

const tokenIssuer = "medassist-core"

// Signer mints and verifies the short-lived bearer tokens handed out by
// the token endpoint.
type Signer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Actor      string   `json:"actor"`
	TelegramID int64    `json:"tg_id,omitempty"`
	ClientID   string   `json:"client_id,omitempty"`
	Scopes     []string `json:"scopes,omitempty"`
}

// Sign embeds the identity into an HS256 token. The TTL in seconds is
// returned separately so callers can report expiry without decoding.
func (s *Signer) Sign(id Identity) (string, int64, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	issuedAt := now()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.TTL)),
		},
		Actor:      string(id.Actor),
		TelegramID: id.TelegramID,
		ClientID:   id.ClientID,
		Scopes:     dedupeScopes(id.Scopes),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString(s.Secret)
	if err != nil {
		return "", 0, apperr.New(apperr.KindInternal, "token_sign_failed", err)
	}
	return token, int64(s.TTL.Seconds()), nil
}

// Parse verifies a bearer token and rebuilds the identity it carries.
func (s *Signer) Parse(token string) (Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(func() time.Time {
			if s.Now != nil {
				return s.Now()
			}
			return time.Now()
		}),
	)
	if err != nil {
		return Identity{}, apperr.New(apperr.KindAuth, "token_invalid", err)
	}

	return Identity{
		Actor:      ActorKind(claims.Actor),
		TelegramID: claims.TelegramID,
		ClientID:   claims.ClientID,
		Scopes:     claims.Scopes,
	}, nil
}

func dedupeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		if sc == "" || seen[sc] {
			continue
		}
		seen[sc] = true
		out = append(out, sc)
	}
	return out
}
