package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyValidator(t *testing.T) {
	tests := []struct {
		name      string
		validator APIKeyValidator
		presented string
		wantErr   string
	}{
		{
			name:      "current key matches",
			validator: APIKeyValidator{Current: "key-a"},
			presented: "key-a",
		},
		{
			name:      "previous key matches during rotation",
			validator: APIKeyValidator{Current: "key-b", Previous: "key-a"},
			presented: "key-a",
		},
		{
			name:      "no key matches",
			validator: APIKeyValidator{Current: "key-b", Previous: "key-a"},
			presented: "key-c",
			wantErr:   "api_key_mismatch",
		},
		{
			name:      "nothing configured",
			validator: APIKeyValidator{},
			presented: "key-a",
			wantErr:   "api_key_not_configured",
		},
		{
			name:      "empty presented key never matches",
			validator: APIKeyValidator{Current: "key-a"},
			presented: "",
			wantErr:   "api_key_mismatch",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.validator.Validate(tc.presented)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}
