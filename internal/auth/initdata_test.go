package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:test-bot-token"

// signInitData builds a signed init-data query string the same way the
// issuing side does.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func validFields(now time.Time) map[string]string {
	return map[string]string{
		"auth_date": fmt.Sprintf("%d", now.Unix()),
		"query_id":  "AAE5Cw",
		"user":      `{"id":42,"first_name":"Maria"}`,
	}
}

func TestInitDataValidator_Valid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := InitDataValidator{
		BotToken: testBotToken,
		MaxAge:   time.Hour,
		Now:      func() time.Time { return now },
	}

	id, err := v.Validate(signInitData(t, testBotToken, validFields(now)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestInitDataValidator_TamperedField(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := InitDataValidator{
		BotToken: testBotToken,
		MaxAge:   time.Hour,
		Now:      func() time.Time { return now },
	}

	raw := signInitData(t, testBotToken, validFields(now))
	tampered := strings.Replace(raw, "Maria", "maria", 1)
	require.NotEqual(t, raw, tampered)

	_, err := v.Validate(tampered)
	assert.ErrorContains(t, err, "init_data_hash_mismatch")
}

func TestInitDataValidator_WrongBotToken(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := InitDataValidator{
		BotToken: "999:other-token",
		MaxAge:   time.Hour,
		Now:      func() time.Time { return now },
	}

	_, err := v.Validate(signInitData(t, testBotToken, validFields(now)))
	assert.ErrorContains(t, err, "init_data_hash_mismatch")
}

func TestInitDataValidator_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := InitDataValidator{
		BotToken: testBotToken,
		MaxAge:   time.Hour,
		Now:      func() time.Time { return now },
	}

	fields := validFields(now.Add(-2 * time.Hour))
	_, err := v.Validate(signInitData(t, testBotToken, fields))
	assert.ErrorContains(t, err, "init_data_expired")
}

func TestInitDataValidator_Failures(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := InitDataValidator{
		BotToken: testBotToken,
		MaxAge:   time.Hour,
		Now:      func() time.Time { return now },
	}

	tests := []struct {
		name   string
		mutate func(map[string]string)
		reason string
	}{
		{
			name:   "missing auth_date",
			mutate: func(f map[string]string) { delete(f, "auth_date") },
			reason: "init_data_auth_date_invalid",
		},
		{
			name:   "missing user",
			mutate: func(f map[string]string) { delete(f, "user") },
			reason: "init_data_user_invalid",
		},
		{
			name:   "user id not positive",
			mutate: func(f map[string]string) { f["user"] = `{"id":0}` },
			reason: "init_data_user_invalid",
		},
		{
			name:   "user not json",
			mutate: func(f map[string]string) { f["user"] = "not-json" },
			reason: "init_data_user_invalid",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := validFields(now)
			tc.mutate(fields)
			_, err := v.Validate(signInitData(t, testBotToken, fields))
			assert.ErrorContains(t, err, tc.reason)
		})
	}
}

func TestInitDataValidator_MissingHash(t *testing.T) {
	v := InitDataValidator{BotToken: testBotToken, MaxAge: time.Hour}
	_, err := v.Validate("auth_date=1700000000&user=%7B%22id%22%3A42%7D")
	assert.ErrorContains(t, err, "init_data_hash_missing")
}

func TestInitDataValidator_NoBotToken(t *testing.T) {
	v := InitDataValidator{MaxAge: time.Hour}
	_, err := v.Validate("hash=deadbeef&auth_date=1700000000")
	assert.ErrorContains(t, err, "bot_token_not_configured")
}
