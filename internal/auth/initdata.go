package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
)

// initDataSecretLabel keys the bot-token HMAC that derives the
// per-installation signing secret. Fixed by the Telegram contract.
const initDataSecretLabel = "WebAppData"

// InitDataValidator checks a signed mini-app init-data payload and
// extracts the Telegram user id it asserts.
type InitDataValidator struct {
	BotToken string
	MaxAge   time.Duration
	Now      func() time.Time
}

type initDataUser struct {
	ID int64 `json:"id"`
}

// Validate verifies the signature and freshness of raw init data and
// returns the embedded Telegram user id.
func (v InitDataValidator) Validate(raw string) (int64, error) {
	if v.BotToken == "" {
		return 0, apperr.New(apperr.KindAuth, "bot_token_not_configured", nil)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return 0, apperr.New(apperr.KindAuth, "init_data_malformed", err)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return 0, apperr.New(apperr.KindAuth, "init_data_hash_missing", nil)
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.KindAuth, "init_data_auth_date_invalid", err)
	}

	// Check string: every field except hash, byte-sorted, one per line.
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	checkString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte(initDataSecretLabel))
	secret.Write([]byte(v.BotToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(wantHash), []byte(gotHash)) {
		return 0, apperr.New(apperr.KindAuth, "init_data_hash_mismatch", nil)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if v.MaxAge > 0 && now().Unix()-authDate > int64(v.MaxAge.Seconds()) {
		return 0, apperr.New(apperr.KindAuth, "init_data_expired", nil)
	}

	var user initDataUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return 0, apperr.New(apperr.KindAuth, "init_data_user_invalid", err)
	}
	if user.ID <= 0 {
		return 0, apperr.New(apperr.KindAuth, "init_data_user_invalid", nil)
	}

	return user.ID, nil
}
