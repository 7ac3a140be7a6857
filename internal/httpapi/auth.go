package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	ErrInitDataMissing = errors.New("initData required")
	ErrNotAdmin        = errors.New("not an admin")
)

const (
	initDataMaxAge  = 24 * time.Hour
	initDataMaxSkew = 5 * time.Minute
)

// TelegramUser is the user object carried in Mini App initData.
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Language  string `json:"language_code"`
}

// AdminAuth admits requests whose initData is signed for the bot and whose
// user is on the admin list.
type AdminAuth struct {
	botToken string
	admins   map[int64]bool
	now      func() time.Time
}

func NewAdminAuth(botToken string, adminIDs []int64) *AdminAuth {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &AdminAuth{botToken: botToken, admins: admins, now: time.Now}
}

// Enabled is false without a bot token; the API is then open.
func (a *AdminAuth) Enabled() bool {
	return a != nil && a.botToken != ""
}

func (a *AdminAuth) Authorize(initData string) (TelegramUser, error) {
	if initData == "" {
		return TelegramUser{}, ErrInitDataMissing
	}
	user, err := validateInitData(initData, a.botToken, a.now())
	if err != nil {
		return TelegramUser{}, err
	}
	if !a.admins[user.ID] {
		return user, fmt.Errorf("%w: user %d", ErrNotAdmin, user.ID)
	}
	return user, nil
}

// validateInitData checks the initData signature and returns its user.
func validateInitData(initData, botToken string, now time.Time) (TelegramUser, error) {
	if initData == "" {
		return TelegramUser{}, fmt.Errorf("initData is empty")
	}
	if botToken == "" {
		return TelegramUser{}, fmt.Errorf("botToken is empty")
	}

	secret := webAppSecret(botToken)

	// Proxies and form decoders like to turn "+" into a space.
	var lastErr error
	for _, input := range []string{initData, strings.ReplaceAll(initData, " ", "+")} {
		user, err := verifyAndParse(input, secret, now)
		if err == nil {
			return user, nil
		}
		lastErr = err
	}
	return TelegramUser{}, fmt.Errorf("invalid initData: %w", lastErr)
}

func verifyAndParse(initData string, secret []byte, now time.Time) (TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return TelegramUser{}, fmt.Errorf("parse query: %w", err)
	}

	received := values.Get("hash")
	if received == "" {
		return TelegramUser{}, fmt.Errorf("hash is missing")
	}
	values.Del("hash")

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString(values)))
	calculated := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(calculated), []byte(received)) {
		return TelegramUser{}, fmt.Errorf("signature mismatch")
	}

	if ts := values.Get("auth_date"); ts != "" {
		var unix int64
		if _, err := fmt.Sscan(ts, &unix); err == nil {
			authTime := time.Unix(unix, 0)
			if now.Sub(authTime) > initDataMaxAge {
				return TelegramUser{}, fmt.Errorf("initData expired")
			}
			if authTime.Sub(now) > initDataMaxSkew {
				return TelegramUser{}, fmt.Errorf("initData from the future (check server time)")
			}
		}
	}

	return parseUser(values.Get("user"))
}

// dataCheckString is every field but hash, sorted, as key=value lines.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values.Get(k))
	}
	return strings.Join(parts, "\n")
}

func parseUser(raw string) (TelegramUser, error) {
	if raw == "" {
		return TelegramUser{}, fmt.Errorf("user field is empty")
	}
	var user TelegramUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return TelegramUser{}, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == 0 {
		return TelegramUser{}, fmt.Errorf("user id is 0")
	}
	return user, nil
}

func webAppSecret(token string) []byte {
	h := hmac.New(sha256.New, []byte("WebAppData"))
	h.Write([]byte(token))
	return h.Sum(nil)
}
