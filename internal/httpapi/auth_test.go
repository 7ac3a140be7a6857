package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"
)

const testToken = "123456:ABCDEF"

func TestValidateInitDataOK(t *testing.T) {
	user := TelegramUser{ID: 42, Username: "redaktion"}

	initData := buildSignedInitData(t, testToken, user, time.Now())

	got, err := validateInitData(initData, testToken, time.Now())
	if err != nil {
		t.Fatalf("expected valid initData, got error: %v", err)
	}
	if got.ID != user.ID || got.Username != user.Username {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestValidateInitDataSpacesForPlus(t *testing.T) {
	user := TelegramUser{ID: 42, FirstName: "Anna Lena"}

	initData := buildSignedInitData(t, testToken, user, time.Now())
	mangled := strings.ReplaceAll(initData, "+", " ")

	if _, err := validateInitData(mangled, testToken, time.Now()); err != nil {
		t.Fatalf("expected mangled initData to validate, got %v", err)
	}
}

func TestValidateInitDataInvalidHash(t *testing.T) {
	user := TelegramUser{ID: 7, Username: "bad"}

	initData := buildSignedInitData(t, testToken, user, time.Now())
	values, _ := url.ParseQuery(initData)
	values.Set("hash", "deadbeef")

	if _, err := validateInitData(values.Encode(), testToken, time.Now()); err == nil {
		t.Fatal("expected hash mismatch error")
	}
}

func TestValidateInitDataWrongToken(t *testing.T) {
	initData := buildSignedInitData(t, testToken, TelegramUser{ID: 7}, time.Now())

	if _, err := validateInitData(initData, "654321:OTHER", time.Now()); err == nil {
		t.Fatal("expected signature mismatch for another bot")
	}
}

func TestValidateInitDataExpired(t *testing.T) {
	past := time.Now().Add(-25 * time.Hour)
	initData := buildSignedInitData(t, testToken, TelegramUser{ID: 99}, past)

	if _, err := validateInitData(initData, testToken, time.Now()); err == nil {
		t.Fatal("expected expiration error")
	}
}

func TestAdminAuth(t *testing.T) {
	auth := NewAdminAuth(testToken, []int64{42})
	if !auth.Enabled() {
		t.Fatal("auth with token must be enabled")
	}

	if _, err := auth.Authorize(""); !errors.Is(err, ErrInitDataMissing) {
		t.Fatalf("expected ErrInitDataMissing, got %v", err)
	}

	admin := buildSignedInitData(t, testToken, TelegramUser{ID: 42}, time.Now())
	if _, err := auth.Authorize(admin); err != nil {
		t.Fatalf("admin rejected: %v", err)
	}

	stranger := buildSignedInitData(t, testToken, TelegramUser{ID: 43}, time.Now())
	if _, err := auth.Authorize(stranger); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}

	if NewAdminAuth("", nil).Enabled() {
		t.Fatal("auth without token must be disabled")
	}
}

func buildSignedInitData(t *testing.T, token string, user TelegramUser, ts time.Time) string {
	t.Helper()

	values := url.Values{}
	values.Set("user", mustJSON(t, user))
	values.Set("auth_date", fmt.Sprint(ts.Unix()))
	values.Set("query_id", "AAEAAAE")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	_, _ = secret.Write([]byte(token))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	_, _ = mac.Write([]byte(dataCheckString(values)))

	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return string(b)
}
