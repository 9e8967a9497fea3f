package secrets

import (
	"net/url"
	"strings"
	"testing"
)

func fixedKey() []byte {
	return []byte(strings.Repeat("k", 32))
}

func TestParseKey_Valid(t *testing.T) {
	raw := strings.Repeat("a", 40)
	key, err := ParseKey(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(key) != raw {
		t.Fatalf("expected raw key to match, got %q", string(key))
	}
}

func TestParseKey_TooShort(t *testing.T) {
	_, err := ParseKey("short")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseKey_Empty(t *testing.T) {
	_, err := ParseKey("")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "AUTH_SECRET is required" {
		t.Fatalf("unexpected error %q", err.Error())
	}
}

func TestSignAndVerify(t *testing.T) {
	signed := SignValue(fixedKey(), "tok123")
	if !strings.HasPrefix(signed, "tok123.") {
		t.Fatalf("expected value prefix, got %q", signed)
	}
	value, ok := VerifySignedValue(fixedKey(), signed)
	if !ok {
		t.Fatal("expected signature to verify")
	}
	if value != "tok123" {
		t.Fatalf("expected tok123, got %q", value)
	}
}

func TestVerifySignedValue_URLEncoded(t *testing.T) {
	signed := url.QueryEscape(SignValue(fixedKey(), "tok.with.dots"))
	value, ok := VerifySignedValue(fixedKey(), signed)
	if !ok {
		t.Fatal("expected encoded signature to verify")
	}
	if value != "tok.with.dots" {
		t.Fatalf("expected tok.with.dots, got %q", value)
	}
}

func TestVerifySignedValue_Rejects(t *testing.T) {
	good := SignValue(fixedKey(), "tok123")
	otherKey := []byte(strings.Repeat("x", 32))
	cases := map[string]string{
		"empty":        "",
		"no separator": "tok123",
		"leading dot":  "." + strings.Repeat("A", 43) + "=",
		"short sig":    "tok123.abc=",
		"tampered":     "tok124" + good[len("tok123"):],
		"bad base64":   "tok123." + strings.Repeat("!", 43) + "=",
		"wrong key":    SignValue(otherKey, "tok123"),
	}
	for name, signed := range cases {
		if _, ok := VerifySignedValue(fixedKey(), signed); ok {
			t.Fatalf("%s: expected verification to fail", name)
		}
	}
}
