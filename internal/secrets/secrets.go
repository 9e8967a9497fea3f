package secrets

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

const minKeyLength = 32

// signatureLength is the length of a standard-base64 HMAC-SHA256 digest.
var signatureLength = base64.StdEncoding.EncodedLen(sha256.Size)

func sign(key []byte, value string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

func ParseKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, errors.New("AUTH_SECRET is required")
	}
	if len(raw) < minKeyLength {
		return nil, errors.New("AUTH_SECRET must be at least 32 characters")
	}
	return []byte(raw), nil
}

// SignValue returns value.signature, the form the auth service writes into
// its session cookie before URL-encoding it.
func SignValue(key []byte, value string) string {
	return value + "." + base64.StdEncoding.EncodeToString(sign(key, value))
}

// VerifySignedValue checks a signed cookie value and returns the unsigned
// part. The value may still be URL-encoded.
func VerifySignedValue(key []byte, signed string) (string, bool) {
	if decoded, err := url.PathUnescape(signed); err == nil {
		signed = decoded
	}
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 {
		return "", false
	}
	value, signature := signed[:idx], signed[idx+1:]
	if len(signature) != signatureLength || !strings.HasSuffix(signature, "=") {
		return "", false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, sign(key, value)) {
		return "", false
	}
	return value, true
}
