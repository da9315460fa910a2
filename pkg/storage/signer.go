package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer creates and validates download tokens of the form scope.exp.path.sig.
type Signer struct {
	secret []byte
}

// NewSigner constructs a signer with the provided secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns a token granting access to relPath inside scope until expiresAt.
func (s *Signer) Sign(scope, relPath string, expiresAt time.Time) (string, error) {
	if scope == "" || relPath == "" {
		return "", fmt.Errorf("scope and path required")
	}
	if strings.Contains(scope, ".") {
		return "", fmt.Errorf("scope must not contain dots")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	return strings.Join([]string{scope, exp, encodedPath, s.mac(scope, exp, encodedPath)}, "."), nil
}

// Verify validates a token against now and returns its scope and path.
func (s *Signer) Verify(token string, now time.Time) (scope, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrInvalidToken
	}
	scope, exp, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(scope, exp, encodedPath)), []byte(signature)) {
		return "", "", time.Time{}, ErrInvalidToken
	}

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}

	expiresAt = time.Unix(expUnix, 0)
	if now.After(expiresAt) {
		return "", "", expiresAt, ErrTokenExpired
	}
	return scope, string(rawPath), expiresAt, nil
}

func (s *Signer) mac(scope, exp, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(scope + "|" + exp + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
