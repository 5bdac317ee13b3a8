package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

var (
	// ErrSignatureMissing is returned when signatures are required and the
	// delivery carried none.
	ErrSignatureMissing = errors.New("webhook signature missing")
	// ErrSignatureInvalid is returned when the supplied signature does not
	// match the body.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
)

// Verifier authenticates gateway webhook bodies with HMAC-SHA256.
type Verifier struct {
	secret           func() string
	requireSignature bool
}

// NewVerifier creates a Verifier. secret is called on every verification so
// rotated keys take effect without a restart.
func NewVerifier(secret func() string, requireSignature bool) *Verifier {
	return &Verifier{secret: secret, requireSignature: requireSignature}
}

// Verify reports whether signature is the hex HMAC-SHA256 of the exact raw
// body. Hex case is ignored. A malformed signature is logged and rejected.
func (v *Verifier) Verify(rawBody []byte, signature string) bool {
	secret := v.secret()
	if secret == "" {
		slog.Error("webhook integrity key is not configured")
		return false
	}

	supplied := strings.ToLower(strings.TrimSpace(signature))
	if len(supplied) != hex.EncodedLen(sha256.Size) {
		slog.Warn("malformed webhook signature", "length", len(supplied))
		return false
	}
	if _, err := hex.DecodeString(supplied); err != nil {
		slog.Warn("malformed webhook signature", "error", err)
		return false
	}

	expected := hmacHex(secret, rawBody)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

// Check applies the signature policy. An absent signature passes with a
// warning unless signatures are required.
func (v *Verifier) Check(rawBody []byte, signature string) error {
	if strings.TrimSpace(signature) == "" {
		if v.requireSignature {
			return ErrSignatureMissing
		}
		slog.Warn("accepting unsigned webhook delivery", "require_signature", false)
		return nil
	}
	if !v.Verify(rawBody, signature) {
		return ErrSignatureInvalid
	}
	return nil
}

// Sign returns the signature the gateway would send for rawBody.
func (v *Verifier) Sign(rawBody []byte) string {
	return hmacHex(v.secret(), rawBody)
}

// IntegritySignature is the checkout digest the gateway widget checks:
// hex SHA-256 of reference, amount, currency and the integrity key
// concatenated without separators.
func (v *Verifier) IntegritySignature(reference string, amountInCents int64, currency string) string {
	sum := sha256.Sum256([]byte(reference + strconv.FormatInt(amountInCents, 10) + currency + v.secret()))
	return hex.EncodeToString(sum[:])
}

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
