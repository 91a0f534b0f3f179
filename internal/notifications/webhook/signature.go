package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names set on every delivery.
const (
	HeaderSignature = "X-GreenQuote-Signature"
	HeaderEvent     = "X-GreenQuote-Event"
	HeaderDelivery  = "X-GreenQuote-Delivery"
)

// DefaultTolerance bounds the age of a signature accepted by Verify.
const DefaultTolerance = 5 * time.Minute

var (
	ErrSignatureMalformed = errors.New("webhook signature: malformed header")
	ErrSignatureMismatch  = errors.New("webhook signature: no matching signature")
	ErrSignatureExpired   = errors.New("webhook signature: timestamp outside tolerance")
)

// Sign returns the signature header value for payload:
//
//	t=<unix>,v1=<hex HMAC-SHA256 of "<unix>.<payload>">
func Sign(payload []byte, secret string, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("webhook signature: empty secret")
	}
	timestamp := now.Unix()
	v1 := computeHMAC(fmt.Sprintf("%d.%s", timestamp, payload), secret)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, v1), nil
}

// Verify checks a signature header the way a receiving endpoint should.
// Any v1 entry may match, which lets a sender list several signatures.
func Verify(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	parts := parseSignatureHeader(header)
	if parts.timestamp == "" || len(parts.v1) == 0 {
		return ErrSignatureMalformed
	}

	ts, err := strconv.ParseInt(parts.timestamp, 10, 64)
	if err != nil {
		return ErrSignatureMalformed
	}
	if age := now.Sub(time.Unix(ts, 0)); age > tolerance || age < -tolerance {
		return ErrSignatureExpired
	}

	expected := computeHMAC(fmt.Sprintf("%s.%s", parts.timestamp, payload), secret)
	for _, sig := range parts.v1 {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// signatureParts holds the parsed components of a signature header.
type signatureParts struct {
	timestamp string
	v1        []string
}

// parseSignatureHeader breaks "t=<unix>,v1=<hex>[,v1=<hex>...]" into parts.
func parseSignatureHeader(header string) signatureParts {
	var parts signatureParts
	for _, segment := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			parts.timestamp = strings.TrimSpace(value)
		case "v1":
			parts.v1 = append(parts.v1, strings.TrimSpace(value))
		}
	}
	return parts
}

// computeHMAC computes the HMAC-SHA256 of content using the given key
// and returns it as a lowercase hex string.
func computeHMAC(content, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}
