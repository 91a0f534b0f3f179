package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceHMAC computes HMAC-SHA256 independently for test verification.
func referenceHMAC(content, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

var sigNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestSign_Format(t *testing.T) {
	payload := []byte(`{"event":"quote.created"}`)
	secret := "whsec_test_secret_123"

	header, err := Sign(payload, secret, sigNow)
	require.NoError(t, err)

	expected := fmt.Sprintf("t=%d,v1=%s", sigNow.Unix(),
		referenceHMAC(fmt.Sprintf("%d.%s", sigNow.Unix(), payload), secret))
	assert.Equal(t, expected, header)
}

func TestSign_EmptySecret(t *testing.T) {
	_, err := Sign([]byte("{}"), "", sigNow)
	assert.Error(t, err)
}

func TestVerify_RoundTrip(t *testing.T) {
	payload := []byte(`{"quote":{"id":"q_1"}}`)
	header, err := Sign(payload, "s3cret", sigNow)
	require.NoError(t, err)

	assert.NoError(t, Verify(payload, header, "s3cret", sigNow.Add(time.Minute), DefaultTolerance))
}

func TestVerify_Failures(t *testing.T) {
	payload := []byte(`{"quote":{"id":"q_1"}}`)
	header, err := Sign(payload, "s3cret", sigNow)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		now     time.Time
		want    error
	}{
		{"wrong secret", payload, header, "other", sigNow, ErrSignatureMismatch},
		{"tampered body", []byte(`{"quote":{"id":"q_2"}}`), header, "s3cret", sigNow, ErrSignatureMismatch},
		{"too old", payload, header, "s3cret", sigNow.Add(10 * time.Minute), ErrSignatureExpired},
		{"from the future", payload, header, "s3cret", sigNow.Add(-10 * time.Minute), ErrSignatureExpired},
		{"no timestamp", payload, "v1=abc", "s3cret", sigNow, ErrSignatureMalformed},
		{"bad timestamp", payload, "t=abc,v1=abc", "s3cret", sigNow, ErrSignatureMalformed},
		{"empty", payload, "", "s3cret", sigNow, ErrSignatureMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Verify(tt.payload, tt.header, tt.secret, tt.now, DefaultTolerance), tt.want)
		})
	}
}

func TestVerify_AnyV1Matches(t *testing.T) {
	payload := []byte(`{}`)
	good := referenceHMAC(fmt.Sprintf("%d.%s", sigNow.Unix(), payload), "s3cret")
	header := fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", sigNow.Unix(), good)

	assert.NoError(t, Verify(payload, header, "s3cret", sigNow, DefaultTolerance))
}

func TestParseSignatureHeader_IgnoresUnknownKeys(t *testing.T) {
	parts := parseSignatureHeader("t=1, v0=zzz ,v1=abc,garbage")
	assert.Equal(t, "1", parts.timestamp)
	assert.Equal(t, []string{"abc"}, parts.v1)
}
