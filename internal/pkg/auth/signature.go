package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
)

const defaultSignatureTolerance = 5 * time.Minute

// HMACSigner signs and verifies gateway webhook payloads:
// base64(HMAC-SHA256(timestamp + body)).
type HMACSigner struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewHMACSigner builds HMACSigner with provided secret. Non-positive tolerance uses five minutes.
func NewHMACSigner(secret string, tolerance time.Duration) *HMACSigner {
	if tolerance <= 0 {
		tolerance = defaultSignatureTolerance
	}
	return &HMACSigner{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Sign returns the signature for timestamp and body.
func (s *HMACSigner) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature and rejects timestamps outside the tolerance window.
// Timestamps are epoch seconds or epoch milliseconds.
func (s *HMACSigner) Verify(timestamp string, body []byte, signature string) error {
	if len(s.secret) == 0 || signature == "" {
		return domainErrors.ErrInvalidSignature
	}

	epoch, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domainErrors.ErrInvalidSignature
	}
	var sent time.Time
	if epoch > 1e12 {
		sent = time.UnixMilli(epoch)
	} else {
		sent = time.Unix(epoch, 0)
	}
	if skew := s.now().Sub(sent); skew > s.tolerance || skew < -s.tolerance {
		return domainErrors.ErrInvalidSignature
	}

	expected := s.Sign(timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domainErrors.ErrInvalidSignature
	}
	return nil
}
