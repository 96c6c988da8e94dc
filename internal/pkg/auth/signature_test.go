package auth

import (
	"errors"
	"strconv"
	"testing"
	"time"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
)

func fixedSigner(secret string, now time.Time) *HMACSigner {
	s := NewHMACSigner(secret, time.Minute)
	s.now = func() time.Time { return now }
	return s
}

func TestNewHMACSigner_DefaultTolerance(t *testing.T) {
	s := NewHMACSigner("secret", 0)
	if s.tolerance != defaultSignatureTolerance {
		t.Fatalf("unexpected tolerance: %s", s.tolerance)
	}
}

func TestHMACSigner_SignAndVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := fixedSigner("secret", now)
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK"}`)

	cases := []struct {
		name      string
		timestamp string
	}{
		{"seconds", strconv.FormatInt(now.Unix(), 10)},
		{"milliseconds", strconv.FormatInt(now.UnixMilli(), 10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := s.Sign(tc.timestamp, body)
			if err := s.Verify(tc.timestamp, body, sig); err != nil {
				t.Fatalf("expected valid signature, got %v", err)
			}
		})
	}
}

func TestHMACSigner_Rejects(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := fixedSigner("secret", now)
	body := []byte(`{}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	valid := s.Sign(ts, body)

	stale := strconv.FormatInt(now.Add(-2*time.Minute).Unix(), 10)
	future := strconv.FormatInt(now.Add(2*time.Minute).Unix(), 10)

	cases := []struct {
		name      string
		signer    *HMACSigner
		timestamp string
		body      []byte
		signature string
	}{
		{"tampered body", s, ts, []byte(`{"x":1}`), valid},
		{"wrong secret", fixedSigner("other", now), ts, body, valid},
		{"empty signature", s, ts, body, ""},
		{"bad timestamp", s, "yesterday", body, valid},
		{"stale timestamp", s, stale, body, s.Sign(stale, body)},
		{"future timestamp", s, future, body, s.Sign(future, body)},
		{"no secret", fixedSigner("", now), ts, body, valid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.signer.Verify(tc.timestamp, tc.body, tc.signature); !errors.Is(err, domainErrors.ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}
