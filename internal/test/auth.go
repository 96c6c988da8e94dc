package test

import (
	"errors"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	pkgAuth "github.com/polkiloo/servenow/internal/pkg/auth"
)

// HasherStub provides deterministic hashing for tests.
type HasherStub struct {
	HashFn    func(string) (string, error)
	CompareFn func(string, string) error
}

// Hash returns a predictable hash for the supplied key.
func (h HasherStub) Hash(key string) (string, error) {
	if h.HashFn != nil {
		return h.HashFn(key)
	}
	return "hash:" + key, nil
}

// Compare validates key against stored hash.
func (h HasherStub) Compare(hash string, key string) error {
	if h.CompareFn != nil {
		return h.CompareFn(hash, key)
	}
	if hash != "hash:"+key {
		return errors.New("mismatch")
	}
	return nil
}

// KeyVerifierStub accepts a single operator key.
type KeyVerifierStub struct {
	Key string
	Err error
}

// Verify returns Err when set, otherwise ErrUnauthorized for any key but Key.
func (s KeyVerifierStub) Verify(key string) error {
	if s.Err != nil {
		return s.Err
	}
	if s.Key == "" || key != s.Key {
		return domainErrors.ErrUnauthorized
	}
	return nil
}

// SignatureVerifierStub accepts a single signature value.
type SignatureVerifierStub struct {
	Signature string
}

// Verify accepts only the configured signature.
func (s SignatureVerifierStub) Verify(timestamp string, body []byte, signature string) error {
	if s.Signature == "" || signature != s.Signature {
		return domainErrors.ErrInvalidSignature
	}
	return nil
}

var _ pkgAuth.KeyHasher = HasherStub{}
