package auth

import (
	"golang.org/x/crypto/bcrypt"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
)

// KeyHasher defines hashing strategy for operator credentials.
type KeyHasher interface {
	Hash(key string) (string, error)
	Compare(hash string, key string) error
}

// BcryptHasher uses bcrypt to hash keys.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates BcryptHasher with provided cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns bcrypt hash for provided key.
func (h *BcryptHasher) Hash(key string) (string, error) {
	encoded, err := bcrypt.GenerateFromPassword([]byte(key), h.cost)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Compare checks key against stored hash.
func (h *BcryptHasher) Compare(hash string, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}

// OperatorGuard admits restaurant staff presenting the configured operator key.
type OperatorGuard struct {
	hash   string
	hasher KeyHasher
}

// NewOperatorGuard builds a guard. An empty hash disables operator access entirely.
func NewOperatorGuard(hash string, hasher KeyHasher) *OperatorGuard {
	return &OperatorGuard{hash: hash, hasher: hasher}
}

// Enabled reports whether an operator key is configured.
func (g *OperatorGuard) Enabled() bool {
	return g.hash != ""
}

// Verify returns ErrUnauthorized unless key matches the configured hash.
func (g *OperatorGuard) Verify(key string) error {
	if !g.Enabled() || key == "" {
		return domainErrors.ErrUnauthorized
	}
	if err := g.hasher.Compare(g.hash, key); err != nil {
		return domainErrors.ErrUnauthorized
	}
	return nil
}
