package usecase

import (
	"strings"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
)

// NormalizeOrderID checks that id is a UUID and returns its canonical form.
func NormalizeOrderID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", domainErrors.ErrInvalidOrderID
	}
	return parsed.String(), nil
}
