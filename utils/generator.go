package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const credentialSuffixLength = 6

var ErrInvalidID = errors.New("invalid identifier")

// NewCredentialID builds the human readable code printed on a certificate.
// The suffix is random; uniqueness is probabilistic only.
func NewCredentialID(courseCode string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:credentialSuffixLength]
	return fmt.Sprintf("CERT-%s-%s", courseCode, strings.ToUpper(suffix))
}

// ParseID validates an identifier coming from a path, form or token claim.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}
