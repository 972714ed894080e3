package notion

import (
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/google/uuid"
)

var idPattern = regexp.MustCompile(`(?i)([0-9a-f]{32}|[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`)

// RecordID is the canonical identifier of a record: 32 lowercase hex digits, no hyphens
type RecordID string

func (id RecordID) String() string {
	return string(id)
}

// ExtractID finds the first record identifier embedded in a shareable URL.
// Hyphenated and bare forms of the same identifier yield the same RecordID.
func ExtractID(url string) (RecordID, error) {
	token := idPattern.FindString(url)
	if token == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidURL, url)
	}
	return normalizeID(token)
}

func normalizeID(token string) (RecordID, error) {
	u, err := uuid.Parse(token)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidURL, token)
	}
	return RecordID(hex.EncodeToString(u[:])), nil
}
