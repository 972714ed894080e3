package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/grow-sync/internal/ledger"
)

// DecodeRunCursor parses an opaque page cursor; an empty string means the first page
func DecodeRunCursor(cursorStr string) (*ledger.RunCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var processedAt, id int64
	if _, err := fmt.Sscanf(parts[0], "%d", &processedAt); err != nil {
		return nil, fmt.Errorf("invalid processed_at in cursor: %w", err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &id); err != nil {
		return nil, fmt.Errorf("invalid id in cursor: %w", err)
	}

	return &ledger.RunCursor{
		ProcessedAt: time.Unix(0, processedAt).UTC(),
		ID:          id,
	}, nil
}

func EncodeRunCursor(cursor ledger.RunCursor) string {
	cs := fmt.Sprintf("%d|%d", cursor.ProcessedAt.UnixNano(), cursor.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
