package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SaveMessage archives the payload sent for one queued message under
// dir/<yyyy-mm-dd>/<id>_<recipient hash>.eml.
func SaveMessage(dir, id, recipient string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("empty archive directory")
	}
	safeID, err := sanitizeComponent(id)
	if err != nil {
		return "", err
	}
	recipientToken := hashRecipient(recipient)

	dayDir := filepath.Join(dir, time.Now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0o700); err != nil {
		return "", err
	}
	filename := filepath.Join(dayDir, fmt.Sprintf("%s_%s.eml", safeID, recipientToken))
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", err
	}
	return filename, nil
}

func sanitizeComponent(v string) (string, error) {
	if strings.ContainsAny(v, "/\\") || strings.Contains(v, "..") {
		return "", errors.New("invalid identifier")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New("empty identifier")
	}
	return v, nil
}

func hashRecipient(addr string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(addr))))
	return hex.EncodeToString(sum[:8])
}
