package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Bool reads an environment variable and returns a boolean value.
// Only "true" or "false" (case-insensitive) are recognised; any other
// value results in the provided default.
func Bool(key string, defaultValue bool) bool {
	val := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch val {
	case "":
		return defaultValue
	case "true":
		return true
	case "false":
		return false
	default:
		return defaultValue
	}
}

// Debug reports whether SMTP_DEBUG asks for protocol tracing. Besides the
// values understood by Bool it accepts "1".
func Debug() bool {
	if strings.TrimSpace(os.Getenv("SMTP_DEBUG")) == "1" {
		return true
	}
	return Bool("SMTP_DEBUG", false)
}

// LoadDotEnv seeds the process environment from the given dotenv files.
// Variables already set win over file values. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}
