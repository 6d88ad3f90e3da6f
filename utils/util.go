package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// MakeHash returns a deterministic, filename-safe hash of the given string
func MakeHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// JoinPath joins a directory and a file name
func JoinPath(dir string, name string) string {
	return filepath.Join(dir, name)
}

func ParseTime(t string) (time.Time, error) {
	return time.Parse(time.RFC3339, t)
}

func MakeTimeToString(t time.Time) string {
	return t.Format(time.RFC3339)
}
