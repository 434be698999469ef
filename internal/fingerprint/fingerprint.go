package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FromNameSize derives a stable identity for a file from its name and size.
// Two distinct files sharing a name and size collide on purpose: re-selecting
// the same folder must map onto the same cache entries.
func FromNameSize(name string, sizeBytes int64) string {
	key := fmt.Sprintf("%s|%d", strings.TrimSpace(name), sizeBytes)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// FromContent derives an identity from the file content itself. Preferred over
// FromNameSize when the payload is already in memory.
func FromContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ForFile picks the strongest available fingerprint for an input file.
func ForFile(name string, sizeBytes int64, content []byte) string {
	if len(content) > 0 {
		return FromContent(content)
	}
	return FromNameSize(name, sizeBytes)
}
