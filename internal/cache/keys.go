package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"bulletsmith/internal/types"
)

// SHA256Hex returns the hex-encoded SHA-256 digest of s
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// DescriptionHash fingerprints a job description. The text is trimmed and
// lowercased before hashing so trailing whitespace or casing differences do
// not defeat the signal cache.
func DescriptionHash(description string) string {
	return SHA256Hex(strings.ToLower(strings.TrimSpace(description)))
}

// IdempotencyKey derives the deterministic fingerprint of a job's inputs:
// SHA-256 over the job id, description hash, ordered bullet list and the
// canonical settings encoding, joined with "::" (bullets joined with "||").
// Struct fields marshal in declaration order, so the settings encoding is
// stable across runs.
func IdempotencyKey(jobID, descriptionHash string, bullets []string, settings types.JobSettings) string {
	settingsJSON, _ := json.Marshal(settings)
	combined := jobID + "::" + descriptionHash + "::" + strings.Join(bullets, "||") + "::" + string(settingsJSON)
	return SHA256Hex(combined)
}
