package intel

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint derives the deterministic dedup key for an opportunity from its
// agency, NAICS codes, title and solicitation number. Case, surrounding and
// repeated whitespace, and NAICS ordering do not affect the result.
func Fingerprint(agency string, naicsCodes []string, title, solicitation string) string {
	codes := make([]string, 0, len(naicsCodes))
	for _, c := range naicsCodes {
		c = strings.TrimSpace(c)
		if c != "" {
			codes = append(codes, c)
		}
	}
	sort.Strings(codes)

	parts := []string{
		normalize(agency),
		strings.Join(codes, ","),
		normalize(title),
		normalize(solicitation),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// normalize lowercases and collapses all whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
