package services

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Fingerprint returns the hex-encoded SHA-256 of data.
// Byte-identical inputs always match; any byte change produces a different hash.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintText is Fingerprint over the UTF-8 bytes of s.
func FingerprintText(s string) string {
	return Fingerprint([]byte(s))
}

// MetadataFingerprint hashes the manifest fields copied onto each chunk:
// path, title, tags and roles. Tag and role order does not matter.
func MetadataFingerprint(entry domain.ManifestEntry) string {
	var b strings.Builder
	writeField := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	writeList := func(values []string) {
		sorted := slices.Clone(values)
		slices.Sort(sorted)
		sorted = slices.Compact(sorted)
		b.WriteString(strconv.Itoa(len(sorted)))
		b.WriteByte('[')
		for _, v := range sorted {
			writeField(v)
		}
		b.WriteByte(']')
	}

	writeField(entry.PathOrURL)
	writeField(entry.Title)
	writeList(entry.Tags)
	writeList(entry.AllowedRoles)
	return FingerprintText(b.String())
}
