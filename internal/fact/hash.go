package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DomainItem is the domain prefix for Item integrity digests.
// Version suffix enables future algorithm migration.
const DomainItem = "soil/item/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ItemIntegrityHash computes the content digest of an Item.
//
// The digest covers type, canonical_at, and data only. UUID, realized_at,
// fidelity, and metadata are excluded so that the same source content,
// imported twice or by two different providers, hashes identically.
// A nil canonicalAt hashes differently from a present one (the key is
// omitted, not nulled).
//
// Returns an error if data cannot be canonically marshaled (floats, nulls).
func ItemIntegrityHash(itemType string, canonicalAt *time.Time, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	obj := map[string]any{
		"type": itemType,
		"data": data,
	}
	if canonicalAt != nil {
		obj["canonical_at"] = canonicalAt.UTC().Format(time.RFC3339Nano)
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ItemIntegrityHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainItem, canonical), nil
}

// MustItemIntegrityHash is like ItemIntegrityHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustItemIntegrityHash(itemType string, canonicalAt *time.Time, data map[string]any) string {
	digest, err := ItemIntegrityHash(itemType, canonicalAt, data)
	if err != nil {
		panic(err)
	}
	return digest
}
