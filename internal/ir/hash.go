package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainRecord = "remap/record/v1"
	DomainBatch  = "remap/batch/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordHash computes the content hash of one record. Attribute order,
// reference display names and option labels do not affect it.
func RecordHash(r *Record) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("RecordHash: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// BatchHash computes the content hash of a batch. Record order matters:
// import order is part of a snapshot's meaning.
func BatchHash(b Batch) (string, error) {
	items := make([]any, len(b.Records))
	for i, r := range b.Records {
		items[i] = r
	}
	canonical, err := MarshalCanonical(map[string]any{
		"type":    b.Type,
		"records": items,
	})
	if err != nil {
		return "", fmt.Errorf("BatchHash: %w", err)
	}
	return hashWithDomain(DomainBatch, canonical), nil
}
