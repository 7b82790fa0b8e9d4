package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRemoval  = "multiview/removal/v1"
	DomainSnapshot = "multiview/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RemovalID computes the content-addressed ID of a removal event.
// The ID field of r is ignored. Two removals differ in identity or seq, so
// IDs never collide for distinct events.
func RemovalID(r Removal) (string, error) {
	obj := IRObject{
		"key":      IRString(r.Key),
		"identity": IRString(r.Identity),
		"cause":    IRString(string(r.Cause)),
		"view":     IRString(r.View),
		"bucket":   IRString(r.Bucket),
		"seq":      IRInt(r.Seq),
		"latency":  IRInt(r.Latency),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RemovalID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRemoval, canonical), nil
}

// MustRemovalID is RemovalID that panics on error. Removal fields are all
// strings and ints, so marshaling cannot fail in practice.
func MustRemovalID(r Removal) string {
	id, err := RemovalID(r)
	if err != nil {
		panic(err)
	}
	return id
}

// SnapshotDigest hashes the live content of a snapshot: profile (and its
// stored source, when present), clock and records ordered by seq. Two engines with equal digests answer every find
// identically. View backing entries are excluded because stale entries are
// not observable.
func SnapshotDigest(s Snapshot) (string, error) {
	recs := make(IRArray, len(s.Records))
	for i, r := range s.Records {
		obj := r.ToIRObject()
		obj["identity"] = IRString(r.Identity)
		recs[i] = obj
	}
	obj := IRObject{
		"profile": IRString(s.Profile),
		"clock":   IRInt(s.Clock),
		"records": recs,
	}
	if s.ProfileSource != "" {
		obj["profile_source"] = IRString(s.ProfileSource)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}
