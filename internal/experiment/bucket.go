package experiment

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Bucket maps (userID, experimentKey) onto a deterministic bucket in
// [0,100). It hashes "userID:experimentKey" with SHA-256 and reduces the
// first four digest bytes mod 100. The cryptographic hash matters here:
// it keeps buckets near-uniform and makes it impractical for a client to
// craft user IDs that land in a chosen variant.
func Bucket(userID, experimentKey string) int {
	sum := sha256.Sum256([]byte(userID + ":" + experimentKey))
	return int(binary.BigEndian.Uint32(sum[:4]) % 100)
}

// SelectVariant walks the allocation in its authored order, accumulating
// percentages, and returns the first variant whose cumulative threshold
// exceeds bucket. If the percentages sum to less than 100 and no threshold
// is reached, the last variant wins.
func SelectVariant(allocation []Split, bucket int) (string, error) {
	if len(allocation) == 0 {
		return "", fmt.Errorf("empty allocation: %w", ErrInvalidAllocation)
	}
	cumulative := 0
	for _, s := range allocation {
		if s.Percent < 0 {
			return "", fmt.Errorf("variant %s: %w", s.Variant, ErrInvalidAllocation)
		}
		cumulative += s.Percent
		if bucket < cumulative {
			return s.Variant, nil
		}
	}
	return allocation[len(allocation)-1].Variant, nil
}

// Assign is the pure composition of Bucket and SelectVariant for one
// experiment.
func (e *Experiment) Assign(userID string) (string, error) {
	return SelectVariant(e.Allocation, Bucket(userID, e.Key))
}
