package types

import (
	"fmt"
	"strings"
)

// Bucket is the liquidity classification of an instrument. It selects
// per-bucket parameters everywhere: regime thresholds, sweep multipliers,
// and liquidation guards.
type Bucket int

const (
	BucketMajors Bucket = iota
	BucketMidCaps
	BucketMicros
)

func (b Bucket) String() string {
	switch b {
	case BucketMajors:
		return "MAJORS"
	case BucketMidCaps:
		return "MIDCAPS"
	case BucketMicros:
		return "MICROS"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the bucket as its name, so JSON maps keyed by
// Bucket read "majors"/"midcaps"/"micros" instead of integers.
func (b Bucket) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(b.String())), nil
}

// UnmarshalText parses a bucket name, case-insensitively.
func (b *Bucket) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "majors":
		*b = BucketMajors
	case "midcaps", "mid-caps":
		*b = BucketMidCaps
	case "micros":
		*b = BucketMicros
	default:
		return fmt.Errorf("unknown bucket %q", string(text))
	}
	return nil
}
