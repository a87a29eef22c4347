// Package streams appends JSON records to named, append-only streams and
// reads back the most recent ones.
package streams

import (
	"context"
	"regexp"
	"time"

	"github.com/teranos/opsgate/errors"
)

// Record is one entry of a stream
type Record struct {
	ID   string         `json:"id"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data"`
}

// Store is a durable stream store
type Store interface {
	// Append adds record to stream and returns the assigned id
	Append(ctx context.Context, stream string, record map[string]any) (string, error)

	// Read returns up to limit records, newest first
	Read(ctx context.Context, stream string, limit int64) ([]Record, error)
}

// MaxReadLimit caps a single Read
const MaxReadLimit = 1000

var streamNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// ValidateName checks a stream name
func ValidateName(stream string) error {
	if !streamNamePattern.MatchString(stream) {
		return errors.BadRequestf("invalid stream name %q", stream)
	}
	return nil
}

// clampLimit bounds limit to [1, MaxReadLimit]
func clampLimit(limit int64) int64 {
	if limit <= 0 {
		return 1
	}
	if limit > MaxReadLimit {
		return MaxReadLimit
	}
	return limit
}
