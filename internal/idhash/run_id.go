package idhash

import (
	"strings"
	"time"
)

// ComputeRunID derives a refresh run id from its start time.
// Format: UTC RFC3339 with milliseconds, ':' and '.' replaced by '-'.
func ComputeRunID(startedAt time.Time) string {
	iso := startedAt.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}
