// Package metrics provides constants used across metric definitions.
package metrics

// Label value constants used for metric labels.
const (
	// LabelSuccess is the status label for successful operations.
	LabelSuccess = "success"
	// LabelError is the status label for failed operations.
	LabelError = "error"
	// LabelHit is the status label for session loads that found a record.
	LabelHit = "hit"
	// LabelMiss is the status label for session loads with no record on disk.
	LabelMiss = "miss"
	// LabelCorrupt is the status label for session loads that discarded a malformed record.
	LabelCorrupt = "corrupt"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart1s is the starting bucket for 1s histograms (1s to ~17min range).
	BucketStart1s = 1.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
)
