package models

import "time"

// SequenceCounter stores the last issued value for a per-scope monotonic
// counter. Counters start at 0, only ever increase, and are never removed,
// even when the owning nodes are deleted.
// Maps to: sequence_counter table
type SequenceCounter struct {
	// Scope is the assembled code prefix preceding the sequence segment
	Scope string `db:"scope" json:"scope"`

	// Last issued value; 0 means nothing allocated yet
	LastValue int64 `db:"last_value" json:"last_value"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
