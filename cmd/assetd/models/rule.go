package models

import (
	"time"
)

// SegmentKind discriminates the closed set of template segment variants
type SegmentKind string

const (
	// SegmentLiteral inserts fixed text verbatim
	SegmentLiteral SegmentKind = "literal"
	// SegmentCategoryRef inserts the label resolved for a dictionary token
	SegmentCategoryRef SegmentKind = "category_ref"
	// SegmentParentCode inserts the parent node's code
	SegmentParentCode SegmentKind = "parent_code"
	// SegmentSequence inserts the allocated counter value, zero-padded
	SegmentSequence SegmentKind = "sequence"
)

// Segment is one atomic piece of a code template. The populated field
// depends on Kind; registration validates the combination exhaustively.
type Segment struct {
	Kind SegmentKind `json:"kind"`

	// Literal text (kind=literal)
	Value string `json:"value,omitempty"`

	// Dictionary category to resolve the caller's token in (kind=category_ref)
	DictionaryCategory string `json:"dictionary_category,omitempty"`

	// Zero-padding width for the rendered counter (kind=sequence)
	PadWidth int `json:"pad_width,omitempty"`
}

// CodeRule is a named code-generation template
// Maps to: code_rule table (segments stored as JSONB)
type CodeRule struct {
	// Unique rule key, e.g. "DEVICE_CODE"
	RuleCode string `db:"rule_code" json:"rule_code"`

	Name string `db:"name" json:"name"`

	// Hierarchy level the rule produces codes for (1-5)
	Level int `db:"level" json:"level"`

	// Optional CEL guard over the scope inputs; empty means always allowed
	Guard string `db:"guard" json:"guard,omitempty"`

	// Ordered segments; exactly one must be of kind sequence
	Segments []Segment `db:"segments" json:"segments"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SequenceSegment returns the rule's sequence segment and its position,
// or -1 when the rule carries none (rejected at registration).
func (r *CodeRule) SequenceSegment() (Segment, int) {
	for i, seg := range r.Segments {
		if seg.Kind == SegmentSequence {
			return seg, i
		}
	}
	return Segment{}, -1
}

// HasParentRef reports whether any segment inserts the parent's code
func (r *CodeRule) HasParentRef() bool {
	for _, seg := range r.Segments {
		if seg.Kind == SegmentParentCode {
			return true
		}
	}
	return false
}
