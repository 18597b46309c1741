package service

import (
	"fmt"
	"strings"
	"unicode"
)

// ResolvedParts holds the textual pieces of a code after every
// non-sequence segment has been resolved, in segment order. The entry at
// SequenceIndex is empty and is filled in during assembly.
type ResolvedParts struct {
	Parts         []string
	SequenceIndex int
	PadWidth      int
}

// Scope derives the allocation scope key from the parts preceding the
// sequence segment. Separator characters are stripped so cosmetic
// punctuation in the template does not split counters: a rule
// M + gj + "-" + XC + seq allocates under "MgjXC", and its codes read
// "Mgj-XC001", "Mgj-XC002", ...
func (p *ResolvedParts) Scope() string {
	var b strings.Builder
	for _, part := range p.Parts[:p.SequenceIndex] {
		for _, r := range part {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Assemble formats the final code: resolved parts verbatim, with the
// sequence value zero-padded to the rule's pad width. Pure formatting,
// no allocator state touched.
func Assemble(parts *ResolvedParts, sequenceValue int64) string {
	var b strings.Builder
	for i, part := range parts.Parts {
		if i == parts.SequenceIndex {
			b.WriteString(fmt.Sprintf("%0*d", parts.PadWidth, sequenceValue))
			continue
		}
		b.WriteString(part)
	}
	return b.String()
}
