// Package diag collects per-frame decode diagnostics.
//
// Frame-level problems (checksum mismatches, truncated or inconsistent
// frames, unknown section codes, resynchronisation outcomes) never abort a
// decode. They accumulate in a List that is returned to the caller alongside
// the decoded series, so the caller decides whether to log, warn, or abort.
package diag

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Kind classifies a diagnostic entry.
type Kind uint8

const (
	// KindStructural marks a frame whose declared length ran past the buffer
	// or whose sub-section lengths contradicted the declared total.
	KindStructural Kind = iota + 1
	// KindIntegrity marks a frame whose recomputed checksum did not match
	// the stored trailing value and that resynchronisation could not recover.
	KindIntegrity
	// KindUnsupportedSection marks a section type code with no decoder.
	KindUnsupportedSection
	// KindResync marks a frame boundary rewritten by the resynchroniser;
	// the row is kept but flagged estimated in the series.
	KindResync
	// KindDuplicate marks a candidate discarded as a duplicated or
	// retransmitted block during resynchronisation.
	KindDuplicate
	// KindDropped marks a frame discarded after resynchronisation gave up.
	KindDropped
	// KindUnaligned marks a file whose sampling interval could not be
	// declared or estimated; resynchronisation was abandoned by policy.
	KindUnaligned
)

var kindNames = map[Kind]string{
	KindStructural:         "structural",
	KindIntegrity:          "integrity",
	KindUnsupportedSection: "unsupported-section",
	KindResync:             "resync",
	KindDuplicate:          "duplicate",
	KindDropped:            "dropped",
	KindUnaligned:          "unaligned",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// MarshalJSON renders the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Diagnostic describes one frame-level event at a byte offset in the source
// buffer.
type Diagnostic struct {
	Offset int    `json:"offset"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("{Offset:%d Kind:%s Detail:%s}", d.Offset, d.Kind, d.Detail)
}

// List accumulates diagnostics in file order.
type List []Diagnostic

// Add appends one diagnostic.
func (l *List) Add(offset int, kind Kind, detail string) {
	*l = append(*l, Diagnostic{Offset: offset, Kind: kind, Detail: detail})
}

// Addf appends one diagnostic with a formatted detail string.
func (l *List) Addf(offset int, kind Kind, format string, args ...any) {
	l.Add(offset, kind, fmt.Sprintf(format, args...))
}

// Count returns the number of entries of the given kind.
func (l List) Count(kind Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}

	return n
}

// JSON renders the list for downstream quality-control reports.
func (l List) JSON() ([]byte, error) {
	return json.Marshal(l)
}
