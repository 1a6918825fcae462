// Package frame discovers and validates logical records ("ensembles" or
// "frames") inside a raw telemetry buffer.
//
// A frame is identified only by marker bytes inside the stream, carries a
// trailing 16-bit checksum, and declares (or implies) its own length. The
// package provides the O(n) marker scan, checksum validation against the
// declared byte range, and resynchronisation after corruption: a
// timestamp-continuity repair for protocols with a trusted embedded clock,
// and a weaker structural retry for those without.
package frame

import (
	"fmt"

	"github.com/oceanum/ensemble/checksum"
	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/endian"
	"github.com/oceanum/ensemble/errs"
)

var engine = endian.GetLittleEndianEngine()

// Marker is the fixed byte pattern identifying a candidate frame start:
// one or two fixed bytes at fixed relative offsets.
type Marker struct {
	Bytes   []byte
	Offsets []int
}

// Match reports whether the marker pattern occurs at off.
func (m Marker) Match(data []byte, off int) bool {
	for i, b := range m.Bytes {
		pos := off + m.Offsets[i]
		if pos >= len(data) || data[pos] != b {
			return false
		}
	}

	return true
}

// Locate returns every offset where the marker pattern occurs, in one pass
// over the whole buffer. The result is a superset of true frame starts:
// marker bytes can occur inside payloads and must be filtered downstream.
// An empty result is valid.
func (m Marker) Locate(data []byte) []int {
	var offsets []int
	for i := range data {
		if m.Match(data, i) {
			offsets = append(offsets, i)
		}
	}

	return offsets
}

// SpanFunc resolves the total byte length of the frame starting at start,
// including the trailing checksum, from the protocol's declared length
// field. It must not read past len(data).
type SpanFunc func(data []byte, start int) (int, error)

// Layout binds a protocol family's frame discovery parameters: the marker
// pattern, the checksum algorithm, and the declared-length resolution.
type Layout struct {
	Marker Marker
	Algo   checksum.Algorithm
	Span   SpanFunc
}

// Frame is a validated frame candidate.
type Frame struct {
	// Start and End bound the frame in the buffer; End is exclusive and the
	// two bytes at End-2 hold the stored checksum.
	Start int
	End   int
	// ChecksumOK records whether the recomputed checksum matched.
	ChecksumOK bool
	// Resynced marks a boundary adopted by the resynchroniser rather than
	// validated directly; its series row is flagged estimated.
	Resynced bool
}

// Len returns the frame length in bytes including the trailing checksum.
func (f Frame) Len() int {
	return f.End - f.Start
}

// Validate resolves the byte range of the candidate at start and recomputes
// the checksum over [start, end-2), comparing against the stored 16-bit
// value at end-2. Candidates whose declared length runs past the buffer end
// are structural errors and are discarded outright; checksum mismatches are
// returned as frames with ChecksumOK=false, held for resynchronisation.
func (l Layout) Validate(data []byte, start int) (Frame, error) {
	span, err := l.Span(data, start)
	if err != nil {
		return Frame{}, err
	}
	if span < len(l.Marker.Bytes)+2 {
		return Frame{}, fmt.Errorf("%w: declared length %d", errs.ErrSectionLength, span)
	}

	end := start + span
	if end > len(data) {
		return Frame{}, fmt.Errorf("%w: frame at %d declares %d bytes, %d remain",
			errs.ErrTruncatedFrame, start, span, len(data)-start)
	}

	stored := engine.Uint16(data[end-2 : end])
	computed := l.Algo.Sum(data[start : end-2])

	return Frame{Start: start, End: end, ChecksumOK: stored == computed}, nil
}

// Scan runs the whole-buffer marker pass and validates every candidate not
// contained in a previously validated frame. It returns frames in file
// order, including checksum failures, which are held for the
// resynchroniser. Structural failures are recorded and skipped.
//
// After a checksum failure the scan resumes at the next marker hit rather
// than at the failed frame's declared end: a corrupted length field must
// not occlude the frames behind it.
func (l Layout) Scan(data []byte, dl *diag.List) []Frame {
	var frames []Frame

	cursor := 0
	for _, off := range l.Marker.Locate(data) {
		if off < cursor {
			continue
		}

		f, err := l.Validate(data, off)
		if err != nil {
			dl.Add(off, diag.KindStructural, err.Error())
			cursor = off + 1

			continue
		}

		frames = append(frames, f)
		if f.ChecksumOK {
			cursor = f.End
		} else {
			cursor = off + 1
		}
	}

	return frames
}

// RepairStructural is the resynchronisation variant for protocols without a
// reliable embedded clock at a fixed offset: the marker rescan in Scan has
// already advanced byte-by-byte past corruption, so frames that still fail
// their checksum carry no further evidence and are dropped with a
// diagnostic.
func RepairStructural(frames []Frame, dl *diag.List) []Frame {
	kept := frames[:0:0]
	for _, f := range frames {
		if !f.ChecksumOK {
			dl.Addf(f.Start, diag.KindIntegrity, "checksum mismatch, structural retry exhausted")

			continue
		}
		kept = append(kept, f)
	}

	return kept
}
