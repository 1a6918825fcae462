// Package errs defines the sentinel errors shared across the ensemble
// decoding packages.
//
// Per-frame problems (checksum mismatches, truncated frames, unknown section
// codes) are accumulated as diagnostics and never surface as errors from a
// decode call; the sentinels here classify them internally and cover the
// whole-file failure modes that do terminate a decode.
package errs

import "errors"

var (
	// ErrEmptyBuffer is returned when the byte source contains no data.
	ErrEmptyBuffer = errors.New("byte source is empty")

	// ErrNoValidFrames is returned when a decode pass finds no frame that
	// passes checksum validation, before or after resynchronisation.
	ErrNoValidFrames = errors.New("no valid frames in buffer")

	// ErrCorruptFile is returned when the discard rate stays above tolerance
	// after resynchronisation; the file is reported corrupt rather than
	// silently returning a mostly-empty series.
	ErrCorruptFile = errors.New("corrupt file: discard rate above tolerance after resynchronisation")

	// ErrUnknownProtocol is returned when the caller names a protocol family
	// that is not registered, or signature inference fails to match one.
	ErrUnknownProtocol = errors.New("unknown protocol family")

	// ErrTruncatedFrame classifies a frame whose declared length runs past
	// the end of the buffer. Structural; the frame is discarded.
	ErrTruncatedFrame = errors.New("declared frame length exceeds buffer")

	// ErrChecksumMismatch classifies a frame whose recomputed checksum does
	// not equal the stored trailing value. Held for resynchronisation.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrSectionLength classifies a frame whose declared length does not
	// match the sum of its sub-section lengths. Structural; frame discarded.
	ErrSectionLength = errors.New("section lengths inconsistent with declared frame length")

	// ErrUnsupportedSection classifies a section type code absent from the
	// dispatch table. The section is skipped, siblings still decode.
	ErrUnsupportedSection = errors.New("unsupported section type code")

	// ErrUnrecognisedCode is returned by enumeration lookups when a numeric
	// code has no table entry. Never silently defaulted.
	ErrUnrecognisedCode = errors.New("unrecognised enumeration code")

	// ErrInvalidBCD is returned when a binary-coded-decimal byte carries a
	// nibble greater than 9.
	ErrInvalidBCD = errors.New("invalid BCD digit")

	// ErrMissingConfiguration is returned when a variable-length data record
	// arrives before the configuration record that declares its dimensions.
	ErrMissingConfiguration = errors.New("data record precedes instrument configuration")
)
