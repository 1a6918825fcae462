// Package paradopp decodes sync-byte record telemetry from Paradopp-class
// acoustic Doppler instruments (current meters and profilers).
//
// Every record starts with the sync byte 0xA5 followed by a one-byte record
// id, declares its size in 16-bit words at offset 2 (the count includes the
// sync word and the trailing checksum word), and ends with a 16-bit checksum
// seeded with 0xB58C over the little-endian words before it. Clocks are
// packed BCD. Configuration records describe the instrument and establish
// the cell geometry the velocity records need; they carry no clock of their
// own, so corruption is repaired with the structural retry rather than
// timestamp continuity.
package paradopp

import (
	"fmt"

	"github.com/oceanum/ensemble/checksum"
	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/errs"
	"github.com/oceanum/ensemble/frame"
	"github.com/oceanum/ensemble/internal/fieldcodec"
	"github.com/oceanum/ensemble/protocol"
	"github.com/oceanum/ensemble/series"
	"github.com/oceanum/ensemble/source"
)

// FamilyName registers this protocol family.
const FamilyName = "paradopp"

const (
	syncByte     = 0xA5
	checksumSeed = 0xB58C

	// centuryThreshold resolves the two-digit BCD year: >= 90 means 19xx.
	centuryThreshold = 90
)

// Record ids.
const (
	idUserConfig       = 0x00
	idVelocity         = 0x01
	idHeadConfig       = 0x04
	idHardwareConfig   = 0x05
	idProfilerVelocity = 0x21
)

// Fixed record sizes in bytes, checksum included.
const (
	sizeHardwareConfig = 48
	sizeHeadConfig     = 224
	sizeUserConfig     = 512
	sizeVelocity       = 42
)

var (
	marker = frame.Marker{Bytes: []byte{syncByte}, Offsets: []int{0}}
	algo   = checksum.WordSum(FamilyName, checksumSeed)

	knownIDs = map[byte]bool{
		idUserConfig:       true,
		idVelocity:         true,
		idHeadConfig:       true,
		idHardwareConfig:   true,
		idProfilerVelocity: true,
	}
)

func init() {
	protocol.Register(FamilyName, NewDecoder, Sniff)
}

// Sniff matches the sync byte plus a known record id at offset zero. The id
// check matters because a lone 0xA5 is a weak signature.
func Sniff(data []byte) bool {
	return len(data) >= 2 && data[0] == syncByte && knownIDs[data[1]]
}

// Layout returns the family's frame discovery parameters.
func Layout() frame.Layout {
	return frame.Layout{
		Marker: marker,
		Algo:   algo,
		Span:   span,
	}
}

// span resolves the total record length from the word count at offset 2,
// which already includes the sync word and the checksum word.
func span(data []byte, start int) (int, error) {
	if start+4 > len(data) {
		return 0, fmt.Errorf("%w: no room for record size field", errs.ErrTruncatedFrame)
	}

	return 2 * int(fieldcodec.Uint16(data, start+2)), nil
}

// Decoder decodes one capture per call.
type Decoder struct {
	cfg protocol.Config
}

// NewDecoder constructs the family decoder.
func NewDecoder(cfg protocol.Config) protocol.Decoder {
	return &Decoder{cfg: cfg.Normalize()}
}

func (d *Decoder) Name() string {
	return FamilyName
}

// Decode runs frame discovery, validation, structural-retry repair and
// per-record assembly. Configuration records carry no clock, so a checksum
// failure leaves no continuity evidence: failed records are dropped with a
// diagnostic and the marker rescan supplies the retry.
func (d *Decoder) Decode(buf *source.Buffer) (*series.Series, diag.List, error) {
	data := buf.Bytes()
	var dl diag.List

	scanned := Layout().Scan(data, &dl)
	accepted := frame.RepairStructural(scanned, &dl)

	if len(accepted) == 0 {
		return series.New(0), dl, errs.ErrNoValidFrames
	}

	st := newDecodeState(len(accepted), &dl)
	for _, f := range accepted {
		st.decodeRecord(data[f.Start:f.End-2], f.Start)
	}

	if 2*len(accepted) < len(scanned) {
		return st.series, dl, fmt.Errorf("%w: %d of %d candidate records discarded",
			errs.ErrCorruptFile, len(scanned)-len(accepted), len(scanned))
	}

	return st.series, dl, nil
}
