// Package pd0 decodes marker-pair ensemble telemetry from Workhorse-class
// acoustic Doppler current profilers.
//
// Each ensemble starts with the two marker bytes 0x7F 0x7F, declares its own
// byte length at offset 2 (excluding the trailing checksum), and ends with a
// 16-bit modulo-65536 byte sum. An ensemble carries a data-type offset table
// pointing at its sections: a fixed leader (configuration), a variable
// leader (clock and per-ping sensors), per-cell arrays (velocity,
// correlation, echo intensity, percent good) and an optional bottom track.
//
// The family embeds a real-time clock in every ensemble, so corruption is
// repaired with the timestamp-continuity resynchroniser.
package pd0

import (
	"fmt"
	"time"

	"github.com/oceanum/ensemble/checksum"
	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/endian"
	"github.com/oceanum/ensemble/errs"
	"github.com/oceanum/ensemble/frame"
	"github.com/oceanum/ensemble/protocol"
	"github.com/oceanum/ensemble/series"
	"github.com/oceanum/ensemble/source"
)

// FamilyName registers this protocol family.
const FamilyName = "pd0"

const (
	markerByte = 0x7F

	// headerFixed is the frame header before the data-type offset table:
	// two marker bytes, declared length, spare, section count.
	headerFixed = 6

	// centuryThreshold resolves the two-digit RTC year: >= 80 means 19xx.
	centuryThreshold = 80
)

// Section type codes, little-endian at each data-type offset.
const (
	idFixedLeader    uint16 = 0x0000
	idVariableLeader uint16 = 0x0080
	idVelocity       uint16 = 0x0100
	idCorrelation    uint16 = 0x0200
	idEchoIntensity  uint16 = 0x0300
	idPercentGood    uint16 = 0x0400
	idBottomTrack    uint16 = 0x0600
)

var (
	engine = endian.GetLittleEndianEngine()

	marker = frame.Marker{Bytes: []byte{markerByte, markerByte}, Offsets: []int{0, 1}}
	algo   = checksum.ByteSum(FamilyName, 0)
)

func init() {
	protocol.Register(FamilyName, NewDecoder, Sniff)
}

// Sniff matches the marker pair at offset zero.
func Sniff(data []byte) bool {
	return len(data) >= 2 && data[0] == markerByte && data[1] == markerByte
}

// Layout returns the family's frame discovery parameters.
func Layout() frame.Layout {
	return frame.Layout{
		Marker: marker,
		Algo:   algo,
		Span:   span,
	}
}

// span resolves the total frame length: the declared byte count at offset 2
// excludes the two checksum bytes.
func span(data []byte, start int) (int, error) {
	if start+4 > len(data) {
		return 0, fmt.Errorf("%w: no room for ensemble length field", errs.ErrTruncatedFrame)
	}

	return int(engine.Uint16(data[start+2:start+4])) + 2, nil
}

// section bounds one data type within a frame, relative to the frame start.
type section struct {
	id    uint16
	start int
	end   int
}

// parseSections reads the data-type offset table and derives each section's
// bounds. fr covers the frame excluding the trailing checksum. Offsets must
// be in range and strictly increasing; anything else means the declared
// length and the table disagree, a structural per-frame error.
func parseSections(fr []byte) ([]section, error) {
	if len(fr) < headerFixed {
		return nil, fmt.Errorf("%w: ensemble shorter than header", errs.ErrSectionLength)
	}

	n := int(fr[5])
	tableEnd := headerFixed + 2*n
	if n == 0 || tableEnd > len(fr) {
		return nil, fmt.Errorf("%w: offset table for %d sections does not fit", errs.ErrSectionLength, n)
	}

	secs := make([]section, n)
	prev := tableEnd
	for i := range n {
		off := int(engine.Uint16(fr[headerFixed+2*i : headerFixed+2*i+2]))
		if off < prev || off+2 > len(fr) {
			return nil, fmt.Errorf("%w: section offset %d out of order", errs.ErrSectionLength, off)
		}
		secs[i] = section{id: engine.Uint16(fr[off : off+2]), start: off}
		if i > 0 {
			secs[i-1].end = off
		}
		prev = off
	}
	secs[n-1].end = len(fr)

	return secs, nil
}

// findSection returns the first section with the given id, or nil.
func findSection(secs []section, id uint16) *section {
	for i := range secs {
		if secs[i].id == id {
			return &secs[i]
		}
	}

	return nil
}

// ensembleTime decodes the variable-leader clock to microseconds since the
// Unix epoch. The base RTC stores a two-digit binary year resolved through
// the century heuristic; when the frame carries the extended clock block its
// century byte wins.
func ensembleTime(vl []byte) (int64, bool) {
	if len(vl) < 11 {
		return 0, false
	}

	year := centuryYear(int(vl[4]))
	month := int(vl[5])
	day := int(vl[6])
	hour := int(vl[7])
	minute := int(vl[8])
	sec := int(vl[9])
	hundredths := int(vl[10])

	if len(vl) >= 65 {
		if century := int(vl[57]); century >= 19 && century <= 22 {
			year = century*100 + int(vl[58])
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || sec > 59 || hundredths > 99 {
		return 0, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, hundredths*1e7, time.UTC)

	return t.UnixMicro(), true
}

func centuryYear(year2 int) int {
	if year2 >= centuryThreshold {
		return 1900 + year2
	}

	return 2000 + year2
}

// clockAt is the resynchroniser's view of the embedded clock: a bounded
// best-effort decode at a candidate frame start.
func clockAt(data []byte, start int) (int64, bool) {
	total, err := span(data, start)
	if err != nil || start+total > len(data) {
		return 0, false
	}

	fr := data[start : start+total-2]
	secs, err := parseSections(fr)
	if err != nil {
		return 0, false
	}

	vl := findSection(secs, idVariableLeader)
	if vl == nil {
		return 0, false
	}

	return ensembleTime(fr[vl.start:vl.end])
}

// Decoder decodes one capture per call; instances are cheap and carry no
// state between calls.
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

// Decode runs frame discovery, validation, resynchronisation and assembly
// over the buffer. Frame-level problems accumulate in the returned
// diagnostics; only whole-file conditions return an error, and even then
// the best-effort series is returned alongside it.
func (d *Decoder) Decode(buf *source.Buffer) (*series.Series, diag.List, error) {
	data := buf.Bytes()
	var dl diag.List

	layout := Layout()
	scanned := layout.Scan(data, &dl)

	resync := frame.Resynchroniser{
		Layout:    layout,
		Clock:     clockAt,
		Nominal:   d.cfg.NominalInterval,
		Window:    d.cfg.ResyncWindow,
		MaxPasses: d.cfg.MaxResyncPasses,
	}
	accepted := resync.Repair(data, scanned, &dl)

	if len(accepted) == 0 {
		return series.New(0), dl, errs.ErrNoValidFrames
	}

	s := d.assemble(data, accepted, &dl)

	// A majority-invalid file is reported corrupt, not "fixed"; the caller
	// still receives the best-effort series and chooses policy.
	if 2*len(accepted) < len(scanned) {
		return s, dl, fmt.Errorf("%w: %d of %d candidate frames discarded",
			errs.ErrCorruptFile, len(scanned)-len(accepted), len(scanned))
	}

	return s, dl, nil
}

// assemble picks the vectorised whole-file path when every accepted frame
// shares one layout and the gathered intermediate fits the capacity budget,
// falling back to the per-frame streaming loop otherwise. Both paths are
// bit-identical by construction.
func (d *Decoder) assemble(data []byte, frames []frame.Frame, dl *diag.List) *series.Series {
	if plan, ok := batchPlan(data, frames); ok && plan.gatherBytes() <= d.cfg.Estimator.Budget() {
		if s, ok := d.assembleBatch(data, frames, plan, dl); ok {
			return s
		}
	}

	return d.assembleStream(data, frames, dl)
}

// assembleStream is the bounded-working-set path: decode one frame at a
// time, in file order.
func (d *Decoder) assembleStream(data []byte, frames []frame.Frame, dl *diag.List) *series.Series {
	st := newDecodeState(len(frames), dl)
	for _, f := range frames {
		decodeEnsemble(st, data[f.Start:f.End-2], f.Start, f.ChecksumOK, true)
	}

	return st.series
}
