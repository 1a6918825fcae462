package pd0

import (
	"fmt"

	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/errs"
	"github.com/oceanum/ensemble/internal/fieldcodec"
	"github.com/oceanum/ensemble/series"
)

// Fixed-leader enumerations. Lookups fail loudly on unrecognised codes
// instead of guessing.
var (
	frequencyKHz = map[uint16]float64{
		0: 75, 1: 150, 2: 300, 3: 600, 4: 1200, 5: 2400,
	}
	beamAngleDeg = map[uint16]float64{
		0: 15, 1: 20, 2: 30,
	}
	beamPattern = map[uint16]float64{
		4: 4, 5: 5, 15: 15,
	}
)

// Matrix section names as exposed on the assembled series.
const (
	colVelocity      = "velocity"
	colCorrelation   = "correlation"
	colEchoIntensity = "echo_intensity"
	colPercentGood   = "percent_good"
)

// config is the per-file state the fixed leader establishes; the per-cell
// sections cannot be sized without it.
type config struct {
	cells int
	beams int
	valid bool
}

// decodeState threads the assembly of one capture: the growing series, the
// active configuration, diagnostics, and the once-per-code unsupported
// section memo.
type decodeState struct {
	series *series.Series
	cfg    config
	dl     *diag.List
	seen   map[uint16]bool
}

func newDecodeState(capacityHint int, dl *diag.List) *decodeState {
	return &decodeState{
		series: series.New(capacityHint),
		dl:     dl,
		seen:   make(map[uint16]bool),
	}
}

// sectionFunc decodes one section body (including its leading type code)
// into the current row. Per-section failures are diagnosed; they never
// abort the frame.
type sectionFunc func(st *decodeState, sec []byte, off int) error

var sectionTable = map[uint16]sectionFunc{
	idFixedLeader: decodeFixedLeader,
	idVelocity:    decodeVelocity,
	idCorrelation: func(st *decodeState, sec []byte, off int) error {
		return decodeCellBytes(st, sec, off, colCorrelation)
	},
	idEchoIntensity: func(st *decodeState, sec []byte, off int) error {
		return decodeCellBytes(st, sec, off, colEchoIntensity)
	},
	idPercentGood: func(st *decodeState, sec []byte, off int) error {
		return decodeCellBytes(st, sec, off, colPercentGood)
	},
	idBottomTrack: decodeBottomTrack,
}

// decodeEnsemble decodes one validated frame body (checksum stripped) into
// the next series row. withMatrices is false on the vectorised path, which
// extracts the per-cell arrays in column passes afterwards.
func decodeEnsemble(st *decodeState, fr []byte, base int, valid bool, withMatrices bool) bool {
	secs, err := parseSections(fr)
	if err != nil {
		st.dl.Addf(base, diag.KindStructural, "ensemble: %v", err)
		return false
	}

	vl := findSection(secs, idVariableLeader)
	if vl == nil {
		st.dl.Addf(base, diag.KindStructural, "ensemble: no variable leader section")
		return false
	}

	ts, ok := ensembleTime(fr[vl.start:vl.end])
	if !ok {
		st.dl.Addf(base+vl.start, diag.KindStructural, "ensemble: invalid real-time clock")
		return false
	}

	st.series.AddRow(ts, valid)
	decodeVariableLeader(st, fr[vl.start:vl.end])

	for _, sec := range secs {
		if sec.id == idVariableLeader {
			continue
		}

		fn, known := sectionTable[sec.id]
		if !known {
			if !st.seen[sec.id] {
				st.seen[sec.id] = true
				st.dl.Addf(base+sec.start, diag.KindUnsupportedSection,
					"%v: type code 0x%04x", errs.ErrUnsupportedSection, sec.id)
			}
			continue
		}
		if !withMatrices && isMatrixSection(sec.id) {
			continue
		}

		if err := fn(st, fr[sec.start:sec.end], base+sec.start); err != nil {
			st.dl.Addf(base+sec.start, diag.KindIntegrity, "section 0x%04x: %v", sec.id, err)
		}
	}

	return true
}

func isMatrixSection(id uint16) bool {
	switch id {
	case idVelocity, idCorrelation, idEchoIntensity, idPercentGood:
		return true
	}

	return false
}

// decodeFixedLeader establishes the capture configuration and emits the
// instrument setup scalars.
func decodeFixedLeader(st *decodeState, sec []byte, off int) error {
	if len(sec) < 20 {
		return fmt.Errorf("%w: fixed leader %d bytes", errs.ErrSectionLength, len(sec))
	}

	sysCfg := fieldcodec.Uint16(sec, 4)

	freq, err := fieldcodec.Lookup(frequencyKHz, fieldcodec.Bits(sysCfg, 0, 3), "system frequency")
	if err != nil {
		return err
	}
	angle, err := fieldcodec.Lookup(beamAngleDeg, fieldcodec.Bits(sysCfg, 8, 2), "beam angle")
	if err != nil {
		return err
	}
	pattern, err := fieldcodec.Lookup(beamPattern, fieldcodec.Bits(sysCfg, 12, 4), "beam configuration")
	if err != nil {
		return err
	}

	st.cfg = config{
		beams: int(sec[8]),
		cells: int(sec[9]),
		valid: true,
	}

	up := 0.0
	if fieldcodec.Bit(sysCfg, 7) {
		up = 1
	}

	st.series.SetScalar("frequency", freq)
	st.series.SetScalar("beam_angle", angle)
	st.series.SetScalar("beam_config", pattern)
	st.series.SetScalar("orientation_up", up)
	st.series.SetScalar("beams", float64(st.cfg.beams))
	st.series.SetScalar("cells", float64(st.cfg.cells))
	st.series.SetScalar("cell_length", float64(fieldcodec.Uint16(sec, 12))/100)

	return nil
}

// decodeVariableLeader emits the per-ping sensor scalars. The clock was
// already consumed by the caller.
func decodeVariableLeader(st *decodeState, sec []byte) {
	if len(sec) < 28 {
		return
	}

	st.series.SetScalar("ensemble_number", float64(fieldcodec.Uint16(sec, 2)))
	st.series.SetScalar("sound_speed", float64(fieldcodec.Uint16(sec, 14)))
	st.series.SetScalar("transducer_depth", float64(fieldcodec.Uint16(sec, 16))/10)
	st.series.SetScalar("heading", float64(fieldcodec.Uint16(sec, 18))/100)
	st.series.SetScalar("pitch", float64(fieldcodec.Int16(sec, 20))/100)
	st.series.SetScalar("roll", float64(fieldcodec.Int16(sec, 22))/100)
	st.series.SetScalar("salinity", float64(fieldcodec.Uint16(sec, 24)))
	st.series.SetScalar("temperature", float64(fieldcodec.Int16(sec, 26))/100)

	if len(sec) >= 56 {
		st.series.SetScalar("pressure", float64(fieldcodec.Uint32(sec, 48))/1000)
		st.series.SetScalar("pressure_variance", float64(fieldcodec.Uint32(sec, 52))/1000)
	}
}

// decodeVelocity reads the signed per-cell velocity array, cell-major with
// one int16 per beam, in mm/s. The sentinel -32768 maps to the fill value.
func decodeVelocity(st *decodeState, sec []byte, off int) error {
	if !st.cfg.valid {
		return fmt.Errorf("%w: velocity before fixed leader", errs.ErrMissingConfiguration)
	}

	n := st.cfg.cells * st.cfg.beams
	if len(sec) < 2+2*n {
		return fmt.Errorf("%w: velocity wants %d values, section is %d bytes",
			errs.ErrSectionLength, n, len(sec))
	}

	row := make([]float64, n)
	for i := range n {
		v := fieldcodec.Int16(sec, 2+2*i)
		if v == -32768 {
			row[i] = series.Fill
			continue
		}
		row[i] = float64(v) / 1000
	}
	st.series.SetMatrixRow(colVelocity, row)

	return nil
}

// decodeCellBytes reads an unsigned one-byte-per-value per-cell array, used
// by the correlation, echo intensity and percent good sections.
func decodeCellBytes(st *decodeState, sec []byte, off int, name string) error {
	if !st.cfg.valid {
		return fmt.Errorf("%w: %s before fixed leader", errs.ErrMissingConfiguration, name)
	}

	n := st.cfg.cells * st.cfg.beams
	if len(sec) < 2+n {
		return fmt.Errorf("%w: %s wants %d values, section is %d bytes",
			errs.ErrSectionLength, name, n, len(sec))
	}

	row := make([]float64, n)
	for i := range n {
		row[i] = float64(fieldcodec.Uint8(sec, 2+i))
	}
	st.series.SetMatrixRow(name, row)

	return nil
}

// decodeBottomTrack emits per-beam range and velocity scalars.
func decodeBottomTrack(st *decodeState, sec []byte, off int) error {
	if len(sec) < 40 {
		return fmt.Errorf("%w: bottom track %d bytes", errs.ErrSectionLength, len(sec))
	}

	for b := range 4 {
		st.series.SetScalar(fmt.Sprintf("bt_range_%d", b+1),
			float64(fieldcodec.Uint16(sec, 16+2*b))/100)

		v := fieldcodec.Int16(sec, 24+2*b)
		if v == -32768 {
			st.series.SetScalar(fmt.Sprintf("bt_velocity_%d", b+1), series.Fill)
		} else {
			st.series.SetScalar(fmt.Sprintf("bt_velocity_%d", b+1), float64(v)/1000)
		}

		st.series.SetScalar(fmt.Sprintf("bt_correlation_%d", b+1), float64(fieldcodec.Uint8(sec, 32+b)))
		st.series.SetScalar(fmt.Sprintf("bt_amplitude_%d", b+1), float64(fieldcodec.Uint8(sec, 36+b)))
	}

	return nil
}
