package paradopp

import (
	"fmt"
	"time"

	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/errs"
	"github.com/oceanum/ensemble/internal/fieldcodec"
	"github.com/oceanum/ensemble/series"
)

// config accumulates what the configuration records establish. The profiler
// velocity record cannot be sized before the user configuration arrives.
type config struct {
	bins        int
	beams       int
	binLength   float64
	avgInterval float64
	coordSystem float64
	frequency   float64
	haveUser    bool
	haveHead    bool
	haveHW      bool
}

type decodeState struct {
	series *series.Series
	cfg    config
	dl     *diag.List
	seen   map[byte]bool
}

func newDecodeState(capacityHint int, dl *diag.List) *decodeState {
	return &decodeState{
		series: series.New(capacityHint),
		dl:     dl,
		seen:   make(map[byte]bool),
	}
}

// decodeRecord dispatches one validated record body (checksum stripped) on
// its id byte. Record-level failures are diagnosed, never fatal.
func (st *decodeState) decodeRecord(rec []byte, base int) {
	if len(rec) < 4 {
		st.dl.Addf(base, diag.KindStructural, "record shorter than its own header")
		return
	}

	var err error
	switch rec[1] {
	case idHardwareConfig:
		err = st.decodeHardwareConfig(rec)
	case idHeadConfig:
		err = st.decodeHeadConfig(rec)
	case idUserConfig:
		err = st.decodeUserConfig(rec)
	case idVelocity:
		err = st.decodeVelocity(rec, base)
	case idProfilerVelocity:
		err = st.decodeProfilerVelocity(rec, base)
	default:
		if !st.seen[rec[1]] {
			st.seen[rec[1]] = true
			st.dl.Addf(base, diag.KindUnsupportedSection,
				"%v: record id 0x%02x", errs.ErrUnsupportedSection, rec[1])
		}
		return
	}

	if err != nil {
		st.dl.Addf(base, diag.KindIntegrity, "record 0x%02x: %v", rec[1], err)
	}
}

// recordTime decodes the six-byte packed BCD clock at offset 4 to
// microseconds since the Unix epoch. Field order is minute, second, day,
// hour, year, month.
func recordTime(rec []byte) (int64, error) {
	if len(rec) < 10 {
		return 0, fmt.Errorf("%w: no room for clock", errs.ErrSectionLength)
	}

	var v [6]int
	for i := range v {
		d, err := fieldcodec.BCD(rec[4+i])
		if err != nil {
			return 0, err
		}
		v[i] = d
	}

	minute, sec, day, hour, year2, month := v[0], v[1], v[2], v[3], v[4], v[5]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 59 {
		return 0, fmt.Errorf("%w: clock fields out of range", errs.ErrInvalidBCD)
	}

	year := fieldcodec.Century(year2, centuryThreshold)
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)

	return t.UnixMicro(), nil
}

func (st *decodeState) decodeHardwareConfig(rec []byte) error {
	if len(rec) != sizeHardwareConfig-2 {
		return fmt.Errorf("%w: hardware configuration is %d bytes", errs.ErrSectionLength, len(rec)+2)
	}

	st.cfg.frequency = float64(fieldcodec.Uint16(rec, 20))
	st.cfg.haveHW = true

	return nil
}

func (st *decodeState) decodeHeadConfig(rec []byte) error {
	if len(rec) != sizeHeadConfig-2 {
		return fmt.Errorf("%w: head configuration is %d bytes", errs.ErrSectionLength, len(rec)+2)
	}

	st.cfg.beams = int(fieldcodec.Uint16(rec, 220))
	st.cfg.haveHead = true

	return nil
}

func (st *decodeState) decodeUserConfig(rec []byte) error {
	if len(rec) != sizeUserConfig-2 {
		return fmt.Errorf("%w: user configuration is %d bytes", errs.ErrSectionLength, len(rec)+2)
	}

	st.cfg.avgInterval = float64(fieldcodec.Uint16(rec, 16))
	st.cfg.coordSystem = float64(fieldcodec.Uint16(rec, 32))
	st.cfg.bins = int(fieldcodec.Uint16(rec, 34))
	st.cfg.binLength = float64(fieldcodec.Uint16(rec, 36)) / 100
	if st.cfg.beams == 0 {
		st.cfg.beams = int(fieldcodec.Uint16(rec, 18))
	}
	st.cfg.haveUser = true

	return nil
}

// addRow opens a series row for a data record and applies the staged
// configuration scalars, which precede the data records in the stream.
func (st *decodeState) addRow(ts int64) {
	st.series.AddRow(ts, true)

	if st.cfg.haveHW {
		st.series.SetScalar("frequency", st.cfg.frequency)
	}
	if st.cfg.haveUser {
		st.series.SetScalar("avg_interval", st.cfg.avgInterval)
		st.series.SetScalar("coord_system", st.cfg.coordSystem)
		st.series.SetScalar("cells", float64(st.cfg.bins))
		st.series.SetScalar("cell_length", st.cfg.binLength)
		st.series.SetScalar("beams", float64(st.cfg.beams))
	}
}

// decodeSensors emits the sensor block shared by the data records: battery,
// sound speed, attitude, pressure and temperature.
func (st *decodeState) decodeSensors(rec []byte) {
	st.series.SetScalar("battery", float64(fieldcodec.Uint16(rec, 14))/10)
	st.series.SetScalar("sound_speed", float64(fieldcodec.Uint16(rec, 16))/10)
	st.series.SetScalar("heading", float64(fieldcodec.Int16(rec, 18))/10)
	st.series.SetScalar("pitch", float64(fieldcodec.Int16(rec, 20))/10)
	st.series.SetScalar("roll", float64(fieldcodec.Int16(rec, 22))/10)

	pressure := float64(rec[24])*65536 + float64(fieldcodec.Uint16(rec, 26))
	st.series.SetScalar("pressure", pressure/1000)
	st.series.SetScalar("temperature", float64(fieldcodec.Int16(rec, 28))/100)
}

// decodeVelocity handles the fixed-size single-cell current meter record:
// three velocity components and three beam amplitudes.
func (st *decodeState) decodeVelocity(rec []byte, base int) error {
	if len(rec) != sizeVelocity-2 {
		return fmt.Errorf("%w: velocity record is %d bytes", errs.ErrSectionLength, len(rec)+2)
	}

	ts, err := recordTime(rec)
	if err != nil {
		return err
	}

	st.addRow(ts)
	st.decodeSensors(rec)

	for i := range 3 {
		st.series.SetScalar(fmt.Sprintf("velocity_%d", i+1),
			float64(fieldcodec.Int16(rec, 30+2*i))/1000)
		st.series.SetScalar(fmt.Sprintf("amplitude_%d", i+1), float64(rec[36+i]))
	}

	return nil
}

// decodeProfilerVelocity handles the variable-size profiler record: a
// per-cell int16 velocity array followed by a per-cell uint8 amplitude
// array, padded to a whole word when the value count is odd.
func (st *decodeState) decodeProfilerVelocity(rec []byte, base int) error {
	if !st.cfg.haveUser {
		return fmt.Errorf("%w: profiler velocity before user configuration", errs.ErrMissingConfiguration)
	}

	n := st.cfg.bins * st.cfg.beams
	want := 30 + 2*n + n
	if n%2 != 0 {
		want++ // pad byte keeps the record on a word boundary
	}
	if len(rec) != want {
		return fmt.Errorf("%w: profiler record wants %d bytes for %d cells x %d beams, has %d",
			errs.ErrSectionLength, want+2, st.cfg.bins, st.cfg.beams, len(rec)+2)
	}

	ts, err := recordTime(rec)
	if err != nil {
		return err
	}

	st.addRow(ts)
	st.decodeSensors(rec)

	vel := make([]float64, n)
	for i := range n {
		vel[i] = float64(fieldcodec.Int16(rec, 30+2*i)) / 1000
	}
	st.series.SetMatrixRow("velocity", vel)

	amp := make([]float64, n)
	for i := range n {
		amp[i] = float64(rec[30+2*n+i])
	}
	st.series.SetMatrixRow("amplitude", amp)

	return nil
}
