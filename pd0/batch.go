package pd0

import (
	"bytes"

	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/frame"
	"github.com/oceanum/ensemble/internal/fieldcodec"
	"github.com/oceanum/ensemble/internal/pool"
	"github.com/oceanum/ensemble/series"
)

// plan describes a capture uniform enough for whole-file array extraction:
// every accepted frame has the same length and the same section table, so
// each per-cell array lives at a fixed offset in every frame.
type plan struct {
	frames int
	cells  int
	beams  int
	matrix []section
}

// values is the per-cell value count of one matrix row.
func (p plan) values() int {
	return p.cells * p.beams
}

// sectionBytes is the raw width of one matrix section's value area.
func (p plan) sectionBytes(id uint16) int {
	if id == idVelocity {
		return 2 * p.values()
	}

	return p.values()
}

// gatherBytes is the size of the largest gathered intermediate the batch
// path will hold at once, for the capacity check.
func (p plan) gatherBytes() int {
	max := 0
	for _, ms := range p.matrix {
		if n := p.frames * p.sectionBytes(ms.id); n > max {
			max = n
		}
	}

	return max
}

// batchPlan checks the uniformity preconditions. Any deviation simply
// routes the capture to the streaming path; no diagnostics at this stage.
func batchPlan(data []byte, frames []frame.Frame) (plan, bool) {
	if len(frames) == 0 {
		return plan{}, false
	}

	first := frames[0]
	fr0 := data[first.Start : first.End-2]
	secs, err := parseSections(fr0)
	if err != nil {
		return plan{}, false
	}

	fl := findSection(secs, idFixedLeader)
	if fl == nil || fl.end-fl.start < 20 {
		return plan{}, false
	}
	beams := int(fr0[fl.start+8])
	cells := int(fr0[fl.start+9])
	if beams <= 0 || cells <= 0 {
		return plan{}, false
	}

	p := plan{frames: len(frames), cells: cells, beams: beams}
	seenFixed := false
	for _, sec := range secs {
		if sec.id == idFixedLeader {
			seenFixed = true
		}
		if !isMatrixSection(sec.id) {
			continue
		}
		// A matrix section ahead of the fixed leader has no geometry on the
		// first frame; the streaming path rejects it row by row and the
		// column passes must not resurrect it.
		if !seenFixed {
			return plan{}, false
		}
		if sec.end-sec.start < 2+p.sectionBytes(sec.id) {
			return plan{}, false
		}
		p.matrix = append(p.matrix, sec)
	}

	// The offset table is part of the uniformity check: identical tables
	// mean identical section bounds in every frame.
	table := fr0[5 : headerFixed+2*int(fr0[5])]
	for _, f := range frames[1:] {
		if f.Len() != first.Len() {
			return plan{}, false
		}
		fr := data[f.Start : f.End-2]
		if len(fr) < headerFixed+2*int(fr[5]) || !bytes.Equal(fr[5:headerFixed+2*int(fr[5])], table) {
			return plan{}, false
		}
	}

	return p, true
}

// assembleBatch is the vectorised path: one row-order pass performs every
// decode that can fail or emit a diagnostic (so ordering matches the
// streaming path exactly), then each per-cell array is gathered into a
// pooled contiguous buffer and converted in a single tight loop. Any frame
// the row pass rejects voids the uniformity assumption; the batch rolls its
// diagnostics back and reports failure so the caller can stream instead.
func (d *Decoder) assembleBatch(data []byte, frames []frame.Frame, p plan, dl *diag.List) (*series.Series, bool) {
	mark := len(*dl)
	st := newDecodeState(len(frames), dl)

	for _, f := range frames {
		ok := decodeEnsemble(st, data[f.Start:f.End-2], f.Start, f.ChecksumOK, false)
		// A rejected frame, a failed fixed leader or a mid-file geometry
		// change all break the uniformity the column passes rely on.
		if !ok || !st.cfg.valid || st.cfg.cells != p.cells || st.cfg.beams != p.beams {
			*dl = (*dl)[:mark]
			return nil, false
		}
	}

	buf := pool.GetGatherBuffer()
	defer pool.PutGatherBuffer(buf)

	for _, ms := range p.matrix {
		width := p.sectionBytes(ms.id)
		buf.SetLength(p.frames * width)
		raw := buf.Bytes()
		for r, f := range frames {
			copy(raw[r*width:(r+1)*width], data[f.Start+ms.start+2:f.Start+ms.start+2+width])
		}

		st.series.SetMatrixColumn(matrixName(ms.id), p.values(), convertColumn(ms.id, raw, p))
	}

	return st.series, true
}

func matrixName(id uint16) string {
	switch id {
	case idVelocity:
		return colVelocity
	case idCorrelation:
		return colCorrelation
	case idEchoIntensity:
		return colEchoIntensity
	default:
		return colPercentGood
	}
}

// convertColumn turns one gathered raw array into series values, applying
// the same scaling and fill mapping as the streaming decoders.
func convertColumn(id uint16, raw []byte, p plan) []float64 {
	n := p.frames * p.values()
	out := make([]float64, n)

	if id == idVelocity {
		for i := range n {
			v := fieldcodec.Int16(raw, 2*i)
			if v == -32768 {
				out[i] = series.Fill
				continue
			}
			out[i] = float64(v) / 1000
		}
		return out
	}

	for i := range n {
		out[i] = float64(raw[i])
	}

	return out
}
