package frame

import (
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/oceanum/ensemble/diag"
)

// ClockFunc decodes the embedded clock of the frame starting at start and
// returns it as microseconds since the Unix epoch. ok is false when the
// clock field cannot be decoded.
type ClockFunc func(data []byte, start int) (ts int64, ok bool)

// Resynchroniser repairs frame boundaries after corruption using timestamp
// continuity: a corrupted ensemble shifts boundaries, but the surviving
// neighbours still carry a clock whose cadence exposes both the gap and the
// plausible replacement start.
type Resynchroniser struct {
	Layout Layout
	Clock  ClockFunc

	// Nominal is the declared sampling interval. Zero means estimate it as
	// the statistical mode of the deltas observed between valid frames.
	Nominal time.Duration

	// Window bounds the forward search for a replacement start, in bytes
	// from the end of the last trusted frame. Zero derives four frame
	// lengths from the first valid frame.
	Window int

	// MaxPasses bounds the repair iterations. Zero means 8.
	MaxPasses int
}

// Repair takes the scan result and returns the accepted frame set in file
// order: checksum-valid frames, minus duplicated/retransmitted blocks, plus
// held frames adopted on timestamp-continuity evidence (flagged Resynced).
// Held frames that remain unadopted are dropped and counted.
func (r Resynchroniser) Repair(data []byte, frames []Frame, dl *diag.List) []Frame {
	var accepted, held []Frame
	for _, f := range frames {
		if f.ChecksumOK {
			accepted = append(accepted, f)
		} else {
			held = append(held, f)
		}
	}

	if len(accepted) == 0 {
		for _, h := range held {
			dl.Add(h.Start, diag.KindIntegrity, "checksum mismatch, no valid neighbours to resynchronise against")
		}

		return nil
	}

	clock := newClockCache(r.Clock, data)

	nominal := int64(r.Nominal / time.Microsecond)
	if nominal == 0 {
		nominal = modeDelta(accepted, clock)
	}
	if nominal <= 0 {
		if len(held) == 0 {
			return accepted
		}
		// Neither declared nor recoverable: trust nothing, tag the file as
		// unaligned, keep what validated. Deliberate policy.
		dl.Add(0, diag.KindUnaligned, "sampling interval neither declared nor recoverable as a mode; resynchronisation abandoned")
		for _, h := range held {
			dl.Add(h.Start, diag.KindIntegrity, "checksum mismatch, file unaligned")
		}

		return accepted
	}

	window := r.Window
	if window <= 0 {
		window = 4 * accepted[0].Len()
	}
	maxPasses := r.MaxPasses
	if maxPasses <= 0 {
		maxPasses = 8
	}

	for pass := 0; pass < maxPasses; pass++ {
		var changed bool

		accepted, held, changed = r.repairPass(data, accepted, held, clock, nominal, window, dl)
		if !changed {
			break
		}
	}

	for _, h := range held {
		dl.Add(h.Start, diag.KindIntegrity, "checksum mismatch, unrecovered after resynchronisation")
	}

	return accepted
}

// repairPass performs one scan over the accepted sequence, fixing at most
// one desync point or duplicate and reporting whether anything changed.
func (r Resynchroniser) repairPass(data []byte, accepted, held []Frame, clock *clockCache, nominal int64, window int, dl *diag.List) ([]Frame, []Frame, bool) {
	for i := 0; i+1 < len(accepted); i++ {
		ts0, ok0 := clock.at(accepted[i].Start)
		ts1, ok1 := clock.at(accepted[i+1].Start)
		if !ok0 || !ok1 {
			continue
		}

		delta := ts1 - ts0
		switch {
		case delta >= 2*nominal:
			// Desync point: rescan the bounded forward window for a held
			// frame whose clock continues the pre-gap cadence.
			adopted, rest := adoptHeld(data, held, accepted[i], accepted[i+1], clock, nominal, window, dl)
			if adopted == nil {
				continue
			}
			accepted = insertFrame(accepted, *adopted)

			return accepted, rest, true

		case delta < nominal/2:
			// Duplicated or retransmitted block: the furthest (last) match
			// wins, the earlier candidate is discarded.
			kind := diag.KindDropped
			if sameFingerprint(data, accepted[i], accepted[i+1]) {
				kind = diag.KindDuplicate
			}
			dl.Addf(accepted[i].Start, kind, "timestamp repeats at offset %d, keeping furthest frame", accepted[i+1].Start)
			accepted = append(accepted[:i], accepted[i+1:]...)

			return accepted, held, true
		}
	}

	return accepted, held, false
}

// adoptHeld picks the held frame inside (prev.End, prev.End+window) whose
// clock is continuation-consistent with prev. Ties among equally consistent
// candidates go to the furthest match; intervening candidates are discarded
// as duplicates.
func adoptHeld(data []byte, held []Frame, prev, next Frame, clock *clockCache, nominal int64, window int, dl *diag.List) (*Frame, []Frame) {
	prevTS, _ := clock.at(prev.Start)
	nextTS, nextOK := clock.at(next.Start)

	// Candidates are grouped by the tick they would fill; the earliest
	// missing tick is repaired first, later ones on subsequent passes.
	var candidates []int
	bestTick := int64(0)
	for j, h := range held {
		if h.Start < prev.End || h.Start >= prev.End+window || h.Start >= next.Start {
			continue
		}
		hts, ok := clock.at(h.Start)
		if !ok {
			continue
		}
		if nextOK && hts >= nextTS {
			// a frame claiming to postdate the next trusted frame cannot
			// fill this gap
			continue
		}
		tick, ok := continuationTick(prevTS, hts, nominal)
		if !ok {
			continue
		}
		switch {
		case len(candidates) == 0 || tick < bestTick:
			candidates = candidates[:0]
			candidates = append(candidates, j)
			bestTick = tick
		case tick == bestTick:
			candidates = append(candidates, j)
		}
	}

	if len(candidates) == 0 {
		return nil, held
	}

	winner := candidates[len(candidates)-1]
	adopted := held[winner]
	adopted.Resynced = true
	dl.Addf(adopted.Start, diag.KindResync, "boundary rewritten on timestamp continuity after gap at offset %d", prev.End)

	drop := make(map[int]bool, len(candidates))
	drop[winner] = true
	for _, j := range candidates[:len(candidates)-1] {
		kind := diag.KindDropped
		if sameFingerprint(data, held[j], adopted) {
			kind = diag.KindDuplicate
		}
		dl.Addf(held[j].Start, kind, "superseded by furthest consistent frame at offset %d", adopted.Start)
		drop[j] = true
	}

	rest := held[:0:0]
	for j, h := range held {
		if !drop[j] {
			rest = append(rest, h)
		}
	}

	return &adopted, rest
}

// continuationTick reports whether ts continues the cadence started at ts0:
// a positive whole number of nominal intervals later, within a
// quarter-interval tolerance. The returned tick is that whole number.
func continuationTick(ts0, ts, nominal int64) (int64, bool) {
	d := ts - ts0
	if d <= 0 {
		return 0, false
	}

	k := (d + nominal/2) / nominal
	if k < 1 {
		return 0, false
	}

	residual := d - k*nominal
	if residual < 0 {
		residual = -residual
	}

	return k, residual <= nominal/4
}

// modeDelta estimates the nominal sampling interval as the statistical mode
// of successive clock deltas over the valid frames. Returns 0 when no delta
// repeats, which callers must treat as "interval unrecoverable".
func modeDelta(accepted []Frame, clock *clockCache) int64 {
	counts := make(map[int64]int)

	var prev int64
	havePrev := false
	for _, f := range accepted {
		ts, ok := clock.at(f.Start)
		if !ok {
			havePrev = false

			continue
		}
		if havePrev && ts > prev {
			counts[ts-prev]++
		}
		prev = ts
		havePrev = true
	}

	var mode int64
	best := 1
	for delta, n := range counts {
		if n > best || (n == best && mode != 0 && delta < mode) {
			mode = delta
			best = n
		}
	}

	return mode
}

func insertFrame(frames []Frame, f Frame) []Frame {
	i := sort.Search(len(frames), func(i int) bool { return frames[i].Start >= f.Start })
	frames = append(frames, Frame{})
	copy(frames[i+1:], frames[i:])
	frames[i] = f

	return frames
}

// sameFingerprint reports whether two frames carry byte-identical content,
// the signature of a retransmitted block.
func sameFingerprint(data []byte, a, b Frame) bool {
	if a.Len() != b.Len() {
		return false
	}

	return xxhash.Sum64(data[a.Start:a.End]) == xxhash.Sum64(data[b.Start:b.End])
}

// clockCache memoises ClockFunc results per frame start; repair passes
// revisit the same offsets repeatedly.
type clockCache struct {
	fn    ClockFunc
	data  []byte
	known map[int]clockEntry
}

type clockEntry struct {
	ts int64
	ok bool
}

func newClockCache(fn ClockFunc, data []byte) *clockCache {
	return &clockCache{fn: fn, data: data, known: make(map[int]clockEntry)}
}

func (c *clockCache) at(start int) (int64, bool) {
	if e, ok := c.known[start]; ok {
		return e.ts, e.ok
	}

	ts, ok := c.fn(c.data, start)
	c.known[start] = clockEntry{ts: ts, ok: ok}

	return ts, ok
}
