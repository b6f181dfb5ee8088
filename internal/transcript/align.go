package transcript

import "sort"

// overlapMs returns the length of the intersection of [a0,a1) and [b0,b1),
// or zero when they do not intersect.
func overlapMs(a0, a1, b0, b1 int64) int64 {
	lo := a0
	if b0 > lo {
		lo = b0
	}
	hi := a1
	if b1 < hi {
		hi = b1
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// AlignSpeakers relabels each line with the speaker of the diarization
// segment that overlaps it the most. Ties go to the segment with the
// earliest start time. Lines with no overlapping segment keep their original
// speaker. The inputs are not mutated; the result is a fresh slice.
func AlignSpeakers(segments []Segment, lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)

	if len(segments) == 0 || len(lines) == 0 {
		return out
	}

	segs := make([]Segment, len(segments))
	copy(segs, segments)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].StartMs < segs[j].StartMs })

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMs < out[j].StartMs })

	for i := range out {
		var best int64
		bestIdx := -1
		for j, s := range segs {
			// Segments are sorted by start; nothing past the line can overlap.
			if s.StartMs >= out[i].EndMs {
				break
			}
			ov := overlapMs(out[i].StartMs, out[i].EndMs, s.StartMs, s.EndMs)
			if ov > best {
				best = ov
				bestIdx = j
			}
		}
		if bestIdx >= 0 && best > 0 {
			out[i].Speaker = segs[bestIdx].Speaker
		}
	}

	return out
}
