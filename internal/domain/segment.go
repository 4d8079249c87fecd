package domain

import (
	"math/bits"
)

// MaxSegments is the highest segment index a route can carry. Segment
// indices start at 1, so a SegmentSet holds segments 1..63.
const MaxSegments = 63

// SegmentSet is the set of route segment indices still sellable for a
// seat, encoded as a bitmask. Segment i occupies bit i.
type SegmentSet uint64

// NewSegmentSet builds a set from explicit segment indices. Indices
// outside 1..MaxSegments are ignored.
func NewSegmentSet(segments ...int) SegmentSet {
	var s SegmentSet
	for _, seg := range segments {
		if seg >= 1 && seg <= MaxSegments {
			s |= 1 << uint(seg)
		}
	}
	return s
}

// FullSegmentSet returns the set of all segments for a route with the
// given number of stops (stopCount-1 segments). Routes with more stops
// than MaxSegments+1 are not representable and yield the empty set;
// tour creation rejects such routes before any seat is built.
func FullSegmentSet(stopCount int) SegmentSet {
	if stopCount < 2 || stopCount-1 > MaxSegments {
		return 0
	}
	s, err := SegmentRange(1, stopCount)
	if err != nil {
		return 0
	}
	return s
}

// SegmentRange returns the segments covered by travel from stop order
// `from` to stop order `to`, i.e. segments [from, to). It fails with
// ErrInvalidSegmentRange when the range is not strictly increasing or
// reaches past MaxSegments: a silently empty set here would let a
// reservation succeed without removing anything.
func SegmentRange(from, to int) (SegmentSet, error) {
	if from < 1 || to <= from || to-1 > MaxSegments {
		return 0, ErrInvalidSegmentRange
	}
	var s SegmentSet
	for seg := from; seg < to; seg++ {
		s |= 1 << uint(seg)
	}
	return s, nil
}

// Contains reports whether a single segment is in the set.
func (s SegmentSet) Contains(segment int) bool {
	if segment < 1 || segment > MaxSegments {
		return false
	}
	return s&(1<<uint(segment)) != 0
}

// ContainsAll reports whether every segment of o is present in s.
func (s SegmentSet) ContainsAll(o SegmentSet) bool {
	return s&o == o
}

// Union returns the set with all segments of o added.
func (s SegmentSet) Union(o SegmentSet) SegmentSet {
	return s | o
}

// Remove returns the set with all segments of o removed.
func (s SegmentSet) Remove(o SegmentSet) SegmentSet {
	return s &^ o
}

// IsEmpty reports whether the set holds no segments.
func (s SegmentSet) IsEmpty() bool {
	return s == 0
}

// Count returns the number of segments in the set.
func (s SegmentSet) Count() int {
	return bits.OnesCount64(uint64(s))
}

// Segments returns the segment indices in ascending order.
func (s SegmentSet) Segments() []int {
	out := make([]int, 0, s.Count())
	for seg := 1; seg <= MaxSegments; seg++ {
		if s.Contains(seg) {
			out = append(out, seg)
		}
	}
	return out
}
