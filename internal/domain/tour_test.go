package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeat_Reserve(t *testing.T) {
	seat := &Seat{TourID: "tour-1", Number: 7, FreeSegments: FullSegmentSet(4)}

	require.NoError(t, seat.Reserve(NewSegmentSet(1, 2)))
	assert.Equal(t, []int{3}, seat.FreeSegments.Segments())

	// Remaining tail segment is still sellable.
	require.NoError(t, seat.Reserve(NewSegmentSet(3)))
	assert.True(t, seat.FreeSegments.IsEmpty())

	err := seat.Reserve(NewSegmentSet(1))
	assert.ErrorIs(t, err, ErrSegmentUnavailable)
}

func TestSeat_ReserveEmptyRequest(t *testing.T) {
	seat := &Seat{TourID: "tour-1", Number: 7, FreeSegments: FullSegmentSet(4)}

	before := seat.FreeSegments
	err := seat.Reserve(NewSegmentSet())
	assert.ErrorIs(t, err, ErrSegmentUnavailable)
	assert.Equal(t, before, seat.FreeSegments)
}

func TestSeat_ReserveOverlapLeavesSeatUntouched(t *testing.T) {
	seat := &Seat{TourID: "tour-1", Number: 7, FreeSegments: FullSegmentSet(4)}
	require.NoError(t, seat.Reserve(NewSegmentSet(2, 3)))

	before := seat.FreeSegments
	err := seat.Reserve(NewSegmentSet(1, 2))
	assert.ErrorIs(t, err, ErrSegmentUnavailable)
	assert.Equal(t, before, seat.FreeSegments)
}

func TestSeat_ReserveBlocked(t *testing.T) {
	seat := &Seat{TourID: "tour-1", Number: 7, Blocked: true, FreeSegments: FullSegmentSet(4)}
	assert.ErrorIs(t, seat.Reserve(NewSegmentSet(1)), ErrSeatBlocked)
}

func TestSeat_ReleaseRestoresRange(t *testing.T) {
	seat := &Seat{TourID: "tour-1", Number: 7, FreeSegments: FullSegmentSet(4)}
	segments := NewSegmentSet(1, 2, 3)

	require.NoError(t, seat.Reserve(segments))
	seat.Release(segments)
	assert.Equal(t, FullSegmentSet(4), seat.FreeSegments)
}

func TestSeat_ReleaseOnBlockedSeat(t *testing.T) {
	seat := &Seat{TourID: "tour-1", Number: 7, Blocked: true}
	seat.Release(NewSegmentSet(1, 2))
	assert.Equal(t, NewSegmentSet(1, 2), seat.FreeSegments)
	assert.False(t, seat.CanSell(NewSegmentSet(1)))
}

func TestSeat_CanSell(t *testing.T) {
	seat := &Seat{TourID: "tour-1", Number: 7, FreeSegments: NewSegmentSet(2, 3)}

	assert.True(t, seat.CanSell(NewSegmentSet(2)))
	assert.True(t, seat.CanSell(NewSegmentSet(2, 3)))
	assert.False(t, seat.CanSell(NewSegmentSet(1, 2)))

	seat.Blocked = true
	assert.False(t, seat.CanSell(NewSegmentSet(2)))
}
