package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlots_DropsPartialTrailingSlot(t *testing.T) {
	slots, err := GenerateSlots([]Range{{Start: "09:00", End: "09:50"}}, 15)
	require.NoError(t, err)

	assert.Equal(t, []Slot{
		{StartTime: "09:00", EndTime: "09:15"},
		{StartTime: "09:15", EndTime: "09:30"},
		{StartTime: "09:30", EndTime: "09:45"},
	}, slots)
}

func TestGenerateSlots_ConcatenatesInRangeOrder(t *testing.T) {
	slots, err := GenerateSlots([]Range{
		{Start: "14:00", End: "14:40"},
		{Start: "09:00", End: "09:20"},
	}, 20)
	require.NoError(t, err)

	assert.Equal(t, []Slot{
		{StartTime: "14:00", EndTime: "14:20"},
		{StartTime: "14:20", EndTime: "14:40"},
		{StartTime: "09:00", EndTime: "09:20"},
	}, slots)
}

func TestGenerateSlots_ContiguousAndExact(t *testing.T) {
	ranges := []Range{{Start: "08:00", End: "12:07"}, {Start: "13:00", End: "17:00"}}
	for _, duration := range []int{5, 10, 15, 20, 30, 45, 60} {
		slots, err := GenerateSlots(ranges, duration)
		require.NoError(t, err)
		require.NotEmpty(t, slots)

		for i, s := range slots {
			start, err := ToMinutes(s.StartTime)
			require.NoError(t, err)
			end, err := ToMinutes(s.EndTime)
			require.NoError(t, err)
			assert.Equal(t, duration, end-start, "duration %d slot %d", duration, i)

			inside := false
			for _, r := range ranges {
				rs, re, _ := r.Bounds()
				if start >= rs && end <= re {
					inside = true
				}
			}
			assert.True(t, inside, "slot %v escapes its range", s)

			if i > 0 {
				prevEnd, _ := ToMinutes(slots[i-1].EndTime)
				if prevEnd > start {
					t.Fatalf("duration %d: slot %d overlaps its predecessor", duration, i)
				}
			}
		}
	}
}

func TestGenerateSlots_Deterministic(t *testing.T) {
	ranges := []Range{{Start: "09:00", End: "11:00"}}
	first, err := GenerateSlots(ranges, 15)
	require.NoError(t, err)
	second, err := GenerateSlots(ranges, 15)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 8)
}

func TestGenerateSlots_Errors(t *testing.T) {
	_, err := GenerateSlots([]Range{{Start: "09:00", End: "10:00"}}, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = GenerateSlots([]Range{{Start: "10:00", End: "09:00"}}, 15)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	slots, err := GenerateSlots(nil, 15)
	require.NoError(t, err)
	assert.Empty(t, slots)

	slots, err = GenerateSlots([]Range{{Start: "09:00", End: "09:10"}}, 15)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAddMinutes(t *testing.T) {
	got, err := AddMinutes("09:50", 15)
	require.NoError(t, err)
	assert.Equal(t, "10:05", got)

	_, err = AddMinutes("bad", 15)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
