package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinutes(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "00:15", want: 15},
		{in: "09:05", want: 545},
		{in: "14:35", want: 875},
		{in: "23:59", want: 1439},
		{in: "24:00", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "0900", wantErr: true},
		{in: "", wantErr: true},
		{in: " 09:00", wantErr: true},
	}

	for _, c := range cases {
		got, err := ToMinutes(c.in)
		if c.wantErr {
			assert.ErrorIs(t, err, ErrInvalidFormat, "input %q", c.in)
			continue
		}
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestToHHMM(t *testing.T) {
	cases := map[int]string{
		0:    "00:00",
		15:   "00:15",
		90:   "01:30",
		545:  "09:05",
		1020: "17:00",
		1439: "23:59",
	}
	for minutes, want := range cases {
		assert.Equal(t, want, ToHHMM(minutes))
	}
}

func TestToHHMMRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m += 7 {
		back, err := ToMinutes(ToHHMM(m))
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
}

func TestRangesOverlap(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"disjoint", 0, 10, 20, 30, false},
		{"touching is not overlap", 0, 10, 10, 20, false},
		{"partial", 0, 15, 10, 20, true},
		{"contained", 0, 30, 10, 20, true},
		{"identical", 5, 10, 5, 10, true},
		{"reverse touching", 10, 20, 0, 10, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, RangesOverlap(c.aStart, c.aEnd, c.bStart, c.bEnd))
			assert.Equal(t, c.want, RangesOverlap(c.bStart, c.bEnd, c.aStart, c.aEnd))
		})
	}
}

func TestAt(t *testing.T) {
	got, err := At("2026-10-20", "09:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 9, 30, 0, 0, time.UTC), got)

	_, err = At("2026-13-01", "09:30")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = At("2026-10-20", "9:30")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: "09:00", End: "12:00"}
	assert.True(t, r.Contains("09:00"))
	assert.True(t, r.Contains("11:59"))
	assert.False(t, r.Contains("12:00"))
	assert.False(t, r.Contains("08:59"))
	assert.False(t, r.Contains("bogus"))

	assert.False(t, Range{Start: "12:00", End: "09:00"}.Contains("10:00"))
}

func TestWeekdayOfDate(t *testing.T) {
	cases := map[string]Weekday{
		"2026-10-19": Mon,
		"2026-10-20": Tue,
		"2026-10-24": Sat,
		"2026-10-25": Sun,
	}
	for date, want := range cases {
		got, err := WeekdayOfDate(date)
		require.NoError(t, err)
		assert.Equal(t, want, got, date)
	}

	_, err := WeekdayOfDate("20-10-2026")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParseWeekday(t *testing.T) {
	w, err := ParseWeekday(" MON ")
	require.NoError(t, err)
	assert.Equal(t, Mon, w)

	_, err = ParseWeekday("monday")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
