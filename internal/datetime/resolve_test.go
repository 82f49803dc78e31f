package datetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/fault"
)

// Wednesday 2026-10-14 10:00 UTC.
var refNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

func TestResolveWeekdayAlwaysNextOccurrence(t *testing.T) {
	names := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	for offset := 0; offset < 7; offset++ {
		now := refNow.AddDate(0, 0, offset)
		for _, name := range names {
			res, err := Resolve(now, "meet on "+name, Components{Hour: Int(9)}, 0)
			require.NoError(t, err)

			want, _ := ParseWeekday(name)
			assert.Equal(t, want, res.Start.Weekday(), "now=%s name=%s", now.Weekday(), name)

			days := dayNumber(res.Start) - dayNumber(now)
			assert.GreaterOrEqual(t, days, 1)
			assert.LessOrEqual(t, days, 7)
			if want == now.Weekday() {
				assert.Equal(t, 7, days)
			}
		}
	}
}

func TestResolveWeekdayOverridesStatedDate(t *testing.T) {
	res, err := Resolve(refNow, "Friday", Components{Year: Int(2020), Month: Int(1), Day: Int(1), Hour: Int(15)}, 60)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC), res.Start)
	assert.Equal(t, time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC), res.End)
}

func TestResolveDefaultsFromReference(t *testing.T) {
	res, err := Resolve(refNow, "", Components{Hour: Int(14), Minute: Int(30)}, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 14, 14, 30, 0, 0, time.UTC), res.Start)
	assert.Equal(t, 30*time.Minute, res.End.Sub(res.Start))
}

func TestResolveTomorrowKeyword(t *testing.T) {
	res, err := Resolve(refNow, "tomorrow at 2pm", Components{Hour: Int(14), Minute: Int(0)}, 45)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC), res.Start)
	assert.Equal(t, time.Date(2026, 10, 15, 14, 45, 0, 0, time.UTC), res.End)
}

func TestResolveFarDateReanchoredToWeekday(t *testing.T) {
	// 2026-12-25 is a Friday, far beyond a week; it lands on the coming Friday.
	res, err := Resolve(refNow, "", Components{Year: Int(2026), Month: Int(12), Day: Int(25), Hour: Int(9), Minute: Int(0)}, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC), res.Start)
}

func TestResolveFarPastDateReanchored(t *testing.T) {
	// 2025-10-14 was a Tuesday.
	res, err := Resolve(refNow, "", Components{Year: Int(2025), Month: Int(10), Day: Int(14), Hour: Int(9), Minute: Int(0)}, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), res.Start)
}

func TestResolveExactlySevenDaysIsKept(t *testing.T) {
	res, err := Resolve(refNow, "", Components{Year: Int(2026), Month: Int(10), Day: Int(21), Hour: Int(9), Minute: Int(0)}, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC), res.Start)
}

func TestResolveRecentPastShiftsOneDay(t *testing.T) {
	// Earlier today.
	res, err := Resolve(refNow, "", Components{Hour: Int(8), Minute: Int(0)}, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC), res.Start)

	// Three days ago moves one day, not to the matching weekday.
	res, err = Resolve(refNow, "", Components{Year: Int(2026), Month: Int(10), Day: Int(11), Hour: Int(9), Minute: Int(0)}, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC), res.Start)
}

func TestResolveRangeErrors(t *testing.T) {
	cases := []Components{
		{Month: Int(9), Day: Int(31)},
		{Month: Int(2), Day: Int(29), Year: Int(2027)},
		{Month: Int(13)},
		{Hour: Int(24)},
		{Minute: Int(60)},
	}
	for _, c := range cases {
		_, err := Resolve(refNow, "", c, 0)
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.UnresolvableTime))
	}
}

func TestResolveNothingToResolve(t *testing.T) {
	_, err := Resolve(refNow, "   ", Components{}, 0)
	assert.True(t, fault.Is(err, fault.UnresolvableTime))

	_, err = Resolve(time.Time{}, "friday", Components{}, 0)
	assert.True(t, fault.Is(err, fault.UnresolvableTime))
}

func TestResolveKeepsReferenceLocation(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, loc)
	res, err := Resolve(now, "monday", Components{Hour: Int(9), Minute: Int(0)}, 0)
	require.NoError(t, err)
	assert.Equal(t, loc, res.Start.Location())
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, loc), res.Start)
}

func TestDaysAhead(t *testing.T) {
	assert.Equal(t, 7, DaysAhead(time.Monday, time.Monday))
	assert.Equal(t, 1, DaysAhead(time.Saturday, time.Sunday))
	assert.Equal(t, 6, DaysAhead(time.Sunday, time.Saturday))
}
