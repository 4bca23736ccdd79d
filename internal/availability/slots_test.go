package availability

import (
	"math/rand"
	"testing"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sunday = "2026-03-01"

func at(t *testing.T, loc *time.Location, date, clock string) time.Time {
	t.Helper()
	day, err := ParseDate(date, loc)
	require.NoError(t, err)
	ts, err := models.ClockOn(day, clock)
	require.NoError(t, err)
	return ts
}

func TestGenerateSlots(t *testing.T) {
	slots, closed, err := GenerateSlots(sunday, models.DefaultBusinessHours(), 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, closed)
	require.Len(t, slots, 22)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "19:30", slots[len(slots)-1])
}

func TestGenerateSlotsClosedDays(t *testing.T) {
	for _, date := range []string{"2026-03-06", "2026-03-07"} {
		slots, closed, err := GenerateSlots(date, models.DefaultBusinessHours(), 30*time.Minute)
		require.NoError(t, err)
		assert.True(t, closed, date)
		assert.Empty(t, slots, date)
	}
}

func TestGenerateSlotsInvalidDate(t *testing.T) {
	for _, date := range []string{"", "2026-13-01", "01/03/2026", "tomorrow"} {
		_, _, err := GenerateSlots(date, models.DefaultBusinessHours(), 30*time.Minute)
		assert.ErrorIs(t, err, ErrInvalidDate, date)
	}
}

func TestGenerateSlotsSpacing(t *testing.T) {
	hours := models.BusinessHours{time.Sunday: {Open: "10:15", Close: "13:00"}}
	slots, _, err := GenerateSlots(sunday, hours, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:15", "10:45", "11:15", "11:45", "12:15", "12:45"}, slots)

	for i := 1; i < len(slots); i++ {
		prev, _ := time.Parse(models.TimeLayout, slots[i-1])
		cur, _ := time.Parse(models.TimeLayout, slots[i])
		assert.Equal(t, 30*time.Minute, cur.Sub(prev))
	}
	last, _ := time.Parse(models.TimeLayout, slots[len(slots)-1])
	closeAt, _ := time.Parse(models.TimeLayout, "13:00")
	assert.True(t, last.Before(closeAt))
}

// 60 minute service with no busy intervals: 19:00 ends exactly at closing, 19:30 does not fit.
func TestScenarioFullDayOneHourService(t *testing.T) {
	loc := time.UTC
	hours := models.DefaultBusinessHours()
	day, _ := ParseDate(sunday, loc)
	slots, _, err := GenerateSlots(sunday, hours, 30*time.Minute)
	require.NoError(t, err)

	closeAt, ok := Closing(day, hours)
	require.True(t, ok)
	got := FilterAvailable(day, FitBeforeClose(day, slots, time.Hour, closeAt), time.Hour, nil)

	require.Len(t, got, 21)
	assert.Equal(t, "09:00", got[0])
	assert.Equal(t, "19:00", got[len(got)-1])
	assert.NotContains(t, got, "19:30")
}

func TestScenarioBusyHourHalfHourService(t *testing.T) {
	loc := time.UTC
	day, _ := ParseDate(sunday, loc)
	slots, _, err := GenerateSlots(sunday, models.DefaultBusinessHours(), 30*time.Minute)
	require.NoError(t, err)

	busy := []models.BusyInterval{{Start: at(t, loc, sunday, "10:00"), End: at(t, loc, sunday, "11:00")}}
	got := FilterAvailable(day, slots, 30*time.Minute, busy)

	assert.Contains(t, got, "09:30")
	assert.Contains(t, got, "11:00")
	assert.NotContains(t, got, "10:00")
	assert.NotContains(t, got, "10:30")
	assert.Len(t, got, len(slots)-2)
}

func TestFilterAvailableLongServiceReachesIntoBusy(t *testing.T) {
	loc := time.UTC
	day, _ := ParseDate(sunday, loc)
	busy := []models.BusyInterval{{Start: at(t, loc, sunday, "12:00"), End: at(t, loc, sunday, "12:30")}}

	// 10:00 + 2h ends exactly when the busy interval starts.
	got := FilterAvailable(day, []string{"10:00", "10:30", "11:00", "11:30", "12:30"}, 2*time.Hour, busy)
	assert.Equal(t, []string{"10:00", "12:30"}, got)
}

func TestFilterAvailableLongServiceOverlapsBusyStart(t *testing.T) {
	loc := time.UTC
	day, _ := ParseDate(sunday, loc)
	busy := []models.BusyInterval{{Start: at(t, loc, sunday, "12:00"), End: at(t, loc, sunday, "12:30")}}

	got := FilterAvailable(day, []string{"10:30"}, 2*time.Hour, busy)
	assert.Empty(t, got)

	got = FilterAvailable(day, []string{"10:30"}, 90*time.Minute, busy)
	assert.Equal(t, []string{"10:30"}, got)
}

func TestFilterAvailableMatchesOverlapDefinition(t *testing.T) {
	loc := time.UTC
	day, _ := ParseDate(sunday, loc)
	slots, _, err := GenerateSlots(sunday, models.DefaultBusinessHours(), 30*time.Minute)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	durations := []time.Duration{10 * time.Minute, 30 * time.Minute, time.Hour, 75 * time.Minute, 2 * time.Hour}

	for round := 0; round < 200; round++ {
		var busy []models.BusyInterval
		for i := 0; i < rng.Intn(5); i++ {
			start := day.Add(time.Duration(8*60+rng.Intn(13*60)) * time.Minute)
			busy = append(busy, models.BusyInterval{Start: start, End: start.Add(time.Duration(5+rng.Intn(150)) * time.Minute)})
		}
		duration := durations[rng.Intn(len(durations))]

		got := FilterAvailable(day, slots, duration, busy)
		again := FilterAvailable(day, slots, duration, busy)
		assert.Equal(t, got, again)

		for _, s := range slots {
			start, _ := models.ClockOn(day, s)
			end := start.Add(duration)
			overlaps := false
			for _, b := range busy {
				if start.Before(b.End) && b.Start.Before(end) {
					overlaps = true
				}
			}
			assert.Equal(t, !overlaps, contains(got, s), "round %d slot %s", round, s)
		}
	}
}

func TestRemoveBlocked(t *testing.T) {
	slots := []string{"09:00", "09:30", "10:00"}
	assert.Equal(t, []string{"09:00", "10:00"}, RemoveBlocked(slots, []string{"09:30", "15:00"}))
	assert.Equal(t, slots, RemoveBlocked(slots, nil))
}
