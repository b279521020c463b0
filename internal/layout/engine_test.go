package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedura/console-gateway/internal/models"
)

func session(course string, day models.Weekday, slot string) models.Session {
	return models.Session{
		CourseID:   course + "-id",
		CourseName: course,
		Day:        day,
		Timeslot:   models.Timeslot(slot),
	}
}

func TestDayWindowMapping(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	positioned := engine.Day(models.Monday, []models.Session{
		session("Algebra", models.Monday, "08:00-09:30"),
		session("Physics", models.Monday, "13:30-15:00"),
	})
	require.Len(t, positioned, 2)

	assert.InDelta(t, 0.0, positioned[0].Top, 1e-9)
	// (13.5h - 8h) / 11h * 100
	assert.InDelta(t, (13.5-8)/11*100, positioned[1].Top, 1e-9)
	assert.Equal(t, DefaultSlotHeightPct, positioned[0].Height)
	assert.Equal(t, DefaultSlotHeightPct, positioned[1].Height)
}

func TestDayStackingSameStartMinute(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	positioned := engine.Day(models.Tuesday, []models.Session{
		session("Biology", models.Tuesday, "09:00-11:00"),
		session("Algebra", models.Tuesday, "09:00-10:30"),
	})
	require.Len(t, positioned, 2)

	// Tie-break by course name: Algebra sorts first and anchors the stack.
	assert.Equal(t, "Algebra", positioned[0].CourseName)
	assert.Equal(t, 0, positioned[0].StackIndex)
	assert.Equal(t, "Biology", positioned[1].CourseName)
	assert.Equal(t, 1, positioned[1].StackIndex)
	assert.InDelta(t, positioned[0].Top+DefaultStackOffsetPct, positioned[1].Top, 1e-9)
}

func TestDayNearMissStartsAreNotStacked(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	positioned := engine.Day(models.Monday, []models.Session{
		session("Algebra", models.Monday, "09:00-10:30"),
		session("Biology", models.Monday, "09:01-10:30"),
	})
	require.Len(t, positioned, 2)

	// One minute apart means separate stacks even though the fixed-height
	// boxes visually collide.
	assert.Equal(t, 0, positioned[0].StackIndex)
	assert.Equal(t, 0, positioned[1].StackIndex)
}

func TestDayIsDeterministic(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	sessions := []models.Session{
		session("Chemistry", models.Friday, "10:00-11:30"),
		session("Algebra", models.Friday, "10:00-11:00"),
		session("Physics", models.Friday, "08:15-09:45"),
		session("History", models.Friday, "10:00-12:00"),
	}

	first := engine.Day(models.Friday, sessions)
	second := engine.Day(models.Friday, sessions)
	assert.Equal(t, first, second)
}

func TestDayOutOfWindowStartIsNotClamped(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	positioned := engine.Day(models.Monday, []models.Session{
		session("EarlyBird", models.Monday, "07:00-08:00"),
	})
	require.Len(t, positioned, 1)
	assert.Less(t, positioned[0].Top, 0.0)
}

func TestDaySkipsMalformedTimeslot(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	positioned := engine.Day(models.Monday, []models.Session{
		session("Broken", models.Monday, "morning"),
		session("Algebra", models.Monday, "09:00-10:30"),
	})
	require.Len(t, positioned, 1)
	assert.Equal(t, "Algebra", positioned[0].CourseName)
}

func TestWeekColumnWeights(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	columns := engine.Week([]models.Session{
		session("Algebra", models.Monday, "09:00-10:30"),
		session("Physics", models.Wednesday, "11:00-12:30"),
	})
	require.Len(t, columns, 7)

	byDay := make(map[models.Weekday]DayColumn, len(columns))
	for _, col := range columns {
		byDay[col.Day] = col
	}
	assert.Equal(t, 3, byDay[models.Monday].Weight)
	assert.Equal(t, 3, byDay[models.Wednesday].Weight)
	assert.Equal(t, 1, byDay[models.Tuesday].Weight)
	assert.Equal(t, 1, byDay[models.Sunday].Weight)
}

func TestConfigFromWindow(t *testing.T) {
	cfg, err := ConfigFromWindow("07:30", "18:00", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 450, cfg.WindowStartMinutes)
	assert.Equal(t, 1080, cfg.WindowEndMinutes)

	_, err = ConfigFromWindow("late", "18:00", 10, 2)
	assert.Error(t, err)
}
