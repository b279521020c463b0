package layout

import (
	"sort"

	"github.com/schedura/console-gateway/internal/models"
)

// Default window 08:00-19:00 with the stacking geometry the calendar grid
// was tuned around.
const (
	DefaultWindowStartMinutes = 8 * 60
	DefaultWindowEndMinutes   = 19 * 60
	DefaultSlotHeightPct      = 12.5
	DefaultStackOffsetPct     = 2.5

	emptyDayWeight     = 1
	populatedDayWeight = 3
)

// Config defines the visible calendar window and stacking geometry.
type Config struct {
	WindowStartMinutes int
	WindowEndMinutes   int
	SlotHeightPct      float64
	StackOffsetPct     float64
}

// DefaultConfig returns the product's standard calendar window.
func DefaultConfig() Config {
	return Config{
		WindowStartMinutes: DefaultWindowStartMinutes,
		WindowEndMinutes:   DefaultWindowEndMinutes,
		SlotHeightPct:      DefaultSlotHeightPct,
		StackOffsetPct:     DefaultStackOffsetPct,
	}
}

// ConfigFromWindow builds a Config from "HH:MM" bounds.
func ConfigFromWindow(dayStart, dayEnd string, heightPct, offsetPct float64) (Config, error) {
	start, err := models.ClockMinutes(dayStart)
	if err != nil {
		return Config{}, err
	}
	end, err := models.ClockMinutes(dayEnd)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		WindowStartMinutes: start,
		WindowEndMinutes:   end,
		SlotHeightPct:      heightPct,
		StackOffsetPct:     offsetPct,
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.WindowEndMinutes <= c.WindowStartMinutes {
		c.WindowStartMinutes = DefaultWindowStartMinutes
		c.WindowEndMinutes = DefaultWindowEndMinutes
	}
	if c.SlotHeightPct <= 0 {
		c.SlotHeightPct = DefaultSlotHeightPct
	}
	if c.StackOffsetPct <= 0 {
		c.StackOffsetPct = DefaultStackOffsetPct
	}
}

// DayColumn is one laid-out day of the weekly grid. Weight carries the
// relative column width: populated days render three times as wide as
// empty ones.
type DayColumn struct {
	Day      models.Weekday             `json:"day"`
	Weight   int                        `json:"weight"`
	Sessions []models.PositionedSession `json:"sessions"`
}

// Engine converts flat session lists into calendar grid coordinates.
// It is pure: the same input always yields the same output.
type Engine struct {
	cfg Config
}

// NewEngine validates and captures the window configuration.
func NewEngine(cfg Config) *Engine {
	cfg.normalize()
	return &Engine{cfg: cfg}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Day positions every session of the given weekday. Sessions are sorted by
// start minute with courseName as the deterministic tie-break; sessions
// sharing an exact start minute are fanned out by StackOffsetPct, and the
// fan rank becomes the resting z-order. Starts outside the window are not
// clamped, so their Top may fall outside [0,100). Sessions whose timeslot
// cannot be parsed are dropped from the layout.
func (e *Engine) Day(day models.Weekday, sessions []models.Session) []models.PositionedSession {
	type timed struct {
		session models.Session
		start   int
	}

	filtered := make([]timed, 0, len(sessions))
	for _, s := range sessions {
		if s.Day != day {
			continue
		}
		start, err := s.Timeslot.StartMinutes()
		if err != nil {
			continue
		}
		filtered = append(filtered, timed{session: s, start: start})
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].start != filtered[j].start {
			return filtered[i].start < filtered[j].start
		}
		return filtered[i].session.CourseName < filtered[j].session.CourseName
	})

	total := float64(e.cfg.WindowEndMinutes - e.cfg.WindowStartMinutes)
	// Stacking keys on exact start-minute equality only, not interval
	// overlap. Fixed heights are tuned around this rule.
	stacks := make(map[int]int, len(filtered))

	positioned := make([]models.PositionedSession, 0, len(filtered))
	for _, entry := range filtered {
		stackIndex := stacks[entry.start]
		stacks[entry.start] = stackIndex + 1

		base := float64(entry.start-e.cfg.WindowStartMinutes) / total * 100
		positioned = append(positioned, models.PositionedSession{
			Session:    entry.session,
			Top:        base + float64(stackIndex)*e.cfg.StackOffsetPct,
			Height:     e.cfg.SlotHeightPct,
			StackIndex: stackIndex,
		})
	}

	return positioned
}

// Week lays out all seven days in display order, attaching column weights.
func (e *Engine) Week(sessions []models.Session) []DayColumn {
	columns := make([]DayColumn, 0, len(models.WeekOrder))
	for _, day := range models.WeekOrder {
		positioned := e.Day(day, sessions)
		weight := emptyDayWeight
		if len(positioned) > 0 {
			weight = populatedDayWeight
		}
		columns = append(columns, DayColumn{
			Day:      day,
			Weight:   weight,
			Sessions: positioned,
		})
	}
	return columns
}
