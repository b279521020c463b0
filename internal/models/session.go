package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Weekday enumerates the seven repeating days of a timetable week.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// WeekOrder lists the weekdays in display order.
var WeekOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// SessionType classifies how a session is taught.
type SessionType string

const (
	Lecture  SessionType = "LECTURE"
	Lab      SessionType = "LAB"
	Tutorial SessionType = "TUTORIAL"
)

// Timeslot is a half-open "HH:MM-HH:MM" interval on a 24-hour clock.
type Timeslot string

// StartMinutes returns the left component converted to minutes since midnight.
func (t Timeslot) StartMinutes() (int, error) {
	start, _, err := t.split()
	if err != nil {
		return 0, err
	}
	return ClockMinutes(start)
}

// EndMinutes returns the right component converted to minutes since midnight.
func (t Timeslot) EndMinutes() (int, error) {
	_, end, err := t.split()
	if err != nil {
		return 0, err
	}
	return ClockMinutes(end)
}

// Validate checks the "HH:MM-HH:MM" shape and the start < end invariant.
func (t Timeslot) Validate() error {
	start, err := t.StartMinutes()
	if err != nil {
		return err
	}
	end, err := t.EndMinutes()
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("timeslot %q: start must precede end", t)
	}
	return nil
}

func (t Timeslot) split() (string, string, error) {
	parts := strings.SplitN(string(t), "-", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("timeslot %q: expected HH:MM-HH:MM", t)
	}
	return parts[0], parts[1], nil
}

// ClockMinutes converts a "HH:MM" clock value to minutes since midnight.
func ClockMinutes(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock value %q: expected HH:MM", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("clock value %q: %w", raw, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("clock value %q: %w", raw, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}
	return hours*60 + minutes, nil
}

// Session is one weekly-recurring scheduled meeting of a course section.
// Sessions are produced by the upstream generator and are read-only here.
type Session struct {
	CourseID      string      `json:"course_id"`
	CourseName    string      `json:"course_name"`
	TeacherID     string      `json:"teacher_id"`
	TeacherName   string      `json:"teacher_name"`
	ClassroomID   string      `json:"classroom_id"`
	ClassroomName string      `json:"classroom_name"`
	ClassGroupIDs []string    `json:"class_group_ids"`
	Type          SessionType `json:"session_type"`
	Timeslot      Timeslot    `json:"timeslot"`
	Day           Weekday     `json:"day"`
}

// PositionedSession augments a Session with the layout attributes the
// calendar grid needs. Top and Height are percentages of the visible day
// column; StackIndex doubles as the resting z-order.
type PositionedSession struct {
	Session
	Top        float64 `json:"top"`
	Height     float64 `json:"height"`
	StackIndex int     `json:"stack_index"`
}
