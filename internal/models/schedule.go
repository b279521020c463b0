package models

import "time"

// Schedule is a named, timestamped set of sessions produced by the upstream
// generator. Sessions may be omitted when only summary metadata was fetched.
type Schedule struct {
	ID        string    `json:"schedule_id"`
	Name      string    `json:"schedule_name"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
	Sessions  []Session `json:"sessions,omitempty"`
}

// SessionSearchParams narrows a schedule's session list server-side. All
// filter fields are optional; zero values are omitted from the request body.
type SessionSearchParams struct {
	ScheduleID        string      `json:"schedule_id" validate:"required"`
	TeacherID         string      `json:"teacher_id,omitempty"`
	TeacherName       string      `json:"teacher_name,omitempty"`
	CourseID          string      `json:"course_id,omitempty"`
	CourseName        string      `json:"course_name,omitempty"`
	SessionType       SessionType `json:"session_type,omitempty"`
	Day               Weekday     `json:"day,omitempty"`
	ClassroomID       string      `json:"classroom_id,omitempty"`
	ClassroomName     string      `json:"classroom_name,omitempty"`
	ClassroomBuilding string      `json:"classroom_building,omitempty"`
	StudentGroupID    string      `json:"student_group_id,omitempty"`
	StudentGroupName  string      `json:"student_group_name,omitempty"`
	WheelchairAccess  *bool       `json:"wheelchair_access,omitempty"`
	ProjectorRequired *bool       `json:"projector_required,omitempty"`
}
