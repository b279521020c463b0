package models

import "time"

// Category identifies one of the fixed CSV data categories.
type Category string

const (
	CategoryDepartment   Category = "DEPARTMENT"
	CategoryCourse       Category = "COURSE"
	CategoryTeacher      Category = "TEACHER"
	CategoryClassroom    Category = "CLASSROOM"
	CategoryStudentGroup Category = "STUDENTGROUP"
	CategoryStudent      Category = "STUDENT"
	CategorySGCourse     Category = "SGCOURSE"
)

// CategoryOrder is the fixed upload order. Bulk uploads walk it strictly
// front to back so dependencies are always satisfied first.
var CategoryOrder = []Category{
	CategoryDepartment,
	CategoryCourse,
	CategoryTeacher,
	CategoryClassroom,
	CategoryStudentGroup,
	CategoryStudent,
	CategorySGCourse,
}

// CategorySpec declares a category's upload prerequisites. The dependency
// graph is fixed at compile time and acyclic.
type CategorySpec struct {
	Dependencies []Category
	Required     bool
}

// CategoryRegistry maps every category to its spec.
var CategoryRegistry = map[Category]CategorySpec{
	CategoryDepartment:   {Required: true},
	CategoryCourse:       {Dependencies: []Category{CategoryDepartment}, Required: true},
	CategoryTeacher:      {Dependencies: []Category{CategoryDepartment, CategoryCourse}, Required: true},
	CategoryClassroom:    {Dependencies: []Category{CategoryDepartment}, Required: true},
	CategoryStudentGroup: {Dependencies: []Category{CategoryDepartment}, Required: true},
	CategoryStudent:      {Dependencies: []Category{CategoryStudentGroup}, Required: false},
	CategorySGCourse:     {Dependencies: []Category{CategoryStudentGroup, CategoryCourse}, Required: true},
}

// CategoryState tracks where a category sits in the upload workflow.
type CategoryState string

const (
	StateEmpty     CategoryState = "EMPTY"
	StateUploading CategoryState = "UPLOADING"
	StateQueued    CategoryState = "QUEUED"
	StateFailed    CategoryState = "FAILED"
	StateCompleted CategoryState = "COMPLETED"
)

// Satisfied reports whether the state unblocks dependant categories.
func (s CategoryState) Satisfied() bool {
	return s == StateQueued || s == StateCompleted
}

// CategoryStatus is the per-category workflow snapshot surfaced to the UI.
type CategoryStatus struct {
	Category   Category      `json:"category"`
	State      CategoryState `json:"state"`
	FileName   string        `json:"file_name,omitempty"`
	TaskID     string        `json:"task_id,omitempty"`
	ErrorCount int           `json:"error_count"`
	Message    string        `json:"message,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// TaskStatus is the server-reported state of an upload task. Transitions
// are driven entirely by upstream polling, never computed locally.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "QUEUED"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskFailed    TaskStatus = "FAILED"
)

// UploadTask represents one asynchronous server-side validation job.
type UploadTask struct {
	ID          string     `json:"task_id"`
	FileName    string     `json:"file_name"`
	Category    Category   `json:"category"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	ErrorCount  int        `json:"error_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IssueSeverity ranks a validation finding.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "ERROR"
	SeverityWarning IssueSeverity = "WARNING"
)

// ValidationIssue is a single row-level finding on an upload task.
type ValidationIssue struct {
	Row      int           `json:"row"`
	Column   string        `json:"column,omitempty"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// UploadTaskDetail is an UploadTask with its ordered findings.
type UploadTaskDetail struct {
	UploadTask
	Errors []ValidationIssue `json:"errors"`
}
