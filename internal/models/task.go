package models

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
)

// ValidTaskStatuses enumerates the supported task statuses.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	StatusTodo:       {},
	StatusInProgress: {},
	StatusReview:     {},
	StatusDone:       {},
	StatusBlocked:    {},
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities from low (0) to urgent (3).
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return -1
}

// Task is a unit of work inside a column.
type Task struct {
	ID                   string       `json:"id"`
	Title                string       `json:"title"`
	Description          string       `json:"description"`
	Status               TaskStatus   `json:"status"`
	Priority             Priority     `json:"priority"`
	ColumnID             string       `json:"column_id"`
	BoardID              string       `json:"board_id"`
	ProjectID            string       `json:"project_id"`
	ParentTaskID         *string      `json:"parent_task_id,omitempty"`
	ReporterID           string       `json:"reporter_id"`
	Assignees            []string     `json:"assignees"`
	Position             int          `json:"position"`
	DueDate              *time.Time   `json:"due_date,omitempty"`
	CompletedAt          *time.Time   `json:"completed_at,omitempty"`
	Tags                 []string     `json:"tags"`
	EstimatedHours       *float64     `json:"estimated_hours,omitempty"`
	ActualHours          float64      `json:"actual_hours"`
	CompletionPercentage int          `json:"completion_percentage"`
	Comments             []Comment    `json:"comments,omitempty"`
	Attachments          []Attachment `json:"attachments,omitempty"`
	TimeEntries          []TimeEntry  `json:"time_entries,omitempty"`
	IsArchived           bool         `json:"is_archived"`
	ArchivedAt           *time.Time   `json:"archived_at,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// HasAssignee reports whether userID is assigned to the task.
func (t Task) HasAssignee(userID string) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

// Comment is a discussion entry on a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment references a file stored outside the service layer.
type Attachment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	UploadedBy string    `json:"uploaded_by"`
	FileName   string    `json:"file_name"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// TimeEntry records hours a user spent on a task.
type TimeEntry struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	UserID      string    `json:"user_id"`
	Hours       float64   `json:"hours"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskFilters narrows a task listing or search.
type TaskFilters struct {
	ProjectID       string       `json:"project_id" form:"project_id" validate:"omitempty,uuid"`
	BoardID         string       `json:"board_id" form:"board_id" validate:"omitempty,uuid"`
	ColumnID        string       `json:"column_id" form:"column_id" validate:"omitempty,uuid"`
	Statuses        []TaskStatus `json:"statuses" form:"status" validate:"omitempty,dive,oneof=todo in_progress review done blocked"`
	Priorities      []Priority   `json:"priorities" form:"priority" validate:"omitempty,dive,oneof=low medium high urgent"`
	AssigneeIDs     []string     `json:"assignee_ids" form:"assignee" validate:"omitempty,dive,uuid"`
	Tags            []string     `json:"tags" form:"tag" validate:"omitempty,dive,min=1,max=50"`
	DueFrom         *time.Time   `json:"due_from" form:"due_from"`
	DueTo           *time.Time   `json:"due_to" form:"due_to"`
	CreatedFrom     *time.Time   `json:"created_from" form:"created_from"`
	CreatedTo       *time.Time   `json:"created_to" form:"created_to"`
	Query           string       `json:"query" form:"q" validate:"max=200"`
	IncludeArchived bool         `json:"include_archived" form:"include_archived"`
}
