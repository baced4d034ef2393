package models

import "time"

// Payloads accepted by the domain services. Pointer fields on update payloads
// are optional: nil leaves the stored value untouched.

type CreateProjectInput struct {
	Name        string           `json:"name" validate:"required,notblank,max=100"`
	Description string           `json:"description" validate:"max=1000"`
	Color       string           `json:"color" validate:"omitempty,hexcolor"`
	Settings    *ProjectSettings `json:"settings"`
}

type UpdateProjectInput struct {
	Name        *string          `json:"name" validate:"omitnil,notblank,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	Color       *string          `json:"color" validate:"omitempty,hexcolor"`
	Settings    *ProjectSettings `json:"settings"`
}

type AddMemberInput struct {
	UserID      string       `json:"user_id" validate:"required,uuid"`
	Role        Role         `json:"role" validate:"required,oneof=admin member viewer"`
	Permissions *Permissions `json:"permissions"`
}

type UpdateMemberRoleInput struct {
	Role Role `json:"role" validate:"required,oneof=admin member viewer"`
	// ResetPermissions replaces the member's flags with the new role's defaults.
	ResetPermissions bool `json:"reset_permissions"`
}

type CreateBoardInput struct {
	ProjectID          string          `json:"project_id" validate:"required,uuid"`
	Name               string          `json:"name" validate:"required,notblank,max=100"`
	Description        string          `json:"description" validate:"max=1000"`
	Visibility         BoardVisibility `json:"visibility" validate:"omitempty,oneof=private project public"`
	Position           *int            `json:"position" validate:"omitempty,min=0"`
	Settings           *BoardSettings  `json:"settings"`
	WithDefaultColumns bool            `json:"with_default_columns"`
}

type UpdateBoardInput struct {
	Name        *string          `json:"name" validate:"omitnil,notblank,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	Visibility  *BoardVisibility `json:"visibility" validate:"omitempty,oneof=private project public"`
	Settings    *BoardSettings   `json:"settings"`
}

// DuplicateBoardInput names the copy; an empty name derives one from the source board.
type DuplicateBoardInput struct {
	Name string `json:"name" validate:"omitempty,notblank,max=100"`
}

// MoveInput repositions an entity inside its sibling group. ParentID is only
// honored for tasks, where it names the target column.
type MoveInput struct {
	ParentID string `json:"parent_id" validate:"omitempty,uuid"`
	Position int    `json:"position" validate:"min=0"`
}

type CreateColumnInput struct {
	BoardID  string          `json:"board_id" validate:"required,uuid"`
	Name     string          `json:"name" validate:"required,notblank,max=50"`
	Color    string          `json:"color" validate:"omitempty,hexcolor"`
	WIPLimit *int            `json:"wip_limit" validate:"omitnil,min=1,max=100"`
	Position *int            `json:"position" validate:"omitempty,min=0"`
	Settings *ColumnSettings `json:"settings"`
}

type UpdateColumnInput struct {
	Name          *string         `json:"name" validate:"omitnil,notblank,max=50"`
	Color         *string         `json:"color" validate:"omitempty,hexcolor"`
	WIPLimit      *int            `json:"wip_limit" validate:"omitnil,min=1,max=100"`
	ClearWIPLimit bool            `json:"clear_wip_limit"`
	Settings      *ColumnSettings `json:"settings"`
}

type CreateTaskInput struct {
	ColumnID             string     `json:"column_id" validate:"required,uuid"`
	Title                string     `json:"title" validate:"required,notblank,max=200"`
	Description          string     `json:"description" validate:"max=5000"`
	Status               TaskStatus `json:"status" validate:"omitempty,oneof=todo in_progress review done blocked"`
	Priority             Priority   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Assignees            []string   `json:"assignees" validate:"omitempty,max=20,unique,dive,uuid"`
	DueDate              *time.Time `json:"due_date"`
	Tags                 []string   `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	EstimatedHours       *float64   `json:"estimated_hours" validate:"omitempty,finite,min=0,max=1000"`
	CompletionPercentage *int       `json:"completion_percentage" validate:"omitempty,min=0,max=100"`
	ParentTaskID         *string    `json:"parent_task_id" validate:"omitempty,uuid"`
	Position             *int       `json:"position" validate:"omitempty,min=0"`
}

type UpdateTaskInput struct {
	Title                *string     `json:"title" validate:"omitnil,notblank,max=200"`
	Description          *string     `json:"description" validate:"omitempty,max=5000"`
	Status               *TaskStatus `json:"status" validate:"omitempty,oneof=todo in_progress review done blocked"`
	Priority             *Priority   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate              *time.Time  `json:"due_date"`
	ClearDueDate         bool        `json:"clear_due_date"`
	Tags                 *[]string   `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	EstimatedHours       *float64    `json:"estimated_hours" validate:"omitempty,finite,min=0,max=1000"`
	CompletionPercentage *int        `json:"completion_percentage" validate:"omitempty,min=0,max=100"`
	// ParentTaskID set to "" detaches the task from its parent.
	ParentTaskID *string `json:"parent_task_id" validate:"omitempty,len=0|uuid"`
}

type CommentInput struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

type AttachmentInput struct {
	FileName string `json:"file_name" validate:"required,min=1,max=255"`
	URL      string `json:"url" validate:"required,url,max=2048"`
	Size     int64  `json:"size" validate:"min=0,max=104857600"`
	MimeType string `json:"mime_type" validate:"required,max=100"`
}

type TimeEntryInput struct {
	Hours       float64   `json:"hours" validate:"finite,gt=0,max=24"`
	Description string    `json:"description" validate:"max=500"`
	Date        time.Time `json:"date" validate:"required"`
}

type CreateUserInput struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Name      string `json:"name" validate:"required,notblank,max=100"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

type UpdateUserInput struct {
	Name      *string `json:"name" validate:"omitnil,notblank,max=100"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}
