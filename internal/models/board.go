package models

import "time"

// BoardVisibility controls who may view a board.
type BoardVisibility string

const (
	// VisibilityPrivate limits the board to project members.
	VisibilityPrivate BoardVisibility = "private"
	// VisibilityProject shows the board to every project member.
	VisibilityProject BoardVisibility = "project"
	// VisibilityPublic lets any authenticated principal view the board.
	VisibilityPublic BoardVisibility = "public"
)

// BoardSettings toggle board-level features.
type BoardSettings struct {
	AllowComments      bool `json:"allow_comments"`
	AllowAttachments   bool `json:"allow_attachments"`
	ShowCompletedTasks bool `json:"show_completed_tasks"`
}

// DefaultBoardSettings returns the settings of a freshly created board.
func DefaultBoardSettings() BoardSettings {
	return BoardSettings{
		AllowComments:      true,
		AllowAttachments:   true,
		ShowCompletedTasks: true,
	}
}

// Board is an ordered set of columns inside a project.
type Board struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Position    int             `json:"position"`
	Visibility  BoardVisibility `json:"visibility"`
	Settings    BoardSettings   `json:"settings"`
	CreatedBy   string          `json:"created_by"`
	IsArchived  bool            `json:"is_archived"`
	ArchivedAt  *time.Time      `json:"archived_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BoardFilters narrows a board listing.
type BoardFilters struct {
	ProjectID       string          `json:"project_id" form:"project_id" validate:"omitempty,uuid"`
	Visibility      BoardVisibility `json:"visibility" form:"visibility" validate:"omitempty,oneof=private project public"`
	Query           string          `json:"query" form:"q" validate:"max=200"`
	IncludeArchived bool            `json:"include_archived" form:"include_archived"`
}
