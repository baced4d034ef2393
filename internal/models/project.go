package models

import (
	"math/rand"
	"time"
)

// Role is a project member's role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ValidRoles enumerates the supported project roles.
var ValidRoles = map[Role]struct{}{
	RoleOwner:  {},
	RoleAdmin:  {},
	RoleMember: {},
	RoleViewer: {},
}

// Permissions holds the capability flags of a project member.
type Permissions struct {
	CanCreateBoards   bool `json:"can_create_boards"`
	CanEditProject    bool `json:"can_edit_project"`
	CanManageMembers  bool `json:"can_manage_members"`
	CanDeleteProject  bool `json:"can_delete_project"`
	CanArchiveProject bool `json:"can_archive_project"`
}

// DefaultPermissionsForRole returns the permission set a role receives when
// none is given explicitly.
func DefaultPermissionsForRole(role Role) Permissions {
	switch role {
	case RoleOwner:
		return Permissions{
			CanCreateBoards:   true,
			CanEditProject:    true,
			CanManageMembers:  true,
			CanDeleteProject:  true,
			CanArchiveProject: true,
		}
	case RoleAdmin:
		return Permissions{
			CanCreateBoards:   true,
			CanEditProject:    true,
			CanManageMembers:  true,
			CanArchiveProject: true,
		}
	case RoleMember:
		return Permissions{CanCreateBoards: true}
	default:
		return Permissions{}
	}
}

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	ProjectID   string      `json:"project_id"`
	UserID      string      `json:"user_id"`
	Role        Role        `json:"role"`
	Permissions Permissions `json:"permissions"`
	JoinedAt    time.Time   `json:"joined_at"`
}

// ProjectSettings are project-wide defaults applied to new boards and tasks.
type ProjectSettings struct {
	DefaultBoardVisibility BoardVisibility `json:"default_board_visibility" validate:"omitempty,oneof=private project public"`
	DefaultTaskPriority    Priority        `json:"default_task_priority" validate:"omitempty,oneof=low medium high urgent"`
	AllowMemberInvites     bool            `json:"allow_member_invites"`
}

// DefaultProjectSettings returns the settings of a freshly created project.
func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		DefaultBoardVisibility: VisibilityProject,
		DefaultTaskPriority:    PriorityMedium,
		AllowMemberInvites:     false,
	}
}

// ProjectStatistics are denormalized counts; they may lag behind writes.
type ProjectStatistics struct {
	TotalBoards    int `json:"total_boards"`
	ActiveBoards   int `json:"active_boards"`
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`
	MemberCount    int `json:"member_count"`
}

// Project groups boards and the members allowed to work on them.
type Project struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Color       string            `json:"color"`
	OwnerID     string            `json:"owner_id"`
	Members     []ProjectMember   `json:"members"`
	Settings    ProjectSettings   `json:"settings"`
	Statistics  ProjectStatistics `json:"statistics"`
	IsArchived  bool              `json:"is_archived"`
	ArchivedAt  *time.Time        `json:"archived_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Member returns the membership record of userID.
func (p Project) Member(userID string) (ProjectMember, bool) {
	for _, m := range p.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return ProjectMember{}, false
}

// IsOwner reports whether userID owns the project.
func (p Project) IsOwner(userID string) bool {
	return userID != "" && p.OwnerID == userID
}

// ProjectFilters narrows a project listing.
type ProjectFilters struct {
	MemberID        string `json:"member_id" form:"member_id" validate:"omitempty,uuid"`
	Query           string `json:"query" form:"q" validate:"max=200"`
	IncludeArchived bool   `json:"include_archived" form:"include_archived"`
}

var projectPalette = []string{
	"#2563eb", // blue-600
	"#7c3aed", // violet-600
	"#dc2626", // red-600
	"#059669", // green-600
	"#ea580c", // orange-600
	"#d97706", // amber-600
	"#0ea5e9", // sky-500
}

// RandomProjectColor picks a palette color for projects created without one.
func RandomProjectColor() string {
	return projectPalette[rand.Intn(len(projectPalette))]
}
