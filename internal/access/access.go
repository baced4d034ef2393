// Package access decides whether a principal may perform an action on a
// project and the boards, columns and tasks it contains.
package access

import (
	"context"

	"workboard/internal/apperr"
	"workboard/internal/models"
)

// Action is a capability checked against a project membership.
type Action string

const (
	ActionView           Action = "view"
	ActionCreateBoards   Action = "create_boards"
	ActionEditProject    Action = "edit_project"
	ActionManageMembers  Action = "manage_members"
	ActionDeleteProject  Action = "delete_project"
	ActionArchiveProject Action = "archive_project"
	// ActionEditTasks covers task writes; granted to every role except viewer.
	ActionEditTasks Action = "edit_tasks"
)

var actions = map[Action]struct{}{
	ActionView:           {},
	ActionCreateBoards:   {},
	ActionEditProject:    {},
	ActionManageMembers:  {},
	ActionDeleteProject:  {},
	ActionArchiveProject: {},
	ActionEditTasks:      {},
}

// ParseAction maps a wire name such as "manage_members" to its Action.
func ParseAction(name string) (Action, bool) {
	a := Action(name)
	_, ok := actions[a]
	return a, ok
}

// ProjectLookup loads a project with its members. It returns an apperr
// NotFound error when the project does not exist.
type ProjectLookup interface {
	LookupProject(ctx context.Context, id string) (models.Project, error)
}

// Evaluator answers access questions for projects loaded through a lookup.
type Evaluator struct {
	projects ProjectLookup
}

func NewEvaluator(projects ProjectLookup) *Evaluator {
	return &Evaluator{projects: projects}
}

// CanAccess reports whether principalID may perform action on projectID.
// A missing project yields false with no error; storage failures are returned.
func (e *Evaluator) CanAccess(ctx context.Context, principalID, projectID string, action Action) (bool, error) {
	p, err := e.projects.LookupProject(ctx, projectID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return Allowed(p, principalID, action), nil
}

// Allowed applies the role table to a loaded project. The owner may do
// everything; other principals need a membership and, for writes, the flag
// matching the action.
func Allowed(p models.Project, principalID string, action Action) bool {
	if p.IsOwner(principalID) {
		return true
	}
	m, ok := p.Member(principalID)
	if !ok {
		return false
	}
	if m.Role == models.RoleOwner {
		return true
	}

	switch action {
	case ActionView:
		return true
	case ActionCreateBoards:
		return m.Permissions.CanCreateBoards
	case ActionEditProject:
		return m.Permissions.CanEditProject
	case ActionManageMembers:
		return m.Permissions.CanManageMembers
	case ActionDeleteProject:
		return m.Permissions.CanDeleteProject
	case ActionArchiveProject:
		return m.Permissions.CanArchiveProject
	case ActionEditTasks:
		return m.Role != models.RoleViewer
	}
	return false
}

// Require returns nil when the action is allowed. A principal outside the
// project gets NotFound so the project's existence is not revealed; a member
// lacking the flag gets PermissionDenied.
func Require(p models.Project, principalID string, action Action) error {
	if Allowed(p, principalID, action) {
		return nil
	}
	if !IsMember(p, principalID) {
		return apperr.NotFound("project", p.ID)
	}
	return apperr.PermissionDenied(string(action))
}

// RequireBoard is Require for board-scoped actions. Public boards are
// viewable by any authenticated principal.
func RequireBoard(p models.Project, b models.Board, principalID string, action Action) error {
	if action == ActionView && b.Visibility == models.VisibilityPublic && principalID != "" {
		return nil
	}
	if err := Require(p, principalID, action); err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NotFound("board", b.ID)
		}
		return err
	}
	return nil
}

// IsMember reports whether principalID owns or belongs to p.
func IsMember(p models.Project, principalID string) bool {
	if p.IsOwner(principalID) {
		return true
	}
	_, ok := p.Member(principalID)
	return ok
}
