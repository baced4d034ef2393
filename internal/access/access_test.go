package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workboard/internal/apperr"
	"workboard/internal/models"
)

const (
	ownerID    = "11111111-1111-4111-8111-111111111111"
	adminID    = "22222222-2222-4222-8222-222222222222"
	memberID   = "33333333-3333-4333-8333-333333333333"
	viewerID   = "44444444-4444-4444-8444-444444444444"
	strangerID = "55555555-5555-4555-8555-555555555555"
	projectID  = "66666666-6666-4666-8666-666666666666"
)

func member(userID string, role models.Role) models.ProjectMember {
	return models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role, Permissions: models.DefaultPermissionsForRole(role)}
}

func testProject() models.Project {
	return models.Project{
		ID:      projectID,
		OwnerID: ownerID,
		Members: []models.ProjectMember{
			member(ownerID, models.RoleOwner),
			member(adminID, models.RoleAdmin),
			member(memberID, models.RoleMember),
			member(viewerID, models.RoleViewer),
		},
	}
}

func TestAllowedRoleTable(t *testing.T) {
	p := testProject()
	actions := []Action{ActionCreateBoards, ActionEditProject, ActionManageMembers, ActionDeleteProject, ActionArchiveProject}

	tests := []struct {
		principal string
		want      []bool
	}{
		{ownerID, []bool{true, true, true, true, true}},
		{adminID, []bool{true, true, true, false, true}},
		{memberID, []bool{true, false, false, false, false}},
		{viewerID, []bool{false, false, false, false, false}},
		{strangerID, []bool{false, false, false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.principal, func(t *testing.T) {
			for i, action := range actions {
				assert.Equal(t, tt.want[i], Allowed(p, tt.principal, action), action)
			}
		})
	}
}

func TestViewAndTaskEdits(t *testing.T) {
	p := testProject()

	for _, id := range []string{ownerID, adminID, memberID, viewerID} {
		assert.True(t, Allowed(p, id, ActionView), id)
	}
	assert.False(t, Allowed(p, strangerID, ActionView))

	assert.True(t, Allowed(p, memberID, ActionEditTasks))
	assert.False(t, Allowed(p, viewerID, ActionEditTasks))
}

func TestOwnerAllowedWithoutMembershipRecord(t *testing.T) {
	p := models.Project{ID: projectID, OwnerID: ownerID}
	assert.True(t, Allowed(p, ownerID, ActionDeleteProject))
}

func TestRequireHidesProjectFromStrangers(t *testing.T) {
	p := testProject()

	err := Require(p, strangerID, ActionView)
	assert.True(t, apperr.IsNotFound(err))

	err = Require(p, viewerID, ActionCreateBoards)
	assert.True(t, apperr.IsPermissionDenied(err))

	assert.NoError(t, Require(p, viewerID, ActionView))
}

func TestRequireBoardPublicVisibility(t *testing.T) {
	p := testProject()
	public := models.Board{ID: "b", ProjectID: projectID, Visibility: models.VisibilityPublic}
	private := models.Board{ID: "b", ProjectID: projectID, Visibility: models.VisibilityPrivate}

	assert.NoError(t, RequireBoard(p, public, strangerID, ActionView))
	assert.True(t, apperr.IsNotFound(RequireBoard(p, private, strangerID, ActionView)))
	assert.True(t, apperr.IsNotFound(RequireBoard(p, public, strangerID, ActionCreateBoards)))
	assert.True(t, apperr.IsNotFound(RequireBoard(p, public, "", ActionView)))
}

type lookupFunc func(ctx context.Context, id string) (models.Project, error)

func (f lookupFunc) LookupProject(ctx context.Context, id string) (models.Project, error) {
	return f(ctx, id)
}

func TestCanAccess(t *testing.T) {
	boom := errors.New("disk on fire")
	e := NewEvaluator(lookupFunc(func(_ context.Context, id string) (models.Project, error) {
		switch id {
		case projectID:
			return testProject(), nil
		case "broken":
			return models.Project{}, apperr.Storage("load project", boom)
		}
		return models.Project{}, apperr.NotFound("project", id)
	}))
	ctx := context.Background()

	ok, err := e.CanAccess(ctx, adminID, projectID, ActionManageMembers)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.CanAccess(ctx, adminID, "missing", ActionView)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.CanAccess(ctx, adminID, "broken", ActionView)
	assert.ErrorIs(t, err, boom)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("manage_members")
	assert.True(t, ok)
	assert.Equal(t, ActionManageMembers, a)

	_, ok = ParseAction("launch_rockets")
	assert.False(t, ok)
	_, ok = ParseAction("")
	assert.False(t, ok)
}
