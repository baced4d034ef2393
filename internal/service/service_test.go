package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workboard/internal/apperr"
	"workboard/internal/models"
	"workboard/internal/repository"
	"workboard/internal/storage/sqlite"
)

type env struct {
	ctx   context.Context
	svc   *Services
	owner models.User
}

func newEnv(t *testing.T) env {
	return newEnvWith(t, Options{}, nil)
}

// newEnvWith opens a fresh store, optionally wrapped, and builds the
// services with opts.
func newEnvWith(t *testing.T, opts Options, wrap func(repository.Store) repository.Store) env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "workboard.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var s repository.Store = store
	if wrap != nil {
		s = wrap(store)
	}
	opts.Logger = logger
	e := env{ctx: context.Background(), svc: New(s, opts)}
	e.owner = e.user(t, "owner@example.com")
	return e
}

func (e env) user(t *testing.T, email string) models.User {
	t.Helper()
	u, err := e.svc.Users.Create(e.ctx, models.CreateUserInput{Email: email, Name: email})
	require.NoError(t, err)
	return u
}

func (e env) project(t *testing.T, name string) models.Project {
	t.Helper()
	p, err := e.svc.Projects.Create(e.ctx, e.owner.ID, models.CreateProjectInput{Name: name})
	require.NoError(t, err)
	return p
}

// board creates a board with the default To Do, In Progress and Done columns.
func (e env) board(t *testing.T, projectID, name string) (models.Board, []models.Column) {
	t.Helper()
	b, err := e.svc.Boards.Create(e.ctx, e.owner.ID, models.CreateBoardInput{ProjectID: projectID, Name: name, WithDefaultColumns: true})
	require.NoError(t, err)
	cols, err := e.svc.Columns.GetByParentID(e.ctx, e.owner.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	return b, cols
}

func (e env) task(t *testing.T, columnID, title string) models.Task {
	t.Helper()
	task, err := e.svc.Tasks.Create(e.ctx, e.owner.ID, models.CreateTaskInput{ColumnID: columnID, Title: title})
	require.NoError(t, err)
	return task
}

func (e env) addMember(t *testing.T, projectID string, u models.User, role models.Role) {
	t.Helper()
	_, err := e.svc.Projects.AddMember(e.ctx, e.owner.ID, projectID, models.AddMemberInput{UserID: u.ID, Role: role})
	require.NoError(t, err)
}

func requireCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperr.CodeOf(err), "unexpected error: %v", err)
}

func TestProjectCreateAddsOwnerMember(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")

	assert.Equal(t, e.owner.ID, p.OwnerID)
	require.Len(t, p.Members, 1)
	assert.Equal(t, models.RoleOwner, p.Members[0].Role)
	assert.True(t, p.Members[0].Permissions.CanDeleteProject)
	assert.NotEmpty(t, p.Color)

	_, err := e.svc.Projects.Create(e.ctx, e.owner.ID, models.CreateProjectInput{Name: "apollo"})
	requireCode(t, err, apperr.CodeDuplicateName)
}

func TestProjectCreateRejectsInvalidInput(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Projects.Create(e.ctx, e.owner.ID, models.CreateProjectInput{Name: "   "})
	require.True(t, apperr.IsValidation(err), "got %v", err)
}

func TestMembershipRules(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	viewer := e.user(t, "viewer@example.com")
	stranger := e.user(t, "stranger@example.com")

	_, err := e.svc.Projects.GetByID(e.ctx, stranger.ID, p.ID)
	require.True(t, apperr.IsNotFound(err), "non-members must not see the project: %v", err)

	e.addMember(t, p.ID, viewer, models.RoleViewer)

	_, err = e.svc.Projects.AddMember(e.ctx, e.owner.ID, p.ID, models.AddMemberInput{UserID: viewer.ID, Role: models.RoleMember})
	requireCode(t, err, apperr.CodeDuplicateMembership)

	_, err = e.svc.Projects.RemoveMember(e.ctx, e.owner.ID, p.ID, e.owner.ID)
	requireCode(t, err, apperr.CodeOwnerImmutable)

	_, err = e.svc.Projects.UpdateMemberRole(e.ctx, e.owner.ID, p.ID, e.owner.ID, models.UpdateMemberRoleInput{Role: models.RoleViewer})
	requireCode(t, err, apperr.CodeOwnerImmutable)

	_, err = e.svc.Projects.AddMember(e.ctx, viewer.ID, p.ID, models.AddMemberInput{UserID: stranger.ID, Role: models.RoleViewer})
	require.True(t, apperr.IsPermissionDenied(err), "got %v", err)

	// Membership changes must be visible right away despite the project cache.
	e.addMember(t, p.ID, stranger, models.RoleMember)
	got, err := e.svc.Projects.GetByID(e.ctx, stranger.ID, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 3)

	updated, err := e.svc.Projects.UpdateMemberRole(e.ctx, e.owner.ID, p.ID, stranger.ID, models.UpdateMemberRoleInput{Role: models.RoleAdmin})
	require.NoError(t, err)
	m, ok := updated.Member(stranger.ID)
	require.True(t, ok)
	assert.Equal(t, models.RoleAdmin, m.Role)
	assert.Equal(t, models.DefaultPermissionsForRole(models.RoleMember), m.Permissions, "flags are kept without a reset")

	_, err = e.svc.Projects.RemoveMember(e.ctx, e.owner.ID, p.ID, stranger.ID)
	require.NoError(t, err)
	_, err = e.svc.Projects.GetByID(e.ctx, stranger.ID, p.ID)
	require.True(t, apperr.IsNotFound(err))
}

func TestViewerCanReadButNotCreateBoards(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	b, _ := e.board(t, p.ID, "Launch")
	viewer := e.user(t, "viewer@example.com")
	e.addMember(t, p.ID, viewer, models.RoleViewer)

	_, err := e.svc.Boards.Create(e.ctx, viewer.ID, models.CreateBoardInput{ProjectID: p.ID, Name: "Mine"})
	require.True(t, apperr.IsPermissionDenied(err), "got %v", err)

	got, err := e.svc.Boards.GetByID(e.ctx, viewer.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	stranger := e.user(t, "stranger@example.com")
	_, err = e.svc.Boards.GetByID(e.ctx, stranger.ID, b.ID)
	require.True(t, apperr.IsNotFound(err), "got %v", err)

	public := models.VisibilityPublic
	_, err = e.svc.Boards.Update(e.ctx, e.owner.ID, b.ID, models.UpdateBoardInput{Visibility: &public})
	require.NoError(t, err)
	_, err = e.svc.Boards.GetByID(e.ctx, stranger.ID, b.ID)
	require.NoError(t, err, "public boards are readable by any principal")
}

func TestBoardPositionsStayDense(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	a, _ := e.board(t, p.ID, "A")
	b, _ := e.board(t, p.ID, "B")
	first := 0
	c, err := e.svc.Boards.Create(e.ctx, e.owner.ID, models.CreateBoardInput{ProjectID: p.ID, Name: "C", Position: &first})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Position)

	names := func() []string {
		boards, err := e.svc.Boards.GetByParentID(e.ctx, e.owner.ID, p.ID, models.BoardFilters{})
		require.NoError(t, err)
		out := make([]string, 0, len(boards))
		for i, bd := range boards {
			assert.Equal(t, i, bd.Position)
			out = append(out, bd.Name)
		}
		return out
	}
	assert.Equal(t, []string{"C", "A", "B"}, names())

	_, err = e.svc.Boards.UpdatePosition(e.ctx, e.owner.ID, c.ID, models.MoveInput{Position: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names())

	_, err = e.svc.Boards.UpdatePosition(e.ctx, e.owner.ID, a.ID, models.MoveInput{Position: 3})
	require.True(t, apperr.IsValidation(err), "got %v", err)

	require.NoError(t, e.svc.Boards.Delete(e.ctx, e.owner.ID, b.ID))
	assert.Equal(t, []string{"A", "C"}, names())
}

func TestBoardDuplicateCopiesColumns(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	b, cols := e.board(t, p.ID, "Launch")

	dup, err := e.svc.Boards.Duplicate(e.ctx, e.owner.ID, b.ID, models.DuplicateBoardInput{})
	require.NoError(t, err)
	assert.Equal(t, "Launch (copy)", dup.Name)
	assert.Equal(t, 1, dup.Position)

	copied, err := e.svc.Columns.GetByParentID(e.ctx, e.owner.ID, dup.ID)
	require.NoError(t, err)
	require.Len(t, copied, len(cols))
	for i := range cols {
		assert.Equal(t, cols[i].Name, copied[i].Name)
		assert.Equal(t, cols[i].Settings, copied[i].Settings)
		assert.NotEqual(t, cols[i].ID, copied[i].ID)
	}
}

func TestDeleteGuards(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	b, cols := e.board(t, p.ID, "Launch")
	task := e.task(t, cols[0].ID, "Write docs")

	requireCode(t, e.svc.Projects.Delete(e.ctx, e.owner.ID, p.ID), apperr.CodeHasDescendants)
	requireCode(t, e.svc.Boards.Delete(e.ctx, e.owner.ID, b.ID), apperr.CodeHasDescendants)
	requireCode(t, e.svc.Columns.Delete(e.ctx, e.owner.ID, cols[0].ID), apperr.CodeHasDescendants)

	// An empty column can go; the remaining columns close the gap.
	require.NoError(t, e.svc.Columns.Delete(e.ctx, e.owner.ID, cols[1].ID))
	remaining, err := e.svc.Columns.GetByParentID(e.ctx, e.owner.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, cols[2].ID, remaining[1].ID)
	assert.Equal(t, 1, remaining[1].Position)

	require.NoError(t, e.svc.Tasks.Delete(e.ctx, e.owner.ID, task.ID))
	require.NoError(t, e.svc.Boards.Delete(e.ctx, e.owner.ID, b.ID))
	require.NoError(t, e.svc.Projects.Delete(e.ctx, e.owner.ID, p.ID))

	_, err = e.svc.Projects.GetByID(e.ctx, e.owner.ID, p.ID)
	require.True(t, apperr.IsNotFound(err))
}

func TestArchiveAndRestore(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	b, cols := e.board(t, p.ID, "Launch")

	archived, err := e.svc.Boards.Archive(e.ctx, e.owner.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)
	require.NotNil(t, archived.ArchivedAt)
	assert.Equal(t, b.Position, archived.Position)

	name := "Renamed"
	_, err = e.svc.Boards.Update(e.ctx, e.owner.ID, b.ID, models.UpdateBoardInput{Name: &name})
	requireCode(t, err, apperr.CodeArchived)
	_, err = e.svc.Columns.Create(e.ctx, e.owner.ID, models.CreateColumnInput{BoardID: b.ID, Name: "Later"})
	requireCode(t, err, apperr.CodeParentArchived)
	_, err = e.svc.Tasks.Create(e.ctx, e.owner.ID, models.CreateTaskInput{ColumnID: cols[0].ID, Title: "Nope"})
	requireCode(t, err, apperr.CodeParentArchived)
	_, err = e.svc.Boards.Archive(e.ctx, e.owner.ID, b.ID)
	requireCode(t, err, apperr.CodeArchived)

	restored, err := e.svc.Boards.Restore(e.ctx, e.owner.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)
	assert.Nil(t, restored.ArchivedAt)
	assert.Equal(t, b.Name, restored.Name)
	assert.Equal(t, b.Position, restored.Position)
	assert.Equal(t, b.Settings, restored.Settings)

	_, err = e.svc.Boards.Restore(e.ctx, e.owner.ID, b.ID)
	requireCode(t, err, apperr.CodeNotArchived)

	_, err = e.svc.Projects.Archive(e.ctx, e.owner.ID, p.ID)
	require.NoError(t, err)
	_, err = e.svc.Boards.Create(e.ctx, e.owner.ID, models.CreateBoardInput{ProjectID: p.ID, Name: "Other"})
	requireCode(t, err, apperr.CodeParentArchived)
	_, err = e.svc.Projects.Restore(e.ctx, e.owner.ID, p.ID)
	require.NoError(t, err)
}

func TestColumnWIPLimitUpdate(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	_, cols := e.board(t, p.ID, "Launch")
	e.task(t, cols[0].ID, "One")
	e.task(t, cols[0].ID, "Two")

	limit := 1
	_, err := e.svc.Columns.Update(e.ctx, e.owner.ID, cols[0].ID, models.UpdateColumnInput{WIPLimit: &limit})
	requireCode(t, err, apperr.CodeWIPLimitReached)

	limit = 2
	col, err := e.svc.Columns.Update(e.ctx, e.owner.ID, cols[0].ID, models.UpdateColumnInput{WIPLimit: &limit})
	require.NoError(t, err)
	require.NotNil(t, col.WIPLimit)
	assert.Equal(t, 2, *col.WIPLimit)

	_, err = e.svc.Tasks.Create(e.ctx, e.owner.ID, models.CreateTaskInput{ColumnID: cols[0].ID, Title: "Three"})
	requireCode(t, err, apperr.CodeWIPLimitReached)

	col, err = e.svc.Columns.Update(e.ctx, e.owner.ID, cols[0].ID, models.UpdateColumnInput{ClearWIPLimit: true})
	require.NoError(t, err)
	assert.Nil(t, col.WIPLimit)
	e.task(t, cols[0].ID, "Three")

	name := "in progress"
	_, err = e.svc.Columns.Update(e.ctx, e.owner.ID, cols[0].ID, models.UpdateColumnInput{Name: &name})
	requireCode(t, err, apperr.CodeDuplicateName)
}

func TestUserAccounts(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Users.Create(e.ctx, models.CreateUserInput{Email: "OWNER@example.com ", Name: "Again"})
	requireCode(t, err, apperr.CodeDuplicateEmail)

	got, err := e.svc.Users.GetByEmail(e.ctx, "Owner@Example.com")
	require.NoError(t, err)
	assert.Equal(t, e.owner.ID, got.ID)

	other := e.user(t, "other@example.com")
	name := "Mallory"
	_, err = e.svc.Users.Update(e.ctx, other.ID, e.owner.ID, models.UpdateUserInput{Name: &name})
	require.True(t, apperr.IsPermissionDenied(err), "got %v", err)

	updated, err := e.svc.Users.Update(e.ctx, other.ID, other.ID, models.UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Mallory", updated.Name)

	p := e.project(t, "Apollo")
	e.addMember(t, p.ID, other, models.RoleMember)
	requireCode(t, e.svc.Users.Delete(e.ctx, e.owner.ID, e.owner.ID), apperr.CodeOwnsProjects)

	require.NoError(t, e.svc.Users.Delete(e.ctx, other.ID, other.ID))
	project, err := e.svc.Projects.GetByID(e.ctx, e.owner.ID, p.ID)
	require.NoError(t, err)
	assert.Len(t, project.Members, 1, "memberships are removed with the user")
}
