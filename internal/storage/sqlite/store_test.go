package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workboard/internal/models"
	"workboard/internal/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "workboard.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fixture struct {
	user    models.User
	project models.Project
	board   models.Board
	column  models.Column
}

func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()
	repos := s.Repos()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	user, err := repos.Users.Create(ctx, models.User{ID: uuid.NewString(), Email: "Ada@example.com", Name: "Ada", IsActive: true, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	project, err := repos.Projects.Create(ctx, models.Project{
		ID: uuid.NewString(), Name: "Apollo", Color: "#2563eb", OwnerID: user.ID,
		Settings:  models.DefaultProjectSettings(),
		Members:   []models.ProjectMember{{UserID: user.ID, Role: models.RoleOwner, Permissions: models.DefaultPermissionsForRole(models.RoleOwner), JoinedAt: now}},
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	board, err := repos.Boards.Create(ctx, models.Board{
		ID: uuid.NewString(), ProjectID: project.ID, Name: "Launch", Position: 0,
		Visibility: models.VisibilityProject, Settings: models.DefaultBoardSettings(),
		CreatedBy: user.ID, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	limit := 3
	column, err := repos.Columns.Create(ctx, models.Column{
		ID: uuid.NewString(), BoardID: board.ID, Name: "Doing", Position: 0, WIPLimit: &limit,
		Settings: models.ColumnSettings{IsDoneColumn: true}, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	return fixture{user: user, project: project, board: board, column: column}
}

func newTask(f fixture, title string, position int) models.Task {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return models.Task{
		ID: uuid.NewString(), Title: title, Status: models.StatusTodo, Priority: models.PriorityMedium,
		ColumnID: f.column.ID, BoardID: f.board.ID, ProjectID: f.project.ID, ReporterID: f.user.ID,
		Position: position, CreatedAt: now, UpdatedAt: now,
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", nil)
	require.Error(t, err)
}

func TestProjectRoundTrip(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	got, err := s.Repos().Projects.FindByID(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", got.Name)
	assert.Equal(t, models.DefaultProjectSettings(), got.Settings)
	require.Len(t, got.Members, 1)
	assert.Equal(t, models.RoleOwner, got.Members[0].Role)
	assert.True(t, got.Members[0].Permissions.CanDeleteProject)

	exists, err := s.Repos().Projects.ExistsByName(ctx, "apollo", f.user.ID, "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Repos().Projects.ExistsByName(ctx, "apollo", f.user.ID, f.project.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Repos().Projects.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProjectFindAllFiltersByMember(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	page, err := s.Repos().Projects.FindAll(ctx, models.ProjectFilters{MemberID: f.user.ID}, models.Sort{}, models.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, models.DefaultLimit, page.Limit)

	page, err = s.Repos().Projects.FindAll(ctx, models.ProjectFilters{MemberID: uuid.NewString()}, models.Sort{}, models.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Items)
}

func TestArchiveAndRestore(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Repos().Boards.Archive(ctx, f.board.ID, at))
	archived, err := s.Repos().Boards.FindByID(ctx, f.board.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)
	require.NotNil(t, archived.ArchivedAt)
	assert.True(t, at.Equal(*archived.ArchivedAt))

	active, err := s.Repos().Boards.FindByParent(ctx, f.project.ID, models.BoardFilters{})
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.Repos().Boards.Restore(ctx, f.board.ID))
	restored, err := s.Repos().Boards.FindByID(ctx, f.board.ID)
	require.NoError(t, err)
	assert.Equal(t, f.board, restored)
}

func TestColumnWIPLimitAndSettings(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	got, err := s.Repos().Columns.FindByID(ctx, f.column.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WIPLimit)
	assert.Equal(t, 3, *got.WIPLimit)
	assert.True(t, got.Settings.IsDoneColumn)

	got.WIPLimit = nil
	updated, err := s.Repos().Columns.Update(ctx, got)
	require.NoError(t, err)
	assert.Nil(t, updated.WIPLimit)
}

func TestTaskAggregates(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	repos := s.Repos()

	task := newTask(f, "Write launch notes", 0)
	task.Tags = []string{"docs", "launch"}
	task.Assignees = []string{f.user.ID}
	created, err := repos.Tasks.Create(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "launch"}, created.Tags)
	assert.Equal(t, []string{f.user.ID}, created.Assignees)
	assert.Zero(t, created.ActualHours)

	now := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	for _, hours := range []float64{1.5, 2} {
		require.NoError(t, repos.Tasks.AddTimeEntry(ctx, models.TimeEntry{
			ID: uuid.NewString(), TaskID: task.ID, UserID: f.user.ID, Hours: hours, Date: now, CreatedAt: now,
		}))
	}
	require.NoError(t, repos.Tasks.AddComment(ctx, models.Comment{ID: uuid.NewString(), TaskID: task.ID, AuthorID: f.user.ID, Content: "draft ready", CreatedAt: now}))

	got, err := repos.Tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got.ActualHours, 1e-9)
	assert.Len(t, got.TimeEntries, 2)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "draft ready", got.Comments[0].Content)

	got.Tags = []string{"launch"}
	got.Assignees = nil
	got.UpdatedAt = now
	updated, err := repos.Tasks.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, []string{"launch"}, updated.Tags)
	assert.Empty(t, updated.Assignees)

	child := newTask(f, "Proofread", 1)
	child.ParentTaskID = &task.ID
	_, err = repos.Tasks.Create(ctx, child)
	require.NoError(t, err)
	child, err = repos.Tasks.FindByID(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentTaskID)

	child.ParentTaskID = nil
	child.UpdatedAt = now
	detached, err := repos.Tasks.Update(ctx, child)
	require.NoError(t, err)
	assert.Nil(t, detached.ParentTaskID)
}

func TestTaskFindAllFilters(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	repos := s.Repos()

	high := newTask(f, "Fix 100% CPU spike", 0)
	high.Priority = models.PriorityHigh
	high.Tags = []string{"ops"}
	_, err := repos.Tasks.Create(ctx, high)
	require.NoError(t, err)

	low := newTask(f, "Tidy README", 1)
	low.Priority = models.PriorityLow
	low.Status = models.StatusDone
	_, err = repos.Tasks.Create(ctx, low)
	require.NoError(t, err)

	tests := []struct {
		name    string
		filters models.TaskFilters
		want    []string
	}{
		{name: "all", filters: models.TaskFilters{BoardID: f.board.ID}, want: []string{high.ID, low.ID}},
		{name: "status", filters: models.TaskFilters{Statuses: []models.TaskStatus{models.StatusDone}}, want: []string{low.ID}},
		{name: "priority", filters: models.TaskFilters{Priorities: []models.Priority{models.PriorityHigh, models.PriorityUrgent}}, want: []string{high.ID}},
		{name: "tag", filters: models.TaskFilters{Tags: []string{"ops"}}, want: []string{high.ID}},
		{name: "literal percent", filters: models.TaskFilters{Query: "100%"}, want: []string{high.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repos.Tasks.FindAll(ctx, tt.filters, models.Sort{}, models.Pagination{})
			require.NoError(t, err)
			ids := make([]string, 0, len(page.Items))
			for _, task := range page.Items {
				ids = append(ids, task.ID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, len(tt.want), page.Total)
		})
	}

	page, err := repos.Tasks.FindAll(ctx, models.TaskFilters{}, models.Sort{Field: "priority", Order: models.SortDesc}, models.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, high.ID, page.Items[0].ID)
}

func TestShiftPositions(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	repos := s.Repos()

	for i := 0; i < 3; i++ {
		_, err := repos.Tasks.Create(ctx, newTask(f, fmt.Sprintf("task %d", i), i))
		require.NoError(t, err)
	}
	last, err := repos.Tasks.GetMaxPosition(ctx, f.column.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, last)

	require.NoError(t, repos.Tasks.ShiftPositions(ctx, f.column.ID, 1, 1))
	tasks, err := repos.Tasks.FindByParent(ctx, f.column.ID, false)
	require.NoError(t, err)
	positions := make([]int, 0, len(tasks))
	for _, task := range tasks {
		positions = append(positions, task.Position)
	}
	assert.Equal(t, []int{0, 2, 3}, positions)

	empty, err := repos.Boards.GetMaxPosition(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, -1, empty)
}

func TestWithinTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if _, err := tx.Tasks.Create(ctx, newTask(f, "doomed", 0)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.Repos().Tasks.CountByParent(ctx, f.column.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserFindByEmailIgnoresCase(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)

	got, err := s.Repos().Users.FindByEmail(context.Background(), "ada@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, got.ID)
}
