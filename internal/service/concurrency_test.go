package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workboard/internal/apperr"
	"workboard/internal/cache"
	"workboard/internal/models"
	"workboard/internal/repository"
)

// gate parks the first caller after arm until release is closed.
type gate struct {
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) arm() { g.armed.Store(true) }

func (g *gate) pass() {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
}

// hookedStore swaps the task repository of every Repositories it hands out.
type hookedStore struct {
	repository.Store
	tasks func(repository.TaskRepository) repository.TaskRepository
}

func (h hookedStore) hook(r repository.Repositories) repository.Repositories {
	r.Tasks = h.tasks(r.Tasks)
	return r
}

func (h hookedStore) Repos() repository.Repositories {
	return h.hook(h.Store.Repos())
}

func (h hookedStore) WithinTx(ctx context.Context, fn func(context.Context, repository.Repositories) error) error {
	return h.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		return fn(ctx, h.hook(tx))
	})
}

func withTasks(fn func(repository.TaskRepository) repository.TaskRepository) func(repository.Store) repository.Store {
	return func(s repository.Store) repository.Store {
		return hookedStore{Store: s, tasks: fn}
	}
}

// gatedTasks holds the write transaction open right after a task is archived.
type gatedTasks struct {
	repository.TaskRepository
	g *gate
}

func (r gatedTasks) Archive(ctx context.Context, id string, at time.Time) error {
	if err := r.TaskRepository.Archive(ctx, id, at); err != nil {
		return err
	}
	r.g.pass()
	return nil
}

// failingShift fails every shift under the column stored in parent.
type failingShift struct {
	repository.TaskRepository
	parent *atomic.Value
}

func (r failingShift) ShiftPositions(ctx context.Context, parentID string, from, delta int) error {
	if p, _ := r.parent.Load().(string); p == parentID {
		return errors.New("disk I/O error")
	}
	return r.TaskRepository.ShiftPositions(ctx, parentID, from, delta)
}

// gatedCache parks the first Set after arm.
type gatedCache struct {
	*cache.Memory
	g *gate
}

func (c gatedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.g.pass()
	return c.Memory.Set(ctx, key, value, ttl)
}

func TestOverlappingTaskArchive(t *testing.T) {
	g := newGate()
	e := newEnvWith(t, Options{}, withTasks(func(r repository.TaskRepository) repository.TaskRepository {
		return gatedTasks{TaskRepository: r, g: g}
	}))
	p := e.project(t, "Apollo")
	_, cols := e.board(t, p.ID, "Sprint")
	task := e.task(t, cols[0].ID, "Ship")

	g.arm()
	first := make(chan error, 1)
	go func() {
		_, err := e.svc.Tasks.Archive(e.ctx, e.owner.ID, task.ID)
		first <- err
	}()
	<-g.entered

	second := make(chan error, 1)
	go func() {
		_, err := e.svc.Tasks.Archive(e.ctx, e.owner.ID, task.ID)
		second <- err
	}()
	comment := make(chan error, 1)
	go func() {
		_, err := e.svc.Tasks.AddComment(e.ctx, e.owner.ID, task.ID, models.CommentInput{Content: "late"})
		comment <- err
	}()
	close(g.release)

	require.NoError(t, <-first)
	requireCode(t, <-second, apperr.CodeArchived)
	requireCode(t, <-comment, apperr.CodeArchived)

	got, err := e.svc.Tasks.GetByID(e.ctx, e.owner.ID, task.ID)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)
	assert.Empty(t, got.Comments)
}

func TestParallelArchiveSucceedsOnce(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	_, cols := e.board(t, p.ID, "Sprint")
	task := e.task(t, cols[0].ID, "Ship")

	const workers = 6
	var (
		wg   sync.WaitGroup
		errs = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Tasks.Archive(e.ctx, e.owner.ID, task.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.CodeArchived, apperr.CodeOf(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestParallelProjectArchiveSucceedsOnce(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")

	const workers = 4
	var (
		wg   sync.WaitGroup
		errs = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Projects.Archive(e.ctx, e.owner.ID, p.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.CodeArchived, apperr.CodeOf(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestParallelAddMemberReportsDuplicate(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")
	dev := e.user(t, "dev@example.com")

	const workers = 4
	var (
		wg   sync.WaitGroup
		errs = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Projects.AddMember(e.ctx, e.owner.ID, p.ID, models.AddMemberInput{UserID: dev.ID, Role: models.RoleMember})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.CodeDuplicateMembership, apperr.CodeOf(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestRemovedMemberLosesAccessAfterRacingRead(t *testing.T) {
	g := newGate()
	e := newEnvWith(t, Options{Cache: gatedCache{Memory: cache.NewMemory(), g: g}}, nil)
	p := e.project(t, "Apollo")
	dev := e.user(t, "dev@example.com")
	e.addMember(t, p.ID, dev, models.RoleAdmin)

	g.arm()
	read := make(chan error, 1)
	go func() {
		_, err := e.svc.Projects.GetByID(e.ctx, dev.ID, p.ID)
		read <- err
	}()
	<-g.entered

	_, err := e.svc.Projects.RemoveMember(e.ctx, e.owner.ID, p.ID, dev.ID)
	require.NoError(t, err)
	close(g.release)
	require.NoError(t, <-read, "the read started while dev was still a member")

	_, err = e.svc.Projects.GetByID(e.ctx, dev.ID, p.ID)
	assert.True(t, apperr.IsNotFound(err), "stale membership served: %v", err)
	_, err = e.svc.Boards.Create(e.ctx, dev.ID, models.CreateBoardInput{ProjectID: p.ID, Name: "Mine"})
	assert.True(t, apperr.IsNotFound(err), "stale membership admitted a write: %v", err)
}

func TestWritesIgnoreStaleCachedProject(t *testing.T) {
	mem := cache.NewMemory()
	e := newEnvWith(t, Options{Cache: mem}, nil)
	p := e.project(t, "Apollo")
	stale, err := e.svc.Projects.GetByID(e.ctx, e.owner.ID, p.ID)
	require.NoError(t, err)

	_, err = e.svc.Projects.Archive(e.ctx, e.owner.ID, p.ID)
	require.NoError(t, err)
	require.NoError(t, mem.Set(e.ctx, cache.Key("project", p.ID), stale, 0))

	_, err = e.svc.Boards.Create(e.ctx, e.owner.ID, models.CreateBoardInput{ProjectID: p.ID, Name: "Late"})
	requireCode(t, err, apperr.CodeParentArchived)
	_, err = e.svc.Projects.Archive(e.ctx, e.owner.ID, p.ID)
	requireCode(t, err, apperr.CodeArchived)
}

func TestMoveRollsBackOnStorageFailure(t *testing.T) {
	var fail atomic.Value
	fail.Store("")
	e := newEnvWith(t, Options{}, withTasks(func(r repository.TaskRepository) repository.TaskRepository {
		return failingShift{TaskRepository: r, parent: &fail}
	}))
	p := e.project(t, "Apollo")
	_, cols := e.board(t, p.ID, "Sprint")
	todo, doing := cols[0].ID, cols[1].ID
	for _, title := range []string{"A", "B", "C"} {
		e.task(t, todo, title)
	}
	for _, title := range []string{"X", "Y"} {
		e.task(t, doing, title)
	}
	tasks, err := e.svc.Tasks.GetByParentID(e.ctx, e.owner.ID, todo, false)
	require.NoError(t, err)
	moving := tasks[1]

	fail.Store(doing)
	_, err = e.svc.Tasks.UpdatePosition(e.ctx, e.owner.ID, moving.ID, models.MoveInput{ParentID: doing, Position: 0})
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err), "unexpected error: %v", err)

	fail.Store("")
	assert.Equal(t, []string{"A", "B", "C"}, e.columnTitles(t, todo))
	assert.Equal(t, []string{"X", "Y"}, e.columnTitles(t, doing))
	got, err := e.svc.Tasks.GetByID(e.ctx, e.owner.ID, moving.ID)
	require.NoError(t, err)
	assert.Equal(t, todo, got.ColumnID)
	assert.Equal(t, 1, got.Position)
}

func TestUserDeleteRefusedWhileOwningProjects(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "Apollo")

	requireCode(t, e.svc.Users.Delete(e.ctx, e.owner.ID, e.owner.ID), apperr.CodeOwnsProjects)
	_, err := e.svc.Projects.GetByID(e.ctx, e.owner.ID, p.ID)
	require.NoError(t, err)

	require.NoError(t, e.svc.Projects.Delete(e.ctx, e.owner.ID, p.ID))
	require.NoError(t, e.svc.Users.Delete(e.ctx, e.owner.ID, e.owner.ID))
}
