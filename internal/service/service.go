// Package service implements the domain services. Every method validates
// its input, checks that referenced entities exist, checks the principal's
// permission, guards the entity state and only then writes through the
// repositories, inside one transaction when more than one row changes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"workboard/internal/access"
	"workboard/internal/apperr"
	"workboard/internal/cache"
	"workboard/internal/models"
	"workboard/internal/position"
	"workboard/internal/repository"
)

// Options configures the services. Zero values select defaults.
type Options struct {
	Logger    *slog.Logger
	Cache     cache.Cache
	CacheTTL  time.Duration
	Now       func() time.Time
	Positions *position.Manager
}

// Services bundles the domain services sharing one store.
type Services struct {
	Projects *ProjectService
	Boards   *BoardService
	Columns  *ColumnService
	Tasks    *TaskService
	Users    *UserService
	Access   *access.Evaluator
}

// New wires the services on top of store.
func New(store repository.Store, opts Options) *Services {
	c := &core{
		store:     store,
		logger:    opts.Logger,
		cache:     opts.Cache,
		ttl:       opts.CacheTTL,
		clock:     opts.Now,
		positions: opts.Positions,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.cache == nil {
		c.cache = cache.NewMemory()
	}
	if c.ttl <= 0 {
		c.ttl = 5 * time.Minute
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.positions == nil {
		c.positions = position.NewManager()
	}

	return &Services{
		Projects: &ProjectService{core: c},
		Boards:   &BoardService{core: c},
		Columns:  &ColumnService{core: c},
		Tasks:    &TaskService{core: c},
		Users:    &UserService{core: c},
		Access:   access.NewEvaluator(c),
	}
}

// core holds the collaborators shared by every service. It carries no
// per-request state.
type core struct {
	store     repository.Store
	logger    *slog.Logger
	cache     cache.Cache
	ttl       time.Duration
	clock     func() time.Time
	positions *position.Manager

	// generation counts project invalidations. A fill that raced one is dropped.
	generation atomic.Uint64
}

func (c *core) now() time.Time {
	return c.clock().UTC()
}

// storageErr escalates an unexpected repository failure. Errors that are
// already classified pass through untouched.
func (c *core) storageErr(ctx context.Context, op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	c.logger.ErrorContext(ctx, "storage failure", slog.String("op", op), slog.String("error", err.Error()))
	return apperr.Storage(op, err)
}

// lookup maps ErrNotFound to a NotFound error for entity and escalates the rest.
func (c *core) lookup(ctx context.Context, err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return c.storageErr(ctx, "load "+entity, err)
}

// LookupProject reads a project through the cache. Only read paths use it;
// writes decide from projectIn inside their transaction.
func (c *core) LookupProject(ctx context.Context, id string) (models.Project, error) {
	key := cache.Key("project", id)
	var p models.Project
	hit, err := c.cache.Get(ctx, key, &p)
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if hit {
		return p, nil
	}

	gen := c.generation.Load()
	p, err = c.store.Repos().Projects.FindByID(ctx, id)
	if err != nil {
		return models.Project{}, c.lookup(ctx, err, "project", id)
	}
	if err := c.cache.Set(ctx, key, p, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	// An invalidation that ran after the read may have been overtaken by the
	// Set above; drop the entry so the stale copy is not served.
	if c.generation.Load() != gen {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return p, nil
}

// invalidateProject drops cached projects after a committed write.
func (c *core) invalidateProject(ctx context.Context, ids ...string) {
	c.generation.Add(1)
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.Key("project", id))
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// projectIn loads a project with its members from repos, bypassing the cache.
func (c *core) projectIn(ctx context.Context, repos repository.Repositories, id string) (models.Project, error) {
	p, err := repos.Projects.FindByID(ctx, id)
	if err != nil {
		return models.Project{}, c.lookup(ctx, err, "project", id)
	}
	return p, nil
}

// tx runs fn in one storage transaction. Domain errors returned by fn roll
// the transaction back and pass through; anything else becomes a StorageError.
func (c *core) tx(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Repositories) error) error {
	if err := c.store.WithinTx(ctx, fn); err != nil {
		return c.storageErr(ctx, op, err)
	}
	return nil
}

func (c *core) loadBoard(ctx context.Context, repos repository.Repositories, id string) (models.Board, error) {
	b, err := repos.Boards.FindByID(ctx, id)
	if err != nil {
		return models.Board{}, c.lookup(ctx, err, "board", id)
	}
	return b, nil
}

func (c *core) loadColumn(ctx context.Context, repos repository.Repositories, id string) (models.Column, error) {
	col, err := repos.Columns.FindByID(ctx, id)
	if err != nil {
		return models.Column{}, c.lookup(ctx, err, "column", id)
	}
	return col, nil
}

func (c *core) loadTask(ctx context.Context, repos repository.Repositories, id string) (models.Task, error) {
	t, err := repos.Tasks.FindByID(ctx, id)
	if err != nil {
		return models.Task{}, c.lookup(ctx, err, "task", id)
	}
	return t, nil
}

func (c *core) loadUser(ctx context.Context, repos repository.Repositories, id string) (models.User, error) {
	u, err := repos.Users.FindByID(ctx, id)
	if err != nil {
		return models.User{}, c.lookup(ctx, err, "user", id)
	}
	return u, nil
}

// boardScope loads a board with its project, the project through the cache.
func (c *core) boardScope(ctx context.Context, boardID string) (models.Board, models.Project, error) {
	b, err := c.loadBoard(ctx, c.store.Repos(), boardID)
	if err != nil {
		return models.Board{}, models.Project{}, err
	}
	p, err := c.LookupProject(ctx, b.ProjectID)
	if err != nil {
		return models.Board{}, models.Project{}, err
	}
	return b, p, nil
}

// columnScope loads a column with its board and project.
func (c *core) columnScope(ctx context.Context, columnID string) (models.Column, models.Board, models.Project, error) {
	col, err := c.loadColumn(ctx, c.store.Repos(), columnID)
	if err != nil {
		return models.Column{}, models.Board{}, models.Project{}, err
	}
	b, p, err := c.boardScope(ctx, col.BoardID)
	if err != nil {
		return models.Column{}, models.Board{}, models.Project{}, err
	}
	return col, b, p, nil
}

// boardScopeIn is boardScope reading everything from repos.
func (c *core) boardScopeIn(ctx context.Context, repos repository.Repositories, boardID string) (models.Board, models.Project, error) {
	b, err := c.loadBoard(ctx, repos, boardID)
	if err != nil {
		return models.Board{}, models.Project{}, err
	}
	p, err := c.projectIn(ctx, repos, b.ProjectID)
	if err != nil {
		return models.Board{}, models.Project{}, err
	}
	return b, p, nil
}

// columnScopeIn is columnScope reading everything from repos.
func (c *core) columnScopeIn(ctx context.Context, repos repository.Repositories, columnID string) (models.Column, models.Board, models.Project, error) {
	col, err := c.loadColumn(ctx, repos, columnID)
	if err != nil {
		return models.Column{}, models.Board{}, models.Project{}, err
	}
	b, p, err := c.boardScopeIn(ctx, repos, col.BoardID)
	if err != nil {
		return models.Column{}, models.Board{}, models.Project{}, err
	}
	return col, b, p, nil
}

// guardBoard runs the permission and archive guards for a write below b.
func guardBoard(p models.Project, b models.Board, principalID string, action access.Action) error {
	if err := access.RequireBoard(p, b, principalID, action); err != nil {
		return err
	}
	return writableBoard(p, b)
}

// writableBoard rejects writes below an archived board or project.
func writableBoard(p models.Project, b models.Board) error {
	if p.IsArchived {
		return apperr.Conflict(apperr.CodeParentArchived, "project %s is archived", p.ID)
	}
	if b.IsArchived {
		return apperr.Conflict(apperr.CodeParentArchived, "board %s is archived", b.ID)
	}
	return nil
}

func archivedConflict(entity, id string) error {
	return apperr.Conflict(apperr.CodeArchived, "%s %s is archived; restore it first", entity, id)
}

func notArchivedConflict(entity, id string) error {
	return apperr.Conflict(apperr.CodeNotArchived, "%s %s is not archived", entity, id)
}
