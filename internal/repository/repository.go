// Package repository declares the persistence boundary of the domain
// services. Implementations are atomic per call but not transactional across
// calls; multi-step mutations go through Store.WithinTx.
package repository

import (
	"context"
	"errors"
	"time"

	"workboard/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Siblings is implemented by every repository whose entities keep a dense
// position inside a parent.
type Siblings interface {
	// GetMaxPosition returns the highest position under parentID, or -1 when empty.
	GetMaxPosition(ctx context.Context, parentID string) (int, error)
	// CountByParent returns the number of entities under parentID.
	CountByParent(ctx context.Context, parentID string) (int, error)
	// ShiftPositions adds delta to every position >= from under parentID.
	ShiftPositions(ctx context.Context, parentID string, from, delta int) error
	// UpdatePosition stores a new parent and position for id.
	UpdatePosition(ctx context.Context, id, parentID string, position int) error
}

type ProjectRepository interface {
	FindByID(ctx context.Context, id string) (models.Project, error)
	FindAll(ctx context.Context, filters models.ProjectFilters, sort models.Sort, page models.Pagination) (models.Page[models.Project], error)
	FindByOwner(ctx context.Context, ownerID string) ([]models.Project, error)
	Create(ctx context.Context, project models.Project) (models.Project, error)
	Update(ctx context.Context, project models.Project) (models.Project, error)
	Delete(ctx context.Context, id string) error
	Archive(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
	ExistsByName(ctx context.Context, name, ownerID, excludeID string) (bool, error)
	GetStatistics(ctx context.Context, id string, now time.Time) (models.ProjectStatistics, error)

	GetMembers(ctx context.Context, projectID string) ([]models.ProjectMember, error)
	GetMember(ctx context.Context, projectID, userID string) (models.ProjectMember, error)
	AddMember(ctx context.Context, member models.ProjectMember) error
	UpdateMember(ctx context.Context, member models.ProjectMember) error
	RemoveMember(ctx context.Context, projectID, userID string) error
}

type BoardRepository interface {
	Siblings

	FindByID(ctx context.Context, id string) (models.Board, error)
	FindByParent(ctx context.Context, projectID string, filters models.BoardFilters) ([]models.Board, error)
	FindAll(ctx context.Context, filters models.BoardFilters, sort models.Sort, page models.Pagination) (models.Page[models.Board], error)
	Create(ctx context.Context, board models.Board) (models.Board, error)
	Update(ctx context.Context, board models.Board) (models.Board, error)
	Delete(ctx context.Context, id string) error
	Archive(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
	ExistsByName(ctx context.Context, name, projectID, excludeID string) (bool, error)
}

type ColumnRepository interface {
	Siblings

	FindByID(ctx context.Context, id string) (models.Column, error)
	FindByParent(ctx context.Context, boardID string) ([]models.Column, error)
	Create(ctx context.Context, column models.Column) (models.Column, error)
	Update(ctx context.Context, column models.Column) (models.Column, error)
	Delete(ctx context.Context, id string) error
	DeleteByParent(ctx context.Context, boardID string) error
	ExistsByName(ctx context.Context, name, boardID, excludeID string) (bool, error)
}

type TaskRepository interface {
	Siblings

	FindByID(ctx context.Context, id string) (models.Task, error)
	FindByParent(ctx context.Context, columnID string, includeArchived bool) ([]models.Task, error)
	FindByAssignee(ctx context.Context, userID string, filters models.TaskFilters, sort models.Sort, page models.Pagination) (models.Page[models.Task], error)
	FindSubtasks(ctx context.Context, parentTaskID string) ([]models.Task, error)
	FindAll(ctx context.Context, filters models.TaskFilters, sort models.Sort, page models.Pagination) (models.Page[models.Task], error)
	Search(ctx context.Context, query string, filters models.TaskFilters, page models.Pagination) (models.Page[models.Task], error)
	Create(ctx context.Context, task models.Task) (models.Task, error)
	Update(ctx context.Context, task models.Task) (models.Task, error)
	Delete(ctx context.Context, id string) error
	Archive(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
	// UpdateLocation re-stamps the denormalized board and project of id.
	UpdateLocation(ctx context.Context, id, boardID, projectID string) error
	CountByBoard(ctx context.Context, boardID string) (int, error)
	// CountActiveByParent counts non-archived tasks in a column.
	CountActiveByParent(ctx context.Context, columnID string) (int, error)

	AddAssignee(ctx context.Context, taskID, userID string) error
	RemoveAssignee(ctx context.Context, taskID, userID string) error
	AddComment(ctx context.Context, comment models.Comment) error
	AddAttachment(ctx context.Context, attachment models.Attachment) error
	AddTimeEntry(ctx context.Context, entry models.TimeEntry) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindAll(ctx context.Context, filters models.UserFilters, sort models.Sort, page models.Pagination) (models.Page[models.User], error)
	Create(ctx context.Context, user models.User) (models.User, error)
	Update(ctx context.Context, user models.User) (models.User, error)
	Delete(ctx context.Context, id string) error
}

// Repositories bundles one repository per entity, all bound to the same
// connection or transaction.
type Repositories struct {
	Projects ProjectRepository
	Boards   BoardRepository
	Columns  ColumnRepository
	Tasks    TaskRepository
	Users    UserRepository
}

// Store is the storage collaborator consumed by the domain services.
type Store interface {
	// Repos returns repositories running outside any transaction.
	Repos() Repositories
	// WithinTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back on error, panic or context cancellation.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
