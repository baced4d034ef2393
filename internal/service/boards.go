package service

import (
	"context"
	"log/slog"
	"strings"

	"workboard/internal/access"
	"workboard/internal/apperr"
	"workboard/internal/models"
	"workboard/internal/position"
	"workboard/internal/repository"
	"workboard/internal/validation"
)

// BoardService manages the boards of a project.
type BoardService struct {
	*core
}

// Create adds a board to a project, appended unless a position is given.
func (s *BoardService) Create(ctx context.Context, principalID string, in models.CreateBoardInput) (models.Board, error) {
	if err := validation.Boards.ValidateCreate(in).Err(); err != nil {
		return models.Board{}, err
	}
	now := s.now()
	b := models.Board{
		ID:          validation.NewID(),
		ProjectID:   in.ProjectID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Visibility:  in.Visibility,
		Settings:    models.DefaultBoardSettings(),
		CreatedBy:   principalID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Settings != nil {
		b.Settings = *in.Settings
	}

	unlock := s.positions.Lock(position.Key(position.KindProjectBoards, in.ProjectID))
	defer unlock()

	var created models.Board
	err := s.tx(ctx, "create board", func(ctx context.Context, tx repository.Repositories) error {
		p, err := s.projectIn(ctx, tx, in.ProjectID)
		if err != nil {
			return err
		}
		if err := access.Require(p, principalID, access.ActionCreateBoards); err != nil {
			return err
		}
		if p.IsArchived {
			return apperr.Conflict(apperr.CodeParentArchived, "project %s is archived", p.ID)
		}
		if b.Visibility == "" {
			b.Visibility = p.Settings.DefaultBoardVisibility
		}
		if b.Visibility == "" {
			b.Visibility = models.VisibilityProject
		}

		exists, err := tx.Boards.ExistsByName(ctx, b.Name, p.ID, "")
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(apperr.CodeDuplicateName, "a board named %q already exists in project %s", b.Name, p.ID)
		}
		if b.Position, err = s.positions.Insert(ctx, tx.Boards, p.ID, in.Position); err != nil {
			return err
		}
		if created, err = tx.Boards.Create(ctx, b); err != nil {
			return err
		}
		if !in.WithDefaultColumns {
			return nil
		}
		for i, tpl := range models.DefaultColumns() {
			_, err := tx.Columns.Create(ctx, models.Column{
				ID:        validation.NewID(),
				BoardID:   b.ID,
				Name:      tpl.Name,
				Position:  i,
				Color:     tpl.Color,
				Settings:  tpl.Settings,
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Board{}, err
	}

	s.logger.InfoContext(ctx, "board created", slog.String("board_id", created.ID), slog.String("project_id", created.ProjectID), slog.Int("position", created.Position))
	return created, nil
}

// GetByID returns a board visible to the principal.
func (s *BoardService) GetByID(ctx context.Context, principalID, id string) (models.Board, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Board{}, err
	}
	b, p, err := s.boardScope(ctx, id)
	if err != nil {
		return models.Board{}, err
	}
	if err := access.RequireBoard(p, b, principalID, access.ActionView); err != nil {
		return models.Board{}, err
	}
	return b, nil
}

// GetByParentID lists the boards of a project in position order.
func (s *BoardService) GetByParentID(ctx context.Context, principalID, projectID string, f models.BoardFilters) ([]models.Board, error) {
	if err := validation.Merge(validation.ValidateRef("project_id", projectID), validation.Boards.ValidateQuery(f, models.Sort{}, models.Pagination{})).Err(); err != nil {
		return nil, err
	}
	p, err := s.LookupProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(p, principalID, access.ActionView); err != nil {
		return nil, err
	}
	boards, err := s.store.Repos().Boards.FindByParent(ctx, projectID, f)
	if err != nil {
		return nil, s.storageErr(ctx, "list boards", err)
	}
	return boards, nil
}

// GetAll lists the boards of one project with filtering, sorting and paging.
func (s *BoardService) GetAll(ctx context.Context, principalID string, f models.BoardFilters, sort models.Sort, page models.Pagination) (models.Page[models.Board], error) {
	if err := validation.Merge(validation.ValidateRef("project_id", f.ProjectID), validation.Boards.ValidateQuery(f, sort, page)).Err(); err != nil {
		return models.Page[models.Board]{}, err
	}
	p, err := s.LookupProject(ctx, f.ProjectID)
	if err != nil {
		return models.Page[models.Board]{}, err
	}
	if err := access.Require(p, principalID, access.ActionView); err != nil {
		return models.Page[models.Board]{}, err
	}
	out, err := s.store.Repos().Boards.FindAll(ctx, f, sort, page)
	if err != nil {
		return models.Page[models.Board]{}, s.storageErr(ctx, "list boards", err)
	}
	return out, nil
}

// writable loads a board and its project from repos for a mutation and
// runs the permission and archive guards. Writers call it inside their
// transaction.
func (s *BoardService) writable(ctx context.Context, repos repository.Repositories, principalID, id string) (models.Board, models.Project, error) {
	b, p, err := s.boardScopeIn(ctx, repos, id)
	if err != nil {
		return models.Board{}, models.Project{}, err
	}
	if err := access.RequireBoard(p, b, principalID, access.ActionCreateBoards); err != nil {
		return models.Board{}, models.Project{}, err
	}
	if b.IsArchived {
		return models.Board{}, models.Project{}, archivedConflict("board", id)
	}
	if p.IsArchived {
		return models.Board{}, models.Project{}, apperr.Conflict(apperr.CodeParentArchived, "project %s is archived", p.ID)
	}
	return b, p, nil
}

// Update changes the descriptive fields of a board.
func (s *BoardService) Update(ctx context.Context, principalID, id string, in models.UpdateBoardInput) (models.Board, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Boards.ValidateUpdate(in)).Err(); err != nil {
		return models.Board{}, err
	}
	var updated models.Board
	err := s.tx(ctx, "update board", func(ctx context.Context, tx repository.Repositories) error {
		b, _, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			b.Name = strings.TrimSpace(*in.Name)
			exists, err := tx.Boards.ExistsByName(ctx, b.Name, b.ProjectID, b.ID)
			if err != nil {
				return err
			}
			if exists {
				return apperr.Conflict(apperr.CodeDuplicateName, "a board named %q already exists in project %s", b.Name, b.ProjectID)
			}
		}
		if in.Description != nil {
			b.Description = *in.Description
		}
		if in.Visibility != nil && *in.Visibility != "" {
			b.Visibility = *in.Visibility
		}
		if in.Settings != nil {
			b.Settings = *in.Settings
		}
		b.UpdatedAt = s.now()
		updated, err = tx.Boards.Update(ctx, b)
		return err
	})
	if err != nil {
		return models.Board{}, err
	}
	return updated, nil
}

// Delete removes a board that holds no tasks, archived ones included, along
// with its empty columns, and closes the gap in the project's board order.
func (s *BoardService) Delete(ctx context.Context, principalID, id string) error {
	if err := validation.ValidateID(id).Err(); err != nil {
		return err
	}
	b, err := s.loadBoard(ctx, s.store.Repos(), id)
	if err != nil {
		return err
	}

	unlock := s.positions.Lock(position.Key(position.KindProjectBoards, b.ProjectID))
	defer unlock()

	err = s.tx(ctx, "delete board", func(ctx context.Context, tx repository.Repositories) error {
		current, _, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		n, err := tx.Tasks.CountByBoard(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(apperr.CodeHasDescendants, "board %s still has %d tasks; archive it instead", id, n)
		}
		if err := tx.Columns.DeleteByParent(ctx, id); err != nil {
			return err
		}
		if err := tx.Boards.Delete(ctx, id); err != nil {
			return err
		}
		return s.positions.Remove(ctx, tx.Boards, current.ProjectID, current.Position)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "board deleted", slog.String("board_id", id), slog.String("project_id", b.ProjectID))
	return nil
}

// Archive soft-deletes a board. It keeps its position among its siblings.
func (s *BoardService) Archive(ctx context.Context, principalID, id string) (models.Board, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Board{}, err
	}
	var archived models.Board
	err := s.tx(ctx, "archive board", func(ctx context.Context, tx repository.Repositories) error {
		if _, _, err := s.writable(ctx, tx, principalID, id); err != nil {
			return err
		}
		if err := tx.Boards.Archive(ctx, id, s.now()); err != nil {
			return err
		}
		var err error
		archived, err = s.loadBoard(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Board{}, err
	}
	s.logger.InfoContext(ctx, "board archived", slog.String("board_id", id))
	return archived, nil
}

// Restore reverses Archive.
func (s *BoardService) Restore(ctx context.Context, principalID, id string) (models.Board, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Board{}, err
	}
	var restored models.Board
	err := s.tx(ctx, "restore board", func(ctx context.Context, tx repository.Repositories) error {
		b, p, err := s.boardScopeIn(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := access.RequireBoard(p, b, principalID, access.ActionCreateBoards); err != nil {
			return err
		}
		if !b.IsArchived {
			return notArchivedConflict("board", id)
		}
		if p.IsArchived {
			return apperr.Conflict(apperr.CodeParentArchived, "project %s is archived", p.ID)
		}
		if err := tx.Boards.Restore(ctx, id); err != nil {
			return err
		}
		restored, err = s.loadBoard(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Board{}, err
	}
	s.logger.InfoContext(ctx, "board restored", slog.String("board_id", id))
	return restored, nil
}

// UpdatePosition moves a board within its project.
func (s *BoardService) UpdatePosition(ctx context.Context, principalID, id string, in models.MoveInput) (models.Board, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Boards.ValidateMove(in)).Err(); err != nil {
		return models.Board{}, err
	}
	b, err := s.loadBoard(ctx, s.store.Repos(), id)
	if err != nil {
		return models.Board{}, err
	}

	unlock := s.positions.Lock(position.Key(position.KindProjectBoards, b.ProjectID))
	defer unlock()

	var moved models.Board
	err = s.tx(ctx, "move board", func(ctx context.Context, tx repository.Repositories) error {
		current, _, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		err = s.positions.Move(ctx, tx.Boards, position.Move{
			ID:           id,
			FromParent:   current.ProjectID,
			FromPosition: current.Position,
			ToParent:     current.ProjectID,
			ToPosition:   in.Position,
		})
		if err != nil {
			return err
		}
		moved, err = tx.Boards.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return models.Board{}, err
	}
	return moved, nil
}

// Duplicate copies a board and its columns, without tasks, to the end of
// the same project.
func (s *BoardService) Duplicate(ctx context.Context, principalID, id string, in models.DuplicateBoardInput) (models.Board, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Boards.ValidateDuplicate(in)).Err(); err != nil {
		return models.Board{}, err
	}
	b, err := s.loadBoard(ctx, s.store.Repos(), id)
	if err != nil {
		return models.Board{}, err
	}

	unlock := s.positions.Lock(position.Key(position.KindProjectBoards, b.ProjectID))
	defer unlock()

	var created models.Board
	err = s.tx(ctx, "duplicate board", func(ctx context.Context, tx repository.Repositories) error {
		src, _, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = copyName(src.Name, 100)
		}
		now := s.now()
		dup := src
		dup.ID = validation.NewID()
		dup.Name = name
		dup.CreatedBy = principalID
		dup.CreatedAt = now
		dup.UpdatedAt = now

		exists, err := tx.Boards.ExistsByName(ctx, dup.Name, dup.ProjectID, "")
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(apperr.CodeDuplicateName, "a board named %q already exists in project %s", dup.Name, dup.ProjectID)
		}
		if dup.Position, err = s.positions.Append(ctx, tx.Boards, dup.ProjectID); err != nil {
			return err
		}
		if created, err = tx.Boards.Create(ctx, dup); err != nil {
			return err
		}
		columns, err := tx.Columns.FindByParent(ctx, src.ID)
		if err != nil {
			return err
		}
		for _, col := range columns {
			col.ID = validation.NewID()
			col.BoardID = dup.ID
			col.CreatedAt = now
			col.UpdatedAt = now
			if _, err := tx.Columns.Create(ctx, col); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Board{}, err
	}
	s.logger.InfoContext(ctx, "board duplicated", slog.String("source_id", id), slog.String("board_id", created.ID))
	return created, nil
}

func copyName(name string, limit int) string {
	const suffix = " (copy)"
	runes := []rune(name)
	if len(runes)+len([]rune(suffix)) > limit {
		runes = runes[:limit-len([]rune(suffix))]
	}
	return string(runes) + suffix
}
