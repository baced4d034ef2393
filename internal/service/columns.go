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

// ColumnService manages the columns of a board.
type ColumnService struct {
	*core
}

// Create adds a column to a board, appended unless a position is given.
func (s *ColumnService) Create(ctx context.Context, principalID string, in models.CreateColumnInput) (models.Column, error) {
	if err := validation.Columns.ValidateCreate(in).Err(); err != nil {
		return models.Column{}, err
	}
	now := s.now()
	col := models.Column{
		ID:        validation.NewID(),
		BoardID:   in.BoardID,
		Name:      strings.TrimSpace(in.Name),
		Color:     in.Color,
		WIPLimit:  in.WIPLimit,
		Settings:  models.DefaultColumnSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Settings != nil {
		col.Settings = *in.Settings
	}

	unlock := s.positions.Lock(position.Key(position.KindBoardColumns, in.BoardID))
	defer unlock()

	var created models.Column
	err := s.tx(ctx, "create column", func(ctx context.Context, tx repository.Repositories) error {
		b, p, err := s.boardScopeIn(ctx, tx, in.BoardID)
		if err != nil {
			return err
		}
		if err := guardBoard(p, b, principalID, access.ActionCreateBoards); err != nil {
			return err
		}
		exists, err := tx.Columns.ExistsByName(ctx, col.Name, b.ID, "")
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(apperr.CodeDuplicateName, "a column named %q already exists on board %s", col.Name, b.ID)
		}
		if col.Position, err = s.positions.Insert(ctx, tx.Columns, b.ID, in.Position); err != nil {
			return err
		}
		created, err = tx.Columns.Create(ctx, col)
		return err
	})
	if err != nil {
		return models.Column{}, err
	}
	s.logger.InfoContext(ctx, "column created", slog.String("column_id", created.ID), slog.String("board_id", created.BoardID), slog.Int("position", created.Position))
	return created, nil
}

// GetByID returns a column whose board is visible to the principal.
func (s *ColumnService) GetByID(ctx context.Context, principalID, id string) (models.Column, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Column{}, err
	}
	col, b, p, err := s.columnScope(ctx, id)
	if err != nil {
		return models.Column{}, err
	}
	if err := access.RequireBoard(p, b, principalID, access.ActionView); err != nil {
		return models.Column{}, err
	}
	return col, nil
}

// GetByParentID lists the columns of a board in position order.
func (s *ColumnService) GetByParentID(ctx context.Context, principalID, boardID string) ([]models.Column, error) {
	if err := validation.ValidateRef("board_id", boardID).Err(); err != nil {
		return nil, err
	}
	b, p, err := s.boardScope(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireBoard(p, b, principalID, access.ActionView); err != nil {
		return nil, err
	}
	columns, err := s.store.Repos().Columns.FindByParent(ctx, boardID)
	if err != nil {
		return nil, s.storageErr(ctx, "list columns", err)
	}
	return columns, nil
}

// writable loads a column with its board and project from repos and runs
// the permission and archive guards.
func (s *ColumnService) writable(ctx context.Context, repos repository.Repositories, principalID, id string) (models.Column, error) {
	col, b, p, err := s.columnScopeIn(ctx, repos, id)
	if err != nil {
		return models.Column{}, err
	}
	if err := guardBoard(p, b, principalID, access.ActionCreateBoards); err != nil {
		return models.Column{}, err
	}
	return col, nil
}

// Update changes a column's name, color, WIP limit or settings. A limit
// below the number of active tasks already in the column is refused.
func (s *ColumnService) Update(ctx context.Context, principalID, id string, in models.UpdateColumnInput) (models.Column, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Columns.ValidateUpdate(in)).Err(); err != nil {
		return models.Column{}, err
	}
	var updated models.Column
	err := s.tx(ctx, "update column", func(ctx context.Context, tx repository.Repositories) error {
		col, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			col.Name = strings.TrimSpace(*in.Name)
			exists, err := tx.Columns.ExistsByName(ctx, col.Name, col.BoardID, col.ID)
			if err != nil {
				return err
			}
			if exists {
				return apperr.Conflict(apperr.CodeDuplicateName, "a column named %q already exists on board %s", col.Name, col.BoardID)
			}
		}
		if in.Color != nil {
			col.Color = *in.Color
		}
		switch {
		case in.ClearWIPLimit:
			col.WIPLimit = nil
		case in.WIPLimit != nil:
			limit := *in.WIPLimit
			n, err := tx.Tasks.CountActiveByParent(ctx, col.ID)
			if err != nil {
				return err
			}
			if n > limit {
				return apperr.Conflict(apperr.CodeWIPLimitReached, "column %s already holds %d tasks, more than the limit %d", col.ID, n, limit)
			}
			col.WIPLimit = &limit
		}
		if in.Settings != nil {
			col.Settings = *in.Settings
		}
		col.UpdatedAt = s.now()
		updated, err = tx.Columns.Update(ctx, col)
		return err
	})
	if err != nil {
		return models.Column{}, err
	}
	return updated, nil
}

// Delete removes a column without tasks and closes the gap in the board's
// column order.
func (s *ColumnService) Delete(ctx context.Context, principalID, id string) error {
	if err := validation.ValidateID(id).Err(); err != nil {
		return err
	}
	col, err := s.loadColumn(ctx, s.store.Repos(), id)
	if err != nil {
		return err
	}

	unlock := s.positions.Lock(position.Key(position.KindBoardColumns, col.BoardID), position.Key(position.KindColumnTasks, id))
	defer unlock()

	err = s.tx(ctx, "delete column", func(ctx context.Context, tx repository.Repositories) error {
		current, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		n, err := tx.Tasks.CountByParent(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(apperr.CodeHasDescendants, "column %s still has %d tasks", id, n)
		}
		if err := tx.Columns.Delete(ctx, id); err != nil {
			return err
		}
		return s.positions.Remove(ctx, tx.Columns, current.BoardID, current.Position)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "column deleted", slog.String("column_id", id), slog.String("board_id", col.BoardID))
	return nil
}

// UpdatePosition moves a column within its board.
func (s *ColumnService) UpdatePosition(ctx context.Context, principalID, id string, in models.MoveInput) (models.Column, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Columns.ValidateMove(in)).Err(); err != nil {
		return models.Column{}, err
	}
	col, err := s.loadColumn(ctx, s.store.Repos(), id)
	if err != nil {
		return models.Column{}, err
	}

	unlock := s.positions.Lock(position.Key(position.KindBoardColumns, col.BoardID))
	defer unlock()

	var moved models.Column
	err = s.tx(ctx, "move column", func(ctx context.Context, tx repository.Repositories) error {
		current, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		err = s.positions.Move(ctx, tx.Columns, position.Move{
			ID:           id,
			FromParent:   current.BoardID,
			FromPosition: current.Position,
			ToParent:     current.BoardID,
			ToPosition:   in.Position,
		})
		if err != nil {
			return err
		}
		moved, err = tx.Columns.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return models.Column{}, err
	}
	return moved, nil
}
