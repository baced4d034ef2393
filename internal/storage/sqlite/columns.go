package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"

	"workboard/internal/models"
	"workboard/internal/repository"
)

type columnRepo struct {
	db dbtx
}

type columnRow struct {
	ID        string         `db:"id"`
	BoardID   string         `db:"board_id"`
	Name      string         `db:"name"`
	Position  int            `db:"position"`
	Color     string         `db:"color"`
	WIPLimit  sql.NullInt64  `db:"wip_limit"`
	Settings  types.JSONText `db:"settings"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

const columnColumns = `id, board_id, name, position, color, wip_limit, settings, created_at, updated_at`

func (r columnRow) model() (models.Column, error) {
	c := models.Column{
		ID:        r.ID,
		BoardID:   r.BoardID,
		Name:      r.Name,
		Position:  r.Position,
		Color:     r.Color,
		Settings:  models.DefaultColumnSettings(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.WIPLimit.Valid {
		limit := int(r.WIPLimit.Int64)
		c.WIPLimit = &limit
	}
	if err := decodeJSON(r.Settings, &c.Settings); err != nil {
		return models.Column{}, err
	}
	return c, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func (r *columnRepo) FindByID(ctx context.Context, id string) (models.Column, error) {
	var row columnRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+columnColumns+` FROM board_columns WHERE id = ?`, id); err != nil {
		return models.Column{}, notFound(err)
	}
	return row.model()
}

func (r *columnRepo) FindByParent(ctx context.Context, boardID string) ([]models.Column, error) {
	var rows []columnRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+columnColumns+` FROM board_columns WHERE board_id = ? ORDER BY position`, boardID); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	columns := make([]models.Column, 0, len(rows))
	for _, row := range rows {
		c, err := row.model()
		if err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, nil
}

func (r *columnRepo) Create(ctx context.Context, c models.Column) (models.Column, error) {
	settings, err := encodeJSON(c.Settings)
	if err != nil {
		return models.Column{}, err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO board_columns(`+columnColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BoardID, c.Name, c.Position, c.Color, nullInt(c.WIPLimit), settings, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return models.Column{}, fmt.Errorf("insert column: %w", err)
	}
	return r.FindByID(ctx, c.ID)
}

func (r *columnRepo) Update(ctx context.Context, c models.Column) (models.Column, error) {
	settings, err := encodeJSON(c.Settings)
	if err != nil {
		return models.Column{}, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE board_columns SET name = ?, color = ?, wip_limit = ?, settings = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Color, nullInt(c.WIPLimit), settings, c.UpdatedAt.UTC(), c.ID)
	if err != nil {
		return models.Column{}, fmt.Errorf("update column: %w", err)
	}
	if err := affected(res, "update column"); err != nil {
		return models.Column{}, err
	}
	return r.FindByID(ctx, c.ID)
}

func (r *columnRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM board_columns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	return affected(res, "delete column")
}

// DeleteByParent removes every column of a board.
func (r *columnRepo) DeleteByParent(ctx context.Context, boardID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM board_columns WHERE board_id = ?`, boardID); err != nil {
		return fmt.Errorf("delete board columns: %w", err)
	}
	return nil
}

func (r *columnRepo) ExistsByName(ctx context.Context, name, boardID, excludeID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM board_columns WHERE board_id = ? AND lower(name) = lower(?) AND id != ?`, boardID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("check column name: %w", err)
	}
	return n > 0, nil
}

func (r *columnRepo) GetMaxPosition(ctx context.Context, boardID string) (int, error) {
	var position sql.NullInt64
	if err := r.db.GetContext(ctx, &position, `SELECT MAX(position) FROM board_columns WHERE board_id = ?`, boardID); err != nil {
		return 0, fmt.Errorf("select position: %w", err)
	}
	if position.Valid {
		return int(position.Int64), nil
	}
	return -1, nil
}

func (r *columnRepo) CountByParent(ctx context.Context, boardID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM board_columns WHERE board_id = ?`, boardID); err != nil {
		return 0, fmt.Errorf("count columns: %w", err)
	}
	return n, nil
}

func (r *columnRepo) ShiftPositions(ctx context.Context, boardID string, from, delta int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE board_columns SET position = position + ? WHERE board_id = ? AND position >= ?`, delta, boardID, from)
	if err != nil {
		return fmt.Errorf("shift column positions: %w", err)
	}
	return nil
}

func (r *columnRepo) UpdatePosition(ctx context.Context, id, boardID string, position int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE board_columns SET board_id = ?, position = ? WHERE id = ?`, boardID, position, id)
	if err != nil {
		return fmt.Errorf("update column position: %w", err)
	}
	return affected(res, "update column position")
}

var _ repository.ColumnRepository = (*columnRepo)(nil)
