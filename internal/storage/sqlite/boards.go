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

type boardRepo struct {
	db dbtx
}

type boardRow struct {
	ID          string         `db:"id"`
	ProjectID   string         `db:"project_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Position    int            `db:"position"`
	Visibility  string         `db:"visibility"`
	Settings    types.JSONText `db:"settings"`
	CreatedBy   string         `db:"created_by"`
	IsArchived  bool           `db:"is_archived"`
	ArchivedAt  sql.NullTime   `db:"archived_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

const boardColumns = `b.id, b.project_id, b.name, b.description, b.position, b.visibility, b.settings, b.created_by, b.is_archived, b.archived_at, b.created_at, b.updated_at`

var boardSort = map[string]string{
	"name":       "b.name COLLATE NOCASE",
	"position":   "b.position",
	"created_at": "b.created_at",
	"updated_at": "b.updated_at",
}

func (r boardRow) model() (models.Board, error) {
	b := models.Board{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Name:        r.Name,
		Description: r.Description,
		Position:    r.Position,
		Visibility:  models.BoardVisibility(r.Visibility),
		Settings:    models.DefaultBoardSettings(),
		CreatedBy:   r.CreatedBy,
		IsArchived:  r.IsArchived,
		ArchivedAt:  timePtr(r.ArchivedAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if err := decodeJSON(r.Settings, &b.Settings); err != nil {
		return models.Board{}, err
	}
	return b, nil
}

func boardModels(rows []boardRow) ([]models.Board, error) {
	boards := make([]models.Board, 0, len(rows))
	for _, row := range rows {
		b, err := row.model()
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}

func (r *boardRepo) FindByID(ctx context.Context, id string) (models.Board, error) {
	var row boardRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+boardColumns+` FROM boards b WHERE b.id = ?`, id); err != nil {
		return models.Board{}, notFound(err)
	}
	return row.model()
}

// FindByParent lists the boards of a project in position order.
func (r *boardRepo) FindByParent(ctx context.Context, projectID string, f models.BoardFilters) ([]models.Board, error) {
	w := &where{}
	w.add("b.project_id = ?", projectID)
	if !f.IncludeArchived {
		w.add("b.is_archived = 0")
	}
	if f.Visibility != "" {
		w.add("b.visibility = ?", string(f.Visibility))
	}
	var rows []boardRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+boardColumns+` FROM boards b`+w.String()+` ORDER BY b.position`, w.args...); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	return boardModels(rows)
}

func (r *boardRepo) FindAll(ctx context.Context, f models.BoardFilters, s models.Sort, p models.Pagination) (models.Page[models.Board], error) {
	w := &where{}
	if f.ProjectID != "" {
		w.add("b.project_id = ?", f.ProjectID)
	}
	if !f.IncludeArchived {
		w.add("b.is_archived = 0")
	}
	if f.Visibility != "" {
		w.add("b.visibility = ?", string(f.Visibility))
	}
	if f.Query != "" {
		w.add(`(b.name LIKE ? ESCAPE '\' OR b.description LIKE ? ESCAPE '\')`, likePattern(f.Query), likePattern(f.Query))
	}

	rows, total, err := selectPage[boardRow](ctx, r.db, boardColumns, "boards b", w, orderBy(s, boardSort, "b.project_id, b.position"), p)
	if err != nil {
		return models.Page[models.Board]{}, fmt.Errorf("list boards: %w", err)
	}
	boards, err := boardModels(rows)
	if err != nil {
		return models.Page[models.Board]{}, err
	}
	return newPage(boards, total, p), nil
}

func (r *boardRepo) Create(ctx context.Context, b models.Board) (models.Board, error) {
	settings, err := encodeJSON(b.Settings)
	if err != nil {
		return models.Board{}, err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO boards(id, project_id, name, description, position, visibility, settings, created_by, is_archived, archived_at, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProjectID, b.Name, b.Description, b.Position, string(b.Visibility), settings, b.CreatedBy,
		b.IsArchived, nullTime(b.ArchivedAt), b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return models.Board{}, fmt.Errorf("insert board: %w", err)
	}
	return r.FindByID(ctx, b.ID)
}

// Update stores the descriptive board fields. Position changes go through UpdatePosition.
func (r *boardRepo) Update(ctx context.Context, b models.Board) (models.Board, error) {
	settings, err := encodeJSON(b.Settings)
	if err != nil {
		return models.Board{}, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE boards SET name = ?, description = ?, visibility = ?, settings = ?, updated_at = ? WHERE id = ?`,
		b.Name, b.Description, string(b.Visibility), settings, b.UpdatedAt.UTC(), b.ID)
	if err != nil {
		return models.Board{}, fmt.Errorf("update board: %w", err)
	}
	if err := affected(res, "update board"); err != nil {
		return models.Board{}, err
	}
	return r.FindByID(ctx, b.ID)
}

func (r *boardRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return affected(res, "delete board")
}

func (r *boardRepo) Archive(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE boards SET is_archived = 1, archived_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("archive board: %w", err)
	}
	return affected(res, "archive board")
}

func (r *boardRepo) Restore(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE boards SET is_archived = 0, archived_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("restore board: %w", err)
	}
	return affected(res, "restore board")
}

func (r *boardRepo) ExistsByName(ctx context.Context, name, projectID, excludeID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM boards WHERE project_id = ? AND lower(name) = lower(?) AND id != ?`, projectID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("check board name: %w", err)
	}
	return n > 0, nil
}

func (r *boardRepo) GetMaxPosition(ctx context.Context, projectID string) (int, error) {
	var position sql.NullInt64
	if err := r.db.GetContext(ctx, &position, `SELECT MAX(position) FROM boards WHERE project_id = ?`, projectID); err != nil {
		return 0, fmt.Errorf("select position: %w", err)
	}
	if position.Valid {
		return int(position.Int64), nil
	}
	return -1, nil
}

func (r *boardRepo) CountByParent(ctx context.Context, projectID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM boards WHERE project_id = ?`, projectID); err != nil {
		return 0, fmt.Errorf("count boards: %w", err)
	}
	return n, nil
}

func (r *boardRepo) ShiftPositions(ctx context.Context, projectID string, from, delta int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE boards SET position = position + ? WHERE project_id = ? AND position >= ?`, delta, projectID, from)
	if err != nil {
		return fmt.Errorf("shift board positions: %w", err)
	}
	return nil
}

func (r *boardRepo) UpdatePosition(ctx context.Context, id, projectID string, position int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE boards SET project_id = ?, position = ? WHERE id = ?`, projectID, position, id)
	if err != nil {
		return fmt.Errorf("update board position: %w", err)
	}
	return affected(res, "update board position")
}

var _ repository.BoardRepository = (*boardRepo)(nil)
