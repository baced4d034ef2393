package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"workboard/internal/models"
	"workboard/internal/repository"
)

// where accumulates AND-ed conditions; slice arguments are expanded by sqlx.In.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// orderBy maps a whitelisted sort field to its SQL expression.
func orderBy(s models.Sort, columns map[string]string, fallback string) string {
	expr, ok := columns[s.Field]
	if !ok {
		return " ORDER BY " + fallback
	}
	dir := "ASC"
	if s.Order == models.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s", expr, dir, fallback)
}

func limitOffset(p models.Pagination) string {
	p = p.WithDefaults()
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Limit, p.Offset())
}

// selectPage runs a count and a page query sharing the same FROM/WHERE.
func selectPage[R any](ctx context.Context, db dbtx, selectCols, from string, w *where, order string, p models.Pagination) ([]R, int, error) {
	countQuery, countArgs, err := sqlx.In("SELECT COUNT(*) FROM "+from+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := db.GetContext(ctx, &total, db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count rows: %w", err)
	}

	query, args, err := sqlx.In("SELECT "+selectCols+" FROM "+from+w.String()+order+limitOffset(p), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("build page query: %w", err)
	}
	var rows []R
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("select page: %w", err)
	}
	return rows, total, nil
}

func newPage[T any](items []T, total int, p models.Pagination) models.Page[T] {
	return models.NewPage(items, total, p)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// affected turns a zero-row write into ErrNotFound.
func affected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func encodeJSON(v any) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return types.JSONText(b), nil
}

func decodeJSON(raw types.JSONText, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := raw.Unmarshal(dst); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func likePattern(q string) string {
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(q))
	return "%" + q + "%"
}
