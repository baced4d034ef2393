package sqlite

import (
	"context"
	"fmt"
	"time"

	"workboard/internal/models"
	"workboard/internal/repository"
)

type userRepo struct {
	db dbtx
}

type userRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	AvatarURL string    `db:"avatar_url"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const userColumns = `u.id, u.email, u.name, u.avatar_url, u.is_active, u.created_at, u.updated_at`

var userSort = map[string]string{
	"name":       "u.name COLLATE NOCASE",
	"email":      "u.email",
	"created_at": "u.created_at",
}

func (r userRow) model() models.User {
	return models.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		AvatarURL: r.AvatarURL,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (models.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id); err != nil {
		return models.User{}, notFound(err)
	}
	return row.model(), nil
}

// FindByEmail matches the address case-insensitively.
func (r *userRepo) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users u WHERE u.email = ? COLLATE NOCASE`, email); err != nil {
		return models.User{}, notFound(err)
	}
	return row.model(), nil
}

func (r *userRepo) FindAll(ctx context.Context, f models.UserFilters, s models.Sort, p models.Pagination) (models.Page[models.User], error) {
	w := &where{}
	if !f.IncludeInactive {
		w.add("u.is_active = 1")
	}
	if f.Query != "" {
		w.add(`(u.name LIKE ? ESCAPE '\' OR u.email LIKE ? ESCAPE '\')`, likePattern(f.Query), likePattern(f.Query))
	}
	rows, total, err := selectPage[userRow](ctx, r.db, userColumns, "users u", w, orderBy(s, userSort, "u.created_at, u.id"), p)
	if err != nil {
		return models.Page[models.User]{}, fmt.Errorf("list users: %w", err)
	}
	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.model())
	}
	return newPage(users, total, p), nil
}

func (r *userRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users(id, email, name, avatar_url, is_active, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.AvatarURL, u.IsActive, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return r.FindByID(ctx, u.ID)
}

func (r *userRepo) Update(ctx context.Context, u models.User) (models.User, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET email = ?, name = ?, avatar_url = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.Name, u.AvatarURL, u.IsActive, u.UpdatedAt.UTC(), u.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if err := affected(res, "update user"); err != nil {
		return models.User{}, err
	}
	return r.FindByID(ctx, u.ID)
}

// Delete removes a user; memberships and assignments cascade.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affected(res, "delete user")
}

var _ repository.UserRepository = (*userRepo)(nil)
