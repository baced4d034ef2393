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

type projectRepo struct {
	db dbtx
}

type projectRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Color       string         `db:"color"`
	OwnerID     string         `db:"owner_id"`
	Settings    types.JSONText `db:"settings"`
	IsArchived  bool           `db:"is_archived"`
	ArchivedAt  sql.NullTime   `db:"archived_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type memberRow struct {
	ProjectID         string    `db:"project_id"`
	UserID            string    `db:"user_id"`
	Role              string    `db:"role"`
	CanCreateBoards   bool      `db:"can_create_boards"`
	CanEditProject    bool      `db:"can_edit_project"`
	CanManageMembers  bool      `db:"can_manage_members"`
	CanDeleteProject  bool      `db:"can_delete_project"`
	CanArchiveProject bool      `db:"can_archive_project"`
	JoinedAt          time.Time `db:"joined_at"`
}

const projectColumns = `p.id, p.name, p.description, p.color, p.owner_id, p.settings, p.is_archived, p.archived_at, p.created_at, p.updated_at`

const memberColumns = `project_id, user_id, role, can_create_boards, can_edit_project, can_manage_members, can_delete_project, can_archive_project, joined_at`

var projectSort = map[string]string{
	"name":       "p.name COLLATE NOCASE",
	"created_at": "p.created_at",
	"updated_at": "p.updated_at",
}

func (r projectRow) model() (models.Project, error) {
	p := models.Project{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		OwnerID:     r.OwnerID,
		IsArchived:  r.IsArchived,
		ArchivedAt:  timePtr(r.ArchivedAt),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		Settings:    models.DefaultProjectSettings(),
	}
	if err := decodeJSON(r.Settings, &p.Settings); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

func (r memberRow) model() models.ProjectMember {
	return models.ProjectMember{
		ProjectID: r.ProjectID,
		UserID:    r.UserID,
		Role:      models.Role(r.Role),
		Permissions: models.Permissions{
			CanCreateBoards:   r.CanCreateBoards,
			CanEditProject:    r.CanEditProject,
			CanManageMembers:  r.CanManageMembers,
			CanDeleteProject:  r.CanDeleteProject,
			CanArchiveProject: r.CanArchiveProject,
		},
		JoinedAt: r.JoinedAt.UTC(),
	}
}

// FindByID fetches a project together with its members.
func (r *projectRepo) FindByID(ctx context.Context, id string) (models.Project, error) {
	var row projectRow
	err := r.db.GetContext(ctx, &row, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id)
	if err != nil {
		return models.Project{}, notFound(err)
	}
	p, err := row.model()
	if err != nil {
		return models.Project{}, err
	}
	if p.Members, err = r.GetMembers(ctx, id); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// FindAll lists projects; MemberID restricts the result to that user's projects.
func (r *projectRepo) FindAll(ctx context.Context, f models.ProjectFilters, s models.Sort, p models.Pagination) (models.Page[models.Project], error) {
	w := &where{}
	if !f.IncludeArchived {
		w.add("p.is_archived = 0")
	}
	if f.MemberID != "" {
		w.add("EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?)", f.MemberID)
	}
	if f.Query != "" {
		w.add(`(p.name LIKE ? ESCAPE '\' OR p.description LIKE ? ESCAPE '\')`, likePattern(f.Query), likePattern(f.Query))
	}

	rows, total, err := selectPage[projectRow](ctx, r.db, projectColumns, "projects p", w, orderBy(s, projectSort, "p.created_at ASC, p.id ASC"), p)
	if err != nil {
		return models.Page[models.Project]{}, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]models.Project, 0, len(rows))
	for _, row := range rows {
		project, err := row.model()
		if err != nil {
			return models.Page[models.Project]{}, err
		}
		if project.Members, err = r.GetMembers(ctx, project.ID); err != nil {
			return models.Page[models.Project]{}, err
		}
		projects = append(projects, project)
	}
	return newPage(projects, total, p), nil
}

// FindByOwner lists every project owned by ownerID, archived ones included.
func (r *projectRepo) FindByOwner(ctx context.Context, ownerID string) ([]models.Project, error) {
	var rows []projectRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+projectColumns+` FROM projects p WHERE p.owner_id = ? ORDER BY p.created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owned projects: %w", err)
	}
	projects := make([]models.Project, 0, len(rows))
	for _, row := range rows {
		p, err := row.model()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Create persists a new project and its initial members.
func (r *projectRepo) Create(ctx context.Context, p models.Project) (models.Project, error) {
	settings, err := encodeJSON(p.Settings)
	if err != nil {
		return models.Project{}, err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO projects(id, name, description, color, owner_id, settings, is_archived, archived_at, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Color, p.OwnerID, settings, p.IsArchived, nullTime(p.ArchivedAt), p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	for _, m := range p.Members {
		m.ProjectID = p.ID
		if err := r.AddMember(ctx, m); err != nil {
			return models.Project{}, err
		}
	}
	return r.FindByID(ctx, p.ID)
}

// Update stores the mutable project fields.
func (r *projectRepo) Update(ctx context.Context, p models.Project) (models.Project, error) {
	settings, err := encodeJSON(p.Settings)
	if err != nil {
		return models.Project{}, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET name = ?, description = ?, color = ?, settings = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, p.Color, settings, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	if err := affected(res, "update project"); err != nil {
		return models.Project{}, err
	}
	return r.FindByID(ctx, p.ID)
}

// Delete removes a project; memberships cascade.
func (r *projectRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return affected(res, "delete project")
}

func (r *projectRepo) Archive(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET is_archived = 1, archived_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("archive project: %w", err)
	}
	return affected(res, "archive project")
}

func (r *projectRepo) Restore(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET is_archived = 0, archived_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("restore project: %w", err)
	}
	return affected(res, "restore project")
}

// ExistsByName checks for another project of the same owner with name.
func (r *projectRepo) ExistsByName(ctx context.Context, name, ownerID, excludeID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM projects WHERE owner_id = ? AND lower(name) = lower(?) AND id != ?`, ownerID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("check project name: %w", err)
	}
	return n > 0, nil
}

// GetStatistics computes the denormalized counts of a project.
func (r *projectRepo) GetStatistics(ctx context.Context, id string, now time.Time) (models.ProjectStatistics, error) {
	var st struct {
		TotalBoards    int `db:"total_boards"`
		ActiveBoards   int `db:"active_boards"`
		TotalTasks     int `db:"total_tasks"`
		CompletedTasks int `db:"completed_tasks"`
		OverdueTasks   int `db:"overdue_tasks"`
		MemberCount    int `db:"member_count"`
	}
	err := r.db.GetContext(ctx, &st, `SELECT
            (SELECT COUNT(*) FROM boards WHERE project_id = ?) AS total_boards,
            (SELECT COUNT(*) FROM boards WHERE project_id = ? AND is_archived = 0) AS active_boards,
            (SELECT COUNT(*) FROM tasks WHERE project_id = ? AND is_archived = 0) AS total_tasks,
            (SELECT COUNT(*) FROM tasks WHERE project_id = ? AND is_archived = 0 AND status = 'done') AS completed_tasks,
            (SELECT COUNT(*) FROM tasks WHERE project_id = ? AND is_archived = 0 AND status != 'done' AND due_date IS NOT NULL AND due_date < ?) AS overdue_tasks,
            (SELECT COUNT(*) FROM project_members WHERE project_id = ?) AS member_count`,
		id, id, id, id, id, now.UTC(), id)
	if err != nil {
		return models.ProjectStatistics{}, fmt.Errorf("project statistics: %w", err)
	}
	return models.ProjectStatistics(st), nil
}

func (r *projectRepo) GetMembers(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	var rows []memberRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+memberColumns+` FROM project_members WHERE project_id = ? ORDER BY joined_at, user_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	members := make([]models.ProjectMember, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.model())
	}
	return members, nil
}

func (r *projectRepo) GetMember(ctx context.Context, projectID, userID string) (models.ProjectMember, error) {
	var row memberRow
	err := r.db.GetContext(ctx, &row, `SELECT `+memberColumns+` FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return models.ProjectMember{}, notFound(err)
	}
	return row.model(), nil
}

func (r *projectRepo) AddMember(ctx context.Context, m models.ProjectMember) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO project_members(`+memberColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ProjectID, m.UserID, string(m.Role),
		m.Permissions.CanCreateBoards, m.Permissions.CanEditProject, m.Permissions.CanManageMembers,
		m.Permissions.CanDeleteProject, m.Permissions.CanArchiveProject, m.JoinedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *projectRepo) UpdateMember(ctx context.Context, m models.ProjectMember) error {
	res, err := r.db.ExecContext(ctx, `UPDATE project_members SET role = ?, can_create_boards = ?, can_edit_project = ?,
        can_manage_members = ?, can_delete_project = ?, can_archive_project = ? WHERE project_id = ? AND user_id = ?`,
		string(m.Role), m.Permissions.CanCreateBoards, m.Permissions.CanEditProject, m.Permissions.CanManageMembers,
		m.Permissions.CanDeleteProject, m.Permissions.CanArchiveProject, m.ProjectID, m.UserID)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return affected(res, "update member")
}

func (r *projectRepo) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return affected(res, "remove member")
}

var _ repository.ProjectRepository = (*projectRepo)(nil)
