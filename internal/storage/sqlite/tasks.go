package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"workboard/internal/models"
	"workboard/internal/repository"
)

type taskRepo struct {
	db dbtx
}

type taskRow struct {
	ID                   string          `db:"id"`
	Title                string          `db:"title"`
	Description          string          `db:"description"`
	Status               string          `db:"status"`
	Priority             string          `db:"priority"`
	ColumnID             string          `db:"column_id"`
	BoardID              string          `db:"board_id"`
	ProjectID            string          `db:"project_id"`
	ParentTaskID         sql.NullString  `db:"parent_task_id"`
	ReporterID           string          `db:"reporter_id"`
	Position             int             `db:"position"`
	DueDate              sql.NullTime    `db:"due_date"`
	CompletedAt          sql.NullTime    `db:"completed_at"`
	EstimatedHours       sql.NullFloat64 `db:"estimated_hours"`
	ActualHours          float64         `db:"actual_hours"`
	CompletionPercentage int             `db:"completion_percentage"`
	IsArchived           bool            `db:"is_archived"`
	ArchivedAt           sql.NullTime    `db:"archived_at"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// actual_hours is derived from the time entries rather than stored.
const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.column_id, t.board_id, t.project_id,
    t.parent_task_id, t.reporter_id, t.position, t.due_date, t.completed_at, t.estimated_hours,
    COALESCE((SELECT SUM(e.hours) FROM task_time_entries e WHERE e.task_id = t.id), 0) AS actual_hours,
    t.completion_percentage, t.is_archived, t.archived_at, t.created_at, t.updated_at`

var taskSort = map[string]string{
	"title":      "t.title COLLATE NOCASE",
	"position":   "t.position",
	"status":     "t.status",
	"priority":   "CASE t.priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'urgent' THEN 3 ELSE -1 END",
	"due_date":   "t.due_date",
	"created_at": "t.created_at",
	"updated_at": "t.updated_at",
}

const taskFallbackOrder = "t.column_id, t.position, t.id"

func (r taskRow) model() models.Task {
	t := models.Task{
		ID:                   r.ID,
		Title:                r.Title,
		Description:          r.Description,
		Status:               models.TaskStatus(r.Status),
		Priority:             models.Priority(r.Priority),
		ColumnID:             r.ColumnID,
		BoardID:              r.BoardID,
		ProjectID:            r.ProjectID,
		ReporterID:           r.ReporterID,
		Position:             r.Position,
		DueDate:              timePtr(r.DueDate),
		CompletedAt:          timePtr(r.CompletedAt),
		ActualHours:          r.ActualHours,
		CompletionPercentage: r.CompletionPercentage,
		IsArchived:           r.IsArchived,
		ArchivedAt:           timePtr(r.ArchivedAt),
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
		Assignees:            []string{},
		Tags:                 []string{},
	}
	if r.ParentTaskID.Valid {
		parent := r.ParentTaskID.String
		t.ParentTaskID = &parent
	}
	if r.EstimatedHours.Valid {
		est := r.EstimatedHours.Float64
		t.EstimatedHours = &est
	}
	return t
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func taskWhere(f models.TaskFilters) *where {
	w := &where{}
	if !f.IncludeArchived {
		w.add("t.is_archived = 0")
	}
	if f.ProjectID != "" {
		w.add("t.project_id = ?", f.ProjectID)
	}
	if f.BoardID != "" {
		w.add("t.board_id = ?", f.BoardID)
	}
	if f.ColumnID != "" {
		w.add("t.column_id = ?", f.ColumnID)
	}
	if len(f.Statuses) > 0 {
		w.add("t.status IN (?)", stringsOf(f.Statuses))
	}
	if len(f.Priorities) > 0 {
		w.add("t.priority IN (?)", stringsOf(f.Priorities))
	}
	if len(f.AssigneeIDs) > 0 {
		w.add("EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.id AND a.user_id IN (?))", f.AssigneeIDs)
	}
	if len(f.Tags) > 0 {
		w.add("EXISTS (SELECT 1 FROM task_tags g WHERE g.task_id = t.id AND g.tag IN (?))", f.Tags)
	}
	if f.DueFrom != nil {
		w.add("t.due_date >= ?", f.DueFrom.UTC())
	}
	if f.DueTo != nil {
		w.add("t.due_date <= ?", f.DueTo.UTC())
	}
	if f.CreatedFrom != nil {
		w.add("t.created_at >= ?", f.CreatedFrom.UTC())
	}
	if f.CreatedTo != nil {
		w.add("t.created_at <= ?", f.CreatedTo.UTC())
	}
	if f.Query != "" {
		w.add(`(t.title LIKE ? ESCAPE '\' OR t.description LIKE ? ESCAPE '\')`, likePattern(f.Query), likePattern(f.Query))
	}
	return w
}

// hydrate loads assignees and tags for a batch of tasks with one query each.
func (r *taskRepo) hydrate(ctx context.Context, rows []taskRow) ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(rows))
	if len(rows) == 0 {
		return tasks, nil
	}
	ids := make([]string, 0, len(rows))
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		tasks = append(tasks, row.model())
		ids = append(ids, row.ID)
		index[row.ID] = i
	}

	var links []struct {
		TaskID string `db:"task_id"`
		Value  string `db:"value"`
	}
	query, args, err := sqlx.In(`SELECT task_id, user_id AS value FROM task_assignees WHERE task_id IN (?) ORDER BY assigned_at, user_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build assignee query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &links, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load assignees: %w", err)
	}
	for _, l := range links {
		t := &tasks[index[l.TaskID]]
		t.Assignees = append(t.Assignees, l.Value)
	}

	links = links[:0]
	query, args, err = sqlx.In(`SELECT task_id, tag AS value FROM task_tags WHERE task_id IN (?) ORDER BY rowid`, ids)
	if err != nil {
		return nil, fmt.Errorf("build tag query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &links, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	for _, l := range links {
		t := &tasks[index[l.TaskID]]
		t.Tags = append(t.Tags, l.Value)
	}
	return tasks, nil
}

func (r *taskRepo) selectTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return r.hydrate(ctx, rows)
}

// FindByID fetches a task with its assignees, tags, comments, attachments and time entries.
func (r *taskRepo) FindByID(ctx context.Context, id string) (models.Task, error) {
	var row taskRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id); err != nil {
		return models.Task{}, notFound(err)
	}
	tasks, err := r.hydrate(ctx, []taskRow{row})
	if err != nil {
		return models.Task{}, err
	}
	t := tasks[0]

	var comments []struct {
		ID        string    `db:"id"`
		TaskID    string    `db:"task_id"`
		AuthorID  string    `db:"author_id"`
		Content   string    `db:"content"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &comments, `SELECT id, task_id, author_id, content, created_at FROM task_comments WHERE task_id = ? ORDER BY created_at, rowid`, id); err != nil {
		return models.Task{}, fmt.Errorf("load comments: %w", err)
	}
	t.Comments = make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		t.Comments = append(t.Comments, models.Comment{ID: c.ID, TaskID: c.TaskID, AuthorID: c.AuthorID, Content: c.Content, CreatedAt: c.CreatedAt.UTC()})
	}

	var attachments []struct {
		ID         string    `db:"id"`
		TaskID     string    `db:"task_id"`
		UploadedBy string    `db:"uploaded_by"`
		FileName   string    `db:"file_name"`
		URL        string    `db:"url"`
		Size       int64     `db:"size"`
		MimeType   string    `db:"mime_type"`
		CreatedAt  time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &attachments, `SELECT id, task_id, uploaded_by, file_name, url, size, mime_type, created_at FROM task_attachments WHERE task_id = ? ORDER BY created_at, rowid`, id); err != nil {
		return models.Task{}, fmt.Errorf("load attachments: %w", err)
	}
	t.Attachments = make([]models.Attachment, 0, len(attachments))
	for _, a := range attachments {
		t.Attachments = append(t.Attachments, models.Attachment{
			ID: a.ID, TaskID: a.TaskID, UploadedBy: a.UploadedBy, FileName: a.FileName,
			URL: a.URL, Size: a.Size, MimeType: a.MimeType, CreatedAt: a.CreatedAt.UTC(),
		})
	}

	var entries []struct {
		ID          string    `db:"id"`
		TaskID      string    `db:"task_id"`
		UserID      string    `db:"user_id"`
		Hours       float64   `db:"hours"`
		Description string    `db:"description"`
		Date        time.Time `db:"date"`
		CreatedAt   time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &entries, `SELECT id, task_id, user_id, hours, description, date, created_at FROM task_time_entries WHERE task_id = ? ORDER BY date, rowid`, id); err != nil {
		return models.Task{}, fmt.Errorf("load time entries: %w", err)
	}
	t.TimeEntries = make([]models.TimeEntry, 0, len(entries))
	for _, e := range entries {
		t.TimeEntries = append(t.TimeEntries, models.TimeEntry{
			ID: e.ID, TaskID: e.TaskID, UserID: e.UserID, Hours: e.Hours,
			Description: e.Description, Date: e.Date.UTC(), CreatedAt: e.CreatedAt.UTC(),
		})
	}
	return t, nil
}

// FindByParent lists the tasks of a column in position order.
func (r *taskRepo) FindByParent(ctx context.Context, columnID string, includeArchived bool) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.column_id = ?`
	if !includeArchived {
		query += ` AND t.is_archived = 0`
	}
	return r.selectTasks(ctx, query+` ORDER BY t.position`, columnID)
}

func (r *taskRepo) FindSubtasks(ctx context.Context, parentTaskID string) ([]models.Task, error) {
	return r.selectTasks(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.parent_task_id = ? ORDER BY t.created_at, t.id`, parentTaskID)
}

func (r *taskRepo) page(ctx context.Context, w *where, order string, p models.Pagination) (models.Page[models.Task], error) {
	rows, total, err := selectPage[taskRow](ctx, r.db, taskColumns, "tasks t", w, order, p)
	if err != nil {
		return models.Page[models.Task]{}, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := r.hydrate(ctx, rows)
	if err != nil {
		return models.Page[models.Task]{}, err
	}
	return newPage(tasks, total, p), nil
}

func (r *taskRepo) FindAll(ctx context.Context, f models.TaskFilters, s models.Sort, p models.Pagination) (models.Page[models.Task], error) {
	return r.page(ctx, taskWhere(f), orderBy(s, taskSort, taskFallbackOrder), p)
}

func (r *taskRepo) FindByAssignee(ctx context.Context, userID string, f models.TaskFilters, s models.Sort, p models.Pagination) (models.Page[models.Task], error) {
	w := taskWhere(f)
	w.add("EXISTS (SELECT 1 FROM task_assignees x WHERE x.task_id = t.id AND x.user_id = ?)", userID)
	return r.page(ctx, w, orderBy(s, taskSort, "t.due_date IS NULL, t.due_date, "+taskFallbackOrder), p)
}

// Search matches query against title, description and tags, newest first.
func (r *taskRepo) Search(ctx context.Context, query string, f models.TaskFilters, p models.Pagination) (models.Page[models.Task], error) {
	w := taskWhere(f)
	pattern := likePattern(query)
	w.add(`(t.title LIKE ? ESCAPE '\' OR t.description LIKE ? ESCAPE '\'
        OR EXISTS (SELECT 1 FROM task_tags g WHERE g.task_id = t.id AND g.tag LIKE ? ESCAPE '\'))`, pattern, pattern, pattern)
	return r.page(ctx, w, " ORDER BY t.updated_at DESC, t.id", p)
}

func (r *taskRepo) Create(ctx context.Context, t models.Task) (models.Task, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO tasks(id, title, description, status, priority, column_id, board_id, project_id,
        parent_task_id, reporter_id, position, due_date, completed_at, estimated_hours, completion_percentage,
        is_archived, archived_at, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.ColumnID, t.BoardID, t.ProjectID,
		nullString(t.ParentTaskID), t.ReporterID, t.Position, nullTime(t.DueDate), nullTime(t.CompletedAt),
		nullFloat(t.EstimatedHours), t.CompletionPercentage, t.IsArchived, nullTime(t.ArchivedAt),
		t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := r.replaceTags(ctx, t.ID, t.Tags); err != nil {
		return models.Task{}, err
	}
	if err := r.syncAssignees(ctx, t.ID, t.Assignees, t.CreatedAt); err != nil {
		return models.Task{}, err
	}
	return r.FindByID(ctx, t.ID)
}

// Update stores the mutable task fields together with its tags and assignees.
// Column and position changes go through UpdatePosition and UpdateLocation.
func (r *taskRepo) Update(ctx context.Context, t models.Task) (models.Task, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, parent_task_id = ?,
        due_date = ?, completed_at = ?, estimated_hours = ?, completion_percentage = ?, updated_at = ? WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), nullString(t.ParentTaskID), nullTime(t.DueDate),
		nullTime(t.CompletedAt), nullFloat(t.EstimatedHours), t.CompletionPercentage, t.UpdatedAt.UTC(), t.ID)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := affected(res, "update task"); err != nil {
		return models.Task{}, err
	}
	if err := r.replaceTags(ctx, t.ID, t.Tags); err != nil {
		return models.Task{}, err
	}
	if err := r.syncAssignees(ctx, t.ID, t.Assignees, t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	return r.FindByID(ctx, t.ID)
}

func (r *taskRepo) replaceTags(ctx context.Context, taskID string, tags []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO task_tags(task_id, tag) VALUES(?, ?)`, taskID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

// syncAssignees keeps the assigned_at of users that stay assigned.
func (r *taskRepo) syncAssignees(ctx context.Context, taskID string, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
			return fmt.Errorf("clear assignees: %w", err)
		}
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM task_assignees WHERE task_id = ? AND user_id NOT IN (?)`, taskID, userIDs)
	if err != nil {
		return fmt.Errorf("build assignee query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("prune assignees: %w", err)
	}
	for _, userID := range userIDs {
		if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id, user_id, assigned_at) VALUES(?, ?, ?)`, taskID, userID, at.UTC()); err != nil {
			return fmt.Errorf("insert assignee: %w", err)
		}
	}
	return nil
}

// Delete removes a task; assignees, tags, comments, attachments and time entries cascade.
func (r *taskRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return affected(res, "delete task")
}

func (r *taskRepo) Archive(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET is_archived = 1, archived_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	return affected(res, "archive task")
}

func (r *taskRepo) Restore(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET is_archived = 0, archived_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("restore task: %w", err)
	}
	return affected(res, "restore task")
}

func (r *taskRepo) UpdateLocation(ctx context.Context, id, boardID, projectID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET board_id = ?, project_id = ? WHERE id = ?`, boardID, projectID, id)
	if err != nil {
		return fmt.Errorf("update task location: %w", err)
	}
	return affected(res, "update task location")
}

func (r *taskRepo) CountByBoard(ctx context.Context, boardID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE board_id = ?`, boardID); err != nil {
		return 0, fmt.Errorf("count board tasks: %w", err)
	}
	return n, nil
}

func (r *taskRepo) CountActiveByParent(ctx context.Context, columnID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE column_id = ? AND is_archived = 0`, columnID); err != nil {
		return 0, fmt.Errorf("count column tasks: %w", err)
	}
	return n, nil
}

func (r *taskRepo) GetMaxPosition(ctx context.Context, columnID string) (int, error) {
	var position sql.NullInt64
	if err := r.db.GetContext(ctx, &position, `SELECT MAX(position) FROM tasks WHERE column_id = ?`, columnID); err != nil {
		return 0, fmt.Errorf("select position: %w", err)
	}
	if position.Valid {
		return int(position.Int64), nil
	}
	return -1, nil
}

func (r *taskRepo) CountByParent(ctx context.Context, columnID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE column_id = ?`, columnID); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func (r *taskRepo) ShiftPositions(ctx context.Context, columnID string, from, delta int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tasks SET position = position + ? WHERE column_id = ? AND position >= ?`, delta, columnID, from)
	if err != nil {
		return fmt.Errorf("shift task positions: %w", err)
	}
	return nil
}

func (r *taskRepo) UpdatePosition(ctx context.Context, id, columnID string, position int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET column_id = ?, position = ? WHERE id = ?`, columnID, position, id)
	if err != nil {
		return fmt.Errorf("update task position: %w", err)
	}
	return affected(res, "update task position")
}

func (r *taskRepo) AddAssignee(ctx context.Context, taskID, userID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO task_assignees(task_id, user_id, assigned_at) VALUES(?, ?, ?)`, taskID, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert assignee: %w", err)
	}
	return nil
}

func (r *taskRepo) RemoveAssignee(ctx context.Context, taskID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return fmt.Errorf("remove assignee: %w", err)
	}
	return affected(res, "remove assignee")
}

func (r *taskRepo) AddComment(ctx context.Context, c models.Comment) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO task_comments(id, task_id, author_id, content, created_at) VALUES(?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorID, c.Content, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *taskRepo) AddAttachment(ctx context.Context, a models.Attachment) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO task_attachments(id, task_id, uploaded_by, file_name, url, size, mime_type, created_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.UploadedBy, a.FileName, a.URL, a.Size, a.MimeType, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (r *taskRepo) AddTimeEntry(ctx context.Context, e models.TimeEntry) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO task_time_entries(id, task_id, user_id, hours, description, date, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.UserID, e.Hours, e.Description, e.Date.UTC(), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert time entry: %w", err)
	}
	return nil
}

var _ repository.TaskRepository = (*taskRepo)(nil)
