package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"workboard/internal/access"
	"workboard/internal/apperr"
	"workboard/internal/models"
	"workboard/internal/position"
	"workboard/internal/repository"
	"workboard/internal/validation"
)

// maxTaskDepth bounds the ancestor walk used to detect parent cycles.
const maxTaskDepth = 64

// TaskService manages tasks and their comments, attachments, time entries
// and assignees.
type TaskService struct {
	*core
}

// taskScope is a task together with the board and project it lives in.
type taskScope struct {
	task    models.Task
	board   models.Board
	project models.Project
}

// viewable loads a task the principal may read. Principals that cannot see
// the board get NotFound for the task itself.
func (s *TaskService) viewable(ctx context.Context, principalID, id string) (models.Task, error) {
	t, err := s.loadTask(ctx, s.store.Repos(), id)
	if err != nil {
		return models.Task{}, err
	}
	b, p, err := s.boardScope(ctx, t.BoardID)
	if err != nil {
		return models.Task{}, err
	}
	if err := access.RequireBoard(p, b, principalID, access.ActionView); err != nil {
		if apperr.IsNotFound(err) {
			return models.Task{}, apperr.NotFound("task", id)
		}
		return models.Task{}, err
	}
	return t, nil
}

// editable loads a task with its board and project from repos and runs the
// permission and parent archive guards. The task's own archive state is
// left to the caller.
func (s *TaskService) editable(ctx context.Context, repos repository.Repositories, principalID, id string) (taskScope, error) {
	t, err := s.loadTask(ctx, repos, id)
	if err != nil {
		return taskScope{}, err
	}
	b, p, err := s.boardScopeIn(ctx, repos, t.BoardID)
	if err != nil {
		return taskScope{}, err
	}
	if err := access.RequireBoard(p, b, principalID, access.ActionEditTasks); err != nil {
		if apperr.IsNotFound(err) {
			return taskScope{}, apperr.NotFound("task", id)
		}
		return taskScope{}, err
	}
	if err := writableBoard(p, b); err != nil {
		return taskScope{}, err
	}
	return taskScope{task: t, board: b, project: p}, nil
}

// writable is editable for tasks that must not be archived.
func (s *TaskService) writable(ctx context.Context, repos repository.Repositories, principalID, id string) (taskScope, error) {
	sc, err := s.editable(ctx, repos, principalID, id)
	if err != nil {
		return taskScope{}, err
	}
	if sc.task.IsArchived {
		return taskScope{}, archivedConflict("task", id)
	}
	return sc, nil
}

// guarded runs fn in one transaction after writable has re-read the task,
// and returns the task as stored once fn is done.
func (s *TaskService) guarded(ctx context.Context, op, principalID, id string, fn func(ctx context.Context, tx repository.Repositories, sc taskScope) error) (models.Task, error) {
	var out models.Task
	err := s.tx(ctx, op, func(ctx context.Context, tx repository.Repositories) error {
		sc, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, sc); err != nil {
			return err
		}
		out, err = s.loadTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return out, nil
}

// settleCompletion keeps status, completion percentage and completedAt
// consistent after a change. Reaching done stamps completedAt and sets the
// percentage to 100, and leaving done clears completedAt. An explicit 100%
// completes a task that is not done; input pairing 100% with another
// explicit status is refused by validation before this runs.
func settleCompletion(t *models.Task, prev models.TaskStatus, percentSet bool, now time.Time) {
	switch {
	case t.Status == models.StatusDone && prev != models.StatusDone:
		t.CompletionPercentage = 100
		t.CompletedAt = &now
	case prev == models.StatusDone && t.Status != models.StatusDone:
		t.CompletedAt = nil
	case percentSet && t.CompletionPercentage == 100 && t.Status != models.StatusDone:
		t.Status = models.StatusDone
		t.CompletedAt = &now
	}
}

// normalizeTags trims tags and drops blanks and duplicates, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// checkParent verifies that parentID can become the parent of taskID.
func (s *TaskService) checkParent(ctx context.Context, repos repository.Repositories, taskID, parentID, projectID string) error {
	if parentID == taskID {
		return apperr.Conflict(apperr.CodeSelfDependency, "task %s cannot be its own parent", taskID)
	}
	parent, err := s.loadTask(ctx, repos, parentID)
	if err != nil {
		return err
	}
	if parent.ProjectID != projectID {
		return apperr.Conflict(apperr.CodeCrossProject, "parent task %s belongs to another project", parentID)
	}
	if parent.IsArchived {
		return apperr.Conflict(apperr.CodeParentArchived, "parent task %s is archived", parentID)
	}

	cur := parent
	for depth := 0; cur.ParentTaskID != nil && depth < maxTaskDepth; depth++ {
		if *cur.ParentTaskID == taskID {
			return apperr.Conflict(apperr.CodeSelfDependency, "task %s would become its own ancestor", taskID)
		}
		if cur, err = s.loadTask(ctx, repos, *cur.ParentTaskID); err != nil {
			return err
		}
	}
	return nil
}

func checkWIP(ctx context.Context, tx repository.Repositories, col models.Column) error {
	if col.WIPLimit == nil {
		return nil
	}
	n, err := tx.Tasks.CountActiveByParent(ctx, col.ID)
	if err != nil {
		return err
	}
	if n >= *col.WIPLimit {
		return apperr.Conflict(apperr.CodeWIPLimitReached, "column %s has reached its WIP limit of %d", col.ID, *col.WIPLimit)
	}
	return nil
}

func checkAssignees(p models.Project, userIDs []string) error {
	for _, id := range userIDs {
		if !access.IsMember(p, id) {
			return apperr.Conflict(apperr.CodeNotAMember, "user %s is not a member of project %s", id, p.ID)
		}
	}
	return nil
}

// Create adds a task to a column. The board and project are derived from
// the column, never taken from the caller.
func (s *TaskService) Create(ctx context.Context, principalID string, in models.CreateTaskInput) (models.Task, error) {
	if err := validation.Tasks.ValidateCreate(in).Err(); err != nil {
		return models.Task{}, err
	}
	col, err := s.loadColumn(ctx, s.store.Repos(), in.ColumnID)
	if err != nil {
		return models.Task{}, err
	}

	unlock := s.positions.Lock(position.Key(position.KindColumnTasks, col.ID))
	defer unlock()

	var created models.Task
	err = s.tx(ctx, "create task", func(ctx context.Context, tx repository.Repositories) error {
		col, b, p, err := s.columnScopeIn(ctx, tx, in.ColumnID)
		if err != nil {
			return err
		}
		if err := guardBoard(p, b, principalID, access.ActionEditTasks); err != nil {
			return err
		}
		if err := checkAssignees(p, in.Assignees); err != nil {
			return err
		}

		t := newTask(in, col, b, p, principalID, s.now())
		if t.ParentTaskID != nil {
			if err := s.checkParent(ctx, tx, t.ID, *t.ParentTaskID, p.ID); err != nil {
				return err
			}
		}
		if err := checkWIP(ctx, tx, col); err != nil {
			return err
		}
		if t.Position, err = s.positions.Insert(ctx, tx.Tasks, col.ID, in.Position); err != nil {
			return err
		}
		created, err = tx.Tasks.Create(ctx, t)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.InfoContext(ctx, "task created", slog.String("task_id", created.ID), slog.String("column_id", created.ColumnID), slog.Int("position", created.Position))
	return created, nil
}

// newTask builds a task for col from the create input, applying the project
// and column defaults.
func newTask(in models.CreateTaskInput, col models.Column, b models.Board, p models.Project, reporterID string, now time.Time) models.Task {
	t := models.Task{
		ID:             validation.NewID(),
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Status:         in.Status,
		Priority:       in.Priority,
		ColumnID:       col.ID,
		BoardID:        b.ID,
		ProjectID:      p.ID,
		ReporterID:     reporterID,
		Assignees:      append([]string{}, in.Assignees...),
		DueDate:        in.DueDate,
		Tags:           normalizeTags(in.Tags),
		EstimatedHours: in.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.ParentTaskID != nil && *in.ParentTaskID != "" {
		parent := *in.ParentTaskID
		t.ParentTaskID = &parent
	}
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = p.Settings.DefaultTaskPriority
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if in.CompletionPercentage != nil {
		t.CompletionPercentage = *in.CompletionPercentage
	}
	if col.Settings.IsDoneColumn {
		t.Status = models.StatusDone
	}
	settleCompletion(&t, "", in.CompletionPercentage != nil, now)
	return t
}

// GetByID returns a task with its comments, attachments and time entries.
func (s *TaskService) GetByID(ctx context.Context, principalID, id string) (models.Task, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Task{}, err
	}
	return s.viewable(ctx, principalID, id)
}

// GetByParentID lists the tasks of a column in position order.
func (s *TaskService) GetByParentID(ctx context.Context, principalID, columnID string, includeArchived bool) ([]models.Task, error) {
	if err := validation.ValidateRef("column_id", columnID).Err(); err != nil {
		return nil, err
	}
	_, b, p, err := s.columnScope(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireBoard(p, b, principalID, access.ActionView); err != nil {
		return nil, err
	}
	tasks, err := s.store.Repos().Tasks.FindByParent(ctx, columnID, includeArchived)
	if err != nil {
		return nil, s.storageErr(ctx, "list tasks", err)
	}
	return tasks, nil
}

// scope checks that the principal may read the narrowest container named
// by the filters. Listings must name a project, board or column.
func (s *TaskService) scope(ctx context.Context, principalID string, f models.TaskFilters) error {
	switch {
	case f.ColumnID != "":
		_, b, p, err := s.columnScope(ctx, f.ColumnID)
		if err != nil {
			return err
		}
		return access.RequireBoard(p, b, principalID, access.ActionView)
	case f.BoardID != "":
		b, p, err := s.boardScope(ctx, f.BoardID)
		if err != nil {
			return err
		}
		return access.RequireBoard(p, b, principalID, access.ActionView)
	case f.ProjectID != "":
		p, err := s.LookupProject(ctx, f.ProjectID)
		if err != nil {
			return err
		}
		return access.Require(p, principalID, access.ActionView)
	}
	return apperr.Validation(apperr.Field{Field: "project_id", Message: "is required when no board or column is given", Code: string(validation.CodeRequired)})
}

// GetAll lists tasks of a project, board or column.
func (s *TaskService) GetAll(ctx context.Context, principalID string, f models.TaskFilters, sort models.Sort, page models.Pagination) (models.Page[models.Task], error) {
	if err := validation.Tasks.ValidateQuery(f, sort, page).Err(); err != nil {
		return models.Page[models.Task]{}, err
	}
	if err := s.scope(ctx, principalID, f); err != nil {
		return models.Page[models.Task]{}, err
	}
	out, err := s.store.Repos().Tasks.FindAll(ctx, f, sort, page)
	if err != nil {
		return models.Page[models.Task]{}, s.storageErr(ctx, "list tasks", err)
	}
	return out, nil
}

// Search matches title, description and tags inside a project, board or column.
func (s *TaskService) Search(ctx context.Context, principalID, query string, f models.TaskFilters, page models.Pagination) (models.Page[models.Task], error) {
	if err := validation.Tasks.ValidateSearch(query, f, page).Err(); err != nil {
		return models.Page[models.Task]{}, err
	}
	if err := s.scope(ctx, principalID, f); err != nil {
		return models.Page[models.Task]{}, err
	}
	out, err := s.store.Repos().Tasks.Search(ctx, strings.TrimSpace(query), f, page)
	if err != nil {
		return models.Page[models.Task]{}, s.storageErr(ctx, "search tasks", err)
	}
	return out, nil
}

// GetSubtasks lists the direct subtasks of a task.
func (s *TaskService) GetSubtasks(ctx context.Context, principalID, id string) ([]models.Task, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return nil, err
	}
	if _, err := s.viewable(ctx, principalID, id); err != nil {
		return nil, err
	}
	tasks, err := s.store.Repos().Tasks.FindSubtasks(ctx, id)
	if err != nil {
		return nil, s.storageErr(ctx, "list subtasks", err)
	}
	return tasks, nil
}

// GetByAssignee lists the tasks assigned to userID. Principals looking at
// someone else's tasks must scope the query to a container they can read.
func (s *TaskService) GetByAssignee(ctx context.Context, principalID, userID string, f models.TaskFilters, sort models.Sort, page models.Pagination) (models.Page[models.Task], error) {
	if err := validation.Merge(validation.ValidateRef("user_id", userID), validation.Tasks.ValidateQuery(f, sort, page)).Err(); err != nil {
		return models.Page[models.Task]{}, err
	}
	if principalID != userID {
		if err := s.scope(ctx, principalID, f); err != nil {
			return models.Page[models.Task]{}, err
		}
	}
	out, err := s.store.Repos().Tasks.FindByAssignee(ctx, userID, f, sort, page)
	if err != nil {
		return models.Page[models.Task]{}, s.storageErr(ctx, "list assigned tasks", err)
	}
	return out, nil
}

// mutate re-reads and guards the task inside a transaction, applies fn and
// stores the result, so concurrent updates of different fields do not
// overwrite each other.
func (s *TaskService) mutate(ctx context.Context, op, principalID, id string, fn func(ctx context.Context, tx repository.Repositories, t *models.Task) error) (models.Task, error) {
	return s.guarded(ctx, op, principalID, id, func(ctx context.Context, tx repository.Repositories, sc taskScope) error {
		t := sc.task
		if err := fn(ctx, tx, &t); err != nil {
			return err
		}
		t.UpdatedAt = s.now()
		_, err := tx.Tasks.Update(ctx, t)
		return err
	})
}

// Update changes task fields. Column and position changes go through
// UpdatePosition.
func (s *TaskService) Update(ctx context.Context, principalID, id string, in models.UpdateTaskInput) (models.Task, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Tasks.ValidateUpdate(in)).Err(); err != nil {
		return models.Task{}, err
	}
	return s.mutate(ctx, "update task", principalID, id, func(ctx context.Context, tx repository.Repositories, t *models.Task) error {
		prev := t.Status
		if in.Title != nil {
			t.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Status != nil && *in.Status != "" {
			t.Status = *in.Status
		}
		if in.Priority != nil && *in.Priority != "" {
			t.Priority = *in.Priority
		}
		switch {
		case in.ClearDueDate:
			t.DueDate = nil
		case in.DueDate != nil:
			due := in.DueDate.UTC()
			t.DueDate = &due
		}
		if in.Tags != nil {
			t.Tags = normalizeTags(*in.Tags)
		}
		if in.EstimatedHours != nil {
			est := *in.EstimatedHours
			t.EstimatedHours = &est
		}
		if in.CompletionPercentage != nil {
			t.CompletionPercentage = *in.CompletionPercentage
		}
		if in.ParentTaskID != nil {
			if *in.ParentTaskID == "" {
				t.ParentTaskID = nil
			} else {
				if err := s.checkParent(ctx, tx, t.ID, *in.ParentTaskID, t.ProjectID); err != nil {
					return err
				}
				parent := *in.ParentTaskID
				t.ParentTaskID = &parent
			}
		}
		settleCompletion(t, prev, in.CompletionPercentage != nil, s.now())
		return nil
	})
}

// UpdateStatus changes the status of a task.
func (s *TaskService) UpdateStatus(ctx context.Context, principalID, id string, status models.TaskStatus) (models.Task, error) {
	if err := validation.Tasks.ValidateStatus(status).Err(); err != nil {
		return models.Task{}, err
	}
	return s.Update(ctx, principalID, id, models.UpdateTaskInput{Status: &status})
}

// UpdatePriority changes the priority of a task.
func (s *TaskService) UpdatePriority(ctx context.Context, principalID, id string, priority models.Priority) (models.Task, error) {
	if err := validation.Tasks.ValidatePriority(priority).Err(); err != nil {
		return models.Task{}, err
	}
	return s.Update(ctx, principalID, id, models.UpdateTaskInput{Priority: &priority})
}

// UpdatePosition moves a task within its column or into another column of
// the same project, re-stamping its board and project. Moving into a done
// column completes the task.
func (s *TaskService) UpdatePosition(ctx context.Context, principalID, id string, in models.MoveInput) (models.Task, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Tasks.ValidateMove(in)).Err(); err != nil {
		return models.Task{}, err
	}
	repos := s.store.Repos()
	t, err := s.loadTask(ctx, repos, id)
	if err != nil {
		return models.Task{}, err
	}
	target := t.ColumnID
	if in.ParentID != "" {
		target = in.ParentID
	}
	if _, err := s.loadColumn(ctx, repos, target); err != nil {
		return models.Task{}, err
	}

	unlock := s.positions.Lock(position.Key(position.KindColumnTasks, t.ColumnID), position.Key(position.KindColumnTasks, target))
	defer unlock()

	var moved models.Task
	err = s.tx(ctx, "move task", func(ctx context.Context, tx repository.Repositories) error {
		sc, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		current := sc.task
		toCol, toBoard, toProject, err := s.columnScopeIn(ctx, tx, target)
		if err != nil {
			return err
		}
		if toBoard.ID != sc.board.ID {
			if toProject.ID != sc.project.ID {
				return apperr.Conflict(apperr.CodeCrossProject, "column %s belongs to another project", target)
			}
			if err := guardBoard(toProject, toBoard, principalID, access.ActionEditTasks); err != nil {
				return err
			}
		}

		changesColumn := current.ColumnID != toCol.ID
		if changesColumn {
			if err := checkWIP(ctx, tx, toCol); err != nil {
				return err
			}
		}
		err = s.positions.Move(ctx, tx.Tasks, position.Move{
			ID:           id,
			FromParent:   current.ColumnID,
			FromPosition: current.Position,
			ToParent:     toCol.ID,
			ToPosition:   in.Position,
		})
		if err != nil {
			return err
		}
		if current.BoardID != toCol.BoardID || current.ProjectID != toProject.ID {
			if err := tx.Tasks.UpdateLocation(ctx, id, toCol.BoardID, toProject.ID); err != nil {
				return err
			}
		}
		if changesColumn && toCol.Settings.IsDoneColumn && current.Status != models.StatusDone {
			current, err = s.loadTask(ctx, tx, id)
			if err != nil {
				return err
			}
			now := s.now()
			prev := current.Status
			current.Status = models.StatusDone
			settleCompletion(&current, prev, false, now)
			current.UpdatedAt = now
			if _, err := tx.Tasks.Update(ctx, current); err != nil {
				return err
			}
		}
		moved, err = s.loadTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.InfoContext(ctx, "task moved", slog.String("task_id", id), slog.String("column_id", moved.ColumnID), slog.Int("position", moved.Position))
	return moved, nil
}

// Delete removes a task without subtasks and closes the gap in its column.
func (s *TaskService) Delete(ctx context.Context, principalID, id string) error {
	if err := validation.ValidateID(id).Err(); err != nil {
		return err
	}
	t, err := s.loadTask(ctx, s.store.Repos(), id)
	if err != nil {
		return err
	}

	unlock := s.positions.Lock(position.Key(position.KindColumnTasks, t.ColumnID))
	defer unlock()

	err = s.tx(ctx, "delete task", func(ctx context.Context, tx repository.Repositories) error {
		sc, err := s.writable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		subtasks, err := tx.Tasks.FindSubtasks(ctx, id)
		if err != nil {
			return err
		}
		if len(subtasks) > 0 {
			return apperr.Conflict(apperr.CodeHasSubtasks, "task %s still has %d subtasks; delete them first", id, len(subtasks))
		}
		if err := tx.Tasks.Delete(ctx, id); err != nil {
			return err
		}
		return s.positions.Remove(ctx, tx.Tasks, sc.task.ColumnID, sc.task.Position)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "task deleted", slog.String("task_id", id), slog.String("column_id", t.ColumnID))
	return nil
}

// Archive soft-deletes a task. It keeps its position in the column. Of two
// concurrent archives the second sees the first and gets ARCHIVED.
func (s *TaskService) Archive(ctx context.Context, principalID, id string) (models.Task, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Task{}, err
	}
	archived, err := s.guarded(ctx, "archive task", principalID, id, func(ctx context.Context, tx repository.Repositories, _ taskScope) error {
		return tx.Tasks.Archive(ctx, id, s.now())
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.InfoContext(ctx, "task archived", slog.String("task_id", id))
	return archived, nil
}

// Restore reverses Archive. The column's WIP limit applies again.
func (s *TaskService) Restore(ctx context.Context, principalID, id string) (models.Task, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Task{}, err
	}
	t, err := s.loadTask(ctx, s.store.Repos(), id)
	if err != nil {
		return models.Task{}, err
	}

	unlock := s.positions.Lock(position.Key(position.KindColumnTasks, t.ColumnID))
	defer unlock()

	var restored models.Task
	err = s.tx(ctx, "restore task", func(ctx context.Context, tx repository.Repositories) error {
		sc, err := s.editable(ctx, tx, principalID, id)
		if err != nil {
			return err
		}
		if !sc.task.IsArchived {
			return notArchivedConflict("task", id)
		}
		col, err := s.loadColumn(ctx, tx, sc.task.ColumnID)
		if err != nil {
			return err
		}
		if err := checkWIP(ctx, tx, col); err != nil {
			return err
		}
		if err := tx.Tasks.Restore(ctx, id); err != nil {
			return err
		}
		restored, err = s.loadTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.InfoContext(ctx, "task restored", slog.String("task_id", id))
	return restored, nil
}

// AssignUser adds a project member to the task's assignees.
func (s *TaskService) AssignUser(ctx context.Context, principalID, taskID, userID string) (models.Task, error) {
	if err := validation.Merge(validation.ValidateRef("task_id", taskID), validation.ValidateRef("user_id", userID)).Err(); err != nil {
		return models.Task{}, err
	}
	return s.guarded(ctx, "assign user", principalID, taskID, func(ctx context.Context, tx repository.Repositories, sc taskScope) error {
		if _, err := s.loadUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := checkAssignees(sc.project, []string{userID}); err != nil {
			return err
		}
		if sc.task.HasAssignee(userID) {
			return apperr.Conflict(apperr.CodeAlreadyAssigned, "user %s is already assigned to task %s", userID, taskID)
		}
		return tx.Tasks.AddAssignee(ctx, taskID, userID)
	})
}

// UnassignUser removes a user from the task's assignees.
func (s *TaskService) UnassignUser(ctx context.Context, principalID, taskID, userID string) (models.Task, error) {
	if err := validation.Merge(validation.ValidateRef("task_id", taskID), validation.ValidateRef("user_id", userID)).Err(); err != nil {
		return models.Task{}, err
	}
	return s.guarded(ctx, "unassign user", principalID, taskID, func(ctx context.Context, tx repository.Repositories, sc taskScope) error {
		if !sc.task.HasAssignee(userID) {
			return apperr.Conflict(apperr.CodeNotAssigned, "user %s is not assigned to task %s", userID, taskID)
		}
		return tx.Tasks.RemoveAssignee(ctx, taskID, userID)
	})
}

// AddComment appends a comment by the principal.
func (s *TaskService) AddComment(ctx context.Context, principalID, taskID string, in models.CommentInput) (models.Task, error) {
	if err := validation.Merge(validation.ValidateRef("task_id", taskID), validation.Tasks.ValidateComment(in)).Err(); err != nil {
		return models.Task{}, err
	}
	return s.guarded(ctx, "add comment", principalID, taskID, func(ctx context.Context, tx repository.Repositories, sc taskScope) error {
		if !sc.board.Settings.AllowComments {
			return apperr.Conflict(apperr.CodeFeatureDisabled, "comments are disabled on board %s", sc.board.ID)
		}
		return tx.Tasks.AddComment(ctx, models.Comment{
			ID:        validation.NewID(),
			TaskID:    taskID,
			AuthorID:  principalID,
			Content:   in.Content,
			CreatedAt: s.now(),
		})
	})
}

// AddAttachment records a file reference uploaded by the principal.
func (s *TaskService) AddAttachment(ctx context.Context, principalID, taskID string, in models.AttachmentInput) (models.Task, error) {
	if err := validation.Merge(validation.ValidateRef("task_id", taskID), validation.Tasks.ValidateAttachment(in)).Err(); err != nil {
		return models.Task{}, err
	}
	return s.guarded(ctx, "add attachment", principalID, taskID, func(ctx context.Context, tx repository.Repositories, sc taskScope) error {
		if !sc.board.Settings.AllowAttachments {
			return apperr.Conflict(apperr.CodeFeatureDisabled, "attachments are disabled on board %s", sc.board.ID)
		}
		return tx.Tasks.AddAttachment(ctx, models.Attachment{
			ID:         validation.NewID(),
			TaskID:     taskID,
			UploadedBy: principalID,
			FileName:   in.FileName,
			URL:        in.URL,
			Size:       in.Size,
			MimeType:   in.MimeType,
			CreatedAt:  s.now(),
		})
	})
}

// AddTimeEntry logs hours by the principal; the task's actual hours are the
// sum of its entries.
func (s *TaskService) AddTimeEntry(ctx context.Context, principalID, taskID string, in models.TimeEntryInput) (models.Task, error) {
	if err := validation.Merge(validation.ValidateRef("task_id", taskID), validation.Tasks.ValidateTimeEntry(in)).Err(); err != nil {
		return models.Task{}, err
	}
	return s.guarded(ctx, "add time entry", principalID, taskID, func(ctx context.Context, tx repository.Repositories, _ taskScope) error {
		return tx.Tasks.AddTimeEntry(ctx, models.TimeEntry{
			ID:          validation.NewID(),
			TaskID:      taskID,
			UserID:      principalID,
			Hours:       in.Hours,
			Description: in.Description,
			Date:        in.Date.UTC(),
			CreatedAt:   s.now(),
		})
	})
}
