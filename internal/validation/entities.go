package validation

import (
	"strings"

	"workboard/internal/models"
)

// ProjectValidator checks project payloads.
type ProjectValidator struct{}

// BoardValidator checks board payloads.
type BoardValidator struct{}

// ColumnValidator checks column payloads.
type ColumnValidator struct{}

// TaskValidator checks task payloads.
type TaskValidator struct{}

// UserValidator checks user payloads.
type UserValidator struct{}

var (
	Projects ProjectValidator
	Boards   BoardValidator
	Columns  ColumnValidator
	Tasks    TaskValidator
	Users    UserValidator
)

func (ProjectValidator) ValidateCreate(in models.CreateProjectInput) Result {
	return check(in)
}

func (ProjectValidator) ValidateUpdate(in models.UpdateProjectInput) Result {
	return check(in)
}

func (ProjectValidator) ValidateMember(in models.AddMemberInput) Result {
	return check(in)
}

func (ProjectValidator) ValidateRoleChange(in models.UpdateMemberRoleInput) Result {
	return check(in)
}

func (ProjectValidator) ValidateQuery(f models.ProjectFilters, s models.Sort, p models.Pagination) Result {
	return Merge(check(f), validateSort(s, models.SortFields.Projects), validatePagination(p))
}

func (BoardValidator) ValidateCreate(in models.CreateBoardInput) Result {
	return check(in)
}

func (BoardValidator) ValidateUpdate(in models.UpdateBoardInput) Result {
	return check(in)
}

// ValidateMove checks a board reorder. Boards never change project, so a
// parent id is rejected.
func (BoardValidator) ValidateMove(in models.MoveInput) Result {
	r := check(in)
	if in.ParentID != "" {
		r.Add("parent_id", CodeInvalid, "boards cannot change project")
	}
	return r
}

func (BoardValidator) ValidateDuplicate(in models.DuplicateBoardInput) Result {
	return check(in)
}

func (BoardValidator) ValidateQuery(f models.BoardFilters, s models.Sort, p models.Pagination) Result {
	return Merge(check(f), validateSort(s, models.SortFields.Boards), validatePagination(p))
}

func (ColumnValidator) ValidateCreate(in models.CreateColumnInput) Result {
	return check(in)
}

func (ColumnValidator) ValidateUpdate(in models.UpdateColumnInput) Result {
	r := check(in)
	if in.ClearWIPLimit && in.WIPLimit != nil {
		r.Add("wip_limit", CodeInvalid, "cannot be set and cleared at once")
	}
	return r
}

// ValidateMove checks a column reorder; columns never change board.
func (ColumnValidator) ValidateMove(in models.MoveInput) Result {
	r := check(in)
	if in.ParentID != "" {
		r.Add("parent_id", CodeInvalid, "columns cannot change board")
	}
	return r
}

func (TaskValidator) ValidateCreate(in models.CreateTaskInput) Result {
	r := check(in)
	if in.Status != "" {
		completionMatchesStatus(&r, in.Status, in.CompletionPercentage)
	}
	return r
}

func (TaskValidator) ValidateUpdate(in models.UpdateTaskInput) Result {
	r := check(in)
	if in.ClearDueDate && in.DueDate != nil {
		r.Add("due_date", CodeInvalid, "cannot be set and cleared at once")
	}
	if in.Status != nil && *in.Status != "" {
		completionMatchesStatus(&r, *in.Status, in.CompletionPercentage)
	}
	return r
}

// completionMatchesStatus rejects a full completion sent together with an
// explicit status other than done. Without a status, 100% completes the task.
func completionMatchesStatus(r *Result, status models.TaskStatus, percent *int) {
	if percent != nil && *percent == 100 && status != models.StatusDone {
		r.Add("completion_percentage", CodeInvalid, "100 requires status done")
	}
}

func (TaskValidator) ValidateMove(in models.MoveInput) Result {
	return check(in)
}

func (TaskValidator) ValidateComment(in models.CommentInput) Result {
	return check(in)
}

func (TaskValidator) ValidateAttachment(in models.AttachmentInput) Result {
	return check(in)
}

func (TaskValidator) ValidateTimeEntry(in models.TimeEntryInput) Result {
	return check(in)
}

func (TaskValidator) ValidateStatus(status models.TaskStatus) Result {
	r := Valid()
	if _, ok := models.ValidTaskStatuses[status]; !ok {
		r.Add("status", CodeInvalidEnum, "must be one of [todo, in_progress, review, done, blocked]")
	}
	return r
}

func (TaskValidator) ValidatePriority(priority models.Priority) Result {
	r := Valid()
	if priority.Rank() < 0 {
		r.Add("priority", CodeInvalidEnum, "must be one of [low, medium, high, urgent]")
	}
	return r
}

func (TaskValidator) ValidateQuery(f models.TaskFilters, s models.Sort, p models.Pagination) Result {
	r := Merge(check(f), validateSort(s, models.SortFields.Tasks), validatePagination(p))
	if f.DueFrom != nil && f.DueTo != nil && f.DueFrom.After(*f.DueTo) {
		r.Add("due_from", CodeInvalidRange, "must not be after due_to")
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		r.Add("created_from", CodeInvalidRange, "must not be after created_to")
	}
	return r
}

// ValidateSearch checks a free-text task search.
func (t TaskValidator) ValidateSearch(query string, f models.TaskFilters, p models.Pagination) Result {
	r := t.ValidateQuery(f, models.Sort{}, p)
	q := strings.TrimSpace(query)
	switch {
	case q == "":
		r.Add("query", CodeRequired, "is required")
	case len(q) < 2:
		r.Add("query", CodeTooShort, "must be at least 2 characters")
	case len(q) > 200:
		r.Add("query", CodeTooLong, "must be at most 200 characters")
	}
	return r
}

func (UserValidator) ValidateCreate(in models.CreateUserInput) Result {
	return check(in)
}

func (UserValidator) ValidateUpdate(in models.UpdateUserInput) Result {
	return check(in)
}

func (UserValidator) ValidateQuery(f models.UserFilters, s models.Sort, p models.Pagination) Result {
	return Merge(check(f), validateSort(s, models.SortFields.Users), validatePagination(p))
}
