package validation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workboard/internal/apperr"
	"workboard/internal/models"
)

const validID = "5f3c8a52-8e0b-4f3e-9a63-2b6f4a1d7c10"

func ptr[T any](v T) *T { return &v }

func codes(r Result) map[string]Code {
	out := make(map[string]Code, len(r.Errors))
	for _, e := range r.Errors {
		out[e.Field] = e.Code
	}
	return out
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		code Code
	}{
		{name: "canonical uuid", id: validID},
		{name: "empty", id: "", code: CodeRequired},
		{name: "garbage", id: "not-an-id", code: CodeInvalidID},
		{name: "braced form", id: "{" + validID + "}", code: CodeInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateID(tt.id)
			if tt.code == "" {
				assert.True(t, r.IsValid)
				assert.Empty(t, r.Errors)
				return
			}
			require.False(t, r.IsValid)
			assert.Equal(t, tt.code, codes(r)["id"])
		})
	}
}

func TestProjectValidateCreate(t *testing.T) {
	tests := []struct {
		name  string
		input models.CreateProjectInput
		want  map[string]Code
	}{
		{
			name:  "valid",
			input: models.CreateProjectInput{Name: "Apollo", Color: "#2563eb"},
		},
		{
			name:  "missing name",
			input: models.CreateProjectInput{},
			want:  map[string]Code{"name": CodeRequired},
		},
		{
			name:  "blank name",
			input: models.CreateProjectInput{Name: "   "},
			want:  map[string]Code{"name": CodeRequired},
		},
		{
			name:  "name too long and bad color",
			input: models.CreateProjectInput{Name: string(make([]byte, 101)), Color: "blue"},
			want:  map[string]Code{"name": CodeTooLong, "color": CodeInvalidFmt},
		},
		{
			name: "bad settings enum",
			input: models.CreateProjectInput{
				Name:     "Apollo",
				Settings: &models.ProjectSettings{DefaultBoardVisibility: "everyone"},
			},
			want: map[string]Code{"settings.default_board_visibility": CodeInvalidEnum},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Projects.ValidateCreate(tt.input)
			if len(tt.want) == 0 {
				assert.True(t, r.IsValid, "unexpected errors: %v", r.Errors)
				return
			}
			assert.False(t, r.IsValid)
			assert.Equal(t, tt.want, codes(r))
		})
	}
}

func TestProjectValidateMember(t *testing.T) {
	r := Projects.ValidateMember(models.AddMemberInput{UserID: validID, Role: models.RoleOwner})
	assert.Equal(t, map[string]Code{"role": CodeInvalidEnum}, codes(r))

	r = Projects.ValidateMember(models.AddMemberInput{UserID: "u2", Role: models.RoleViewer})
	assert.Equal(t, map[string]Code{"user_id": CodeInvalidID}, codes(r))

	r = Projects.ValidateMember(models.AddMemberInput{UserID: validID, Role: models.RoleAdmin})
	assert.True(t, r.IsValid)
}

func TestTaskValidateCreate(t *testing.T) {
	base := func() models.CreateTaskInput {
		return models.CreateTaskInput{ColumnID: validID, Title: "Write launch notes"}
	}

	t.Run("minimal payload", func(t *testing.T) {
		assert.True(t, Tasks.ValidateCreate(base()).IsValid)
	})

	t.Run("estimated hours bounds", func(t *testing.T) {
		in := base()
		in.EstimatedHours = ptr(1000.5)
		assert.Equal(t, map[string]Code{"estimated_hours": CodeOutOfRange}, codes(Tasks.ValidateCreate(in)))

		in.EstimatedHours = ptr(-1.0)
		assert.Equal(t, map[string]Code{"estimated_hours": CodeOutOfRange}, codes(Tasks.ValidateCreate(in)))

		in.EstimatedHours = ptr(0.0)
		assert.True(t, Tasks.ValidateCreate(in).IsValid)
	})

	t.Run("nan is rejected", func(t *testing.T) {
		in := base()
		in.EstimatedHours = ptr(math.NaN())
		r := Tasks.ValidateCreate(in)
		assert.False(t, r.IsValid)
		assert.Contains(t, r.Errors, FieldError{Field: "estimated_hours", Message: "must be a finite number", Code: CodeNotFinite})
	})

	t.Run("enums and ids", func(t *testing.T) {
		in := base()
		in.Status = "started"
		in.Priority = "critical"
		in.Assignees = []string{validID, "nope"}
		r := Tasks.ValidateCreate(in)
		assert.Equal(t, CodeInvalidEnum, codes(r)["status"])
		assert.Equal(t, CodeInvalidEnum, codes(r)["priority"])
		assert.Equal(t, CodeInvalidID, codes(r)["assignees[1]"])
	})

	t.Run("duplicate assignees", func(t *testing.T) {
		in := base()
		in.Assignees = []string{validID, validID}
		assert.Equal(t, map[string]Code{"assignees": CodeDuplicate}, codes(Tasks.ValidateCreate(in)))
	})

	t.Run("negative position", func(t *testing.T) {
		in := base()
		in.Position = ptr(-1)
		assert.Equal(t, map[string]Code{"position": CodeOutOfRange}, codes(Tasks.ValidateCreate(in)))
	})

	t.Run("completion above 100", func(t *testing.T) {
		in := base()
		in.CompletionPercentage = ptr(101)
		assert.Equal(t, map[string]Code{"completion_percentage": CodeOutOfRange}, codes(Tasks.ValidateCreate(in)))
	})

	t.Run("full completion with an open status", func(t *testing.T) {
		in := base()
		in.Status = models.StatusTodo
		in.CompletionPercentage = ptr(100)
		assert.Equal(t, map[string]Code{"completion_percentage": CodeInvalid}, codes(Tasks.ValidateCreate(in)))

		in.Status = ""
		assert.True(t, Tasks.ValidateCreate(in).IsValid)
	})
}

func TestTaskValidateUpdate(t *testing.T) {
	r := Tasks.ValidateUpdate(models.UpdateTaskInput{Title: ptr("")})
	assert.Equal(t, map[string]Code{"title": CodeRequired}, codes(r))

	r = Tasks.ValidateUpdate(models.UpdateTaskInput{DueDate: ptr(time.Now()), ClearDueDate: true})
	assert.Equal(t, map[string]Code{"due_date": CodeInvalid}, codes(r))

	open := models.StatusInProgress
	r = Tasks.ValidateUpdate(models.UpdateTaskInput{Status: &open, CompletionPercentage: ptr(100)})
	assert.Equal(t, map[string]Code{"completion_percentage": CodeInvalid}, codes(r))

	done := models.StatusDone
	r = Tasks.ValidateUpdate(models.UpdateTaskInput{Status: &done, CompletionPercentage: ptr(100)})
	assert.True(t, r.IsValid)

	r = Tasks.ValidateUpdate(models.UpdateTaskInput{})
	assert.True(t, r.IsValid)
}

func TestTaskValidateQuery(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		f    models.TaskFilters
		s    models.Sort
		p    models.Pagination
		want map[string]Code
	}{
		{name: "defaults"},
		{name: "limit over 100", p: models.Pagination{Page: 1, Limit: 101}, want: map[string]Code{"pagination.limit": CodeOutOfRange}},
		{name: "negative page", p: models.Pagination{Page: -1}, want: map[string]Code{"pagination.page": CodeOutOfRange}},
		{name: "sort outside whitelist", s: models.Sort{Field: "password"}, want: map[string]Code{"sort.field": CodeInvalidEnum}},
		{name: "bad order", s: models.Sort{Field: "title", Order: "up"}, want: map[string]Code{"sort.order": CodeInvalidEnum}},
		{
			name: "inverted due range",
			f:    models.TaskFilters{DueFrom: ptr(now), DueTo: ptr(now.Add(-time.Hour))},
			want: map[string]Code{"due_from": CodeInvalidRange},
		},
		{
			name: "bad status filter",
			f:    models.TaskFilters{Statuses: []models.TaskStatus{models.StatusDone, "finished"}},
			want: map[string]Code{"statuses[1]": CodeInvalidEnum},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Tasks.ValidateQuery(tt.f, tt.s, tt.p)
			if len(tt.want) == 0 {
				assert.True(t, r.IsValid, "unexpected errors: %v", r.Errors)
				return
			}
			assert.Equal(t, tt.want, codes(r))
		})
	}
}

func TestTaskValidateSearch(t *testing.T) {
	assert.Equal(t, CodeRequired, codes(Tasks.ValidateSearch(" ", models.TaskFilters{}, models.Pagination{}))["query"])
	assert.Equal(t, CodeTooShort, codes(Tasks.ValidateSearch("a", models.TaskFilters{}, models.Pagination{}))["query"])
	assert.True(t, Tasks.ValidateSearch("launch", models.TaskFilters{}, models.Pagination{}).IsValid)
}

func TestMoveValidators(t *testing.T) {
	assert.Equal(t, CodeInvalid, codes(Boards.ValidateMove(models.MoveInput{ParentID: validID}))["parent_id"])
	assert.Equal(t, CodeOutOfRange, codes(Columns.ValidateMove(models.MoveInput{Position: -2}))["position"])
	assert.True(t, Tasks.ValidateMove(models.MoveInput{ParentID: validID, Position: 3}).IsValid)
}

func TestResultErr(t *testing.T) {
	assert.NoError(t, Valid().Err())

	r := Users.ValidateCreate(models.CreateUserInput{Email: "nope", Name: "Ada"})
	err := r.Err()
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []apperr.Field{{Field: "email", Message: "must be a valid email", Code: string(CodeInvalidFmt)}}, appErr.Fields)
}

func TestMerge(t *testing.T) {
	a := Valid()
	b := Valid()
	b.Add("name", CodeRequired, "is required")

	m := Merge(a, b)
	assert.False(t, m.IsValid)
	assert.Len(t, m.Errors, 1)
	assert.True(t, Merge(a, Valid()).IsValid)
}
