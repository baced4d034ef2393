package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"workboard/internal/apperr"
	"workboard/internal/models"
	"workboard/internal/repository"
	"workboard/internal/validation"
)

// UserService manages user accounts. Users may only change or delete their
// own account.
type UserService struct {
	*core
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a user. Emails are unique regardless of case.
func (s *UserService) Create(ctx context.Context, in models.CreateUserInput) (models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Users.ValidateCreate(in).Err(); err != nil {
		return models.User{}, err
	}

	now := s.now()
	u := models.User{
		ID:        validation.NewID(),
		Email:     in.Email,
		Name:      strings.TrimSpace(in.Name),
		AvatarURL: in.AvatarURL,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var created models.User
	err := s.tx(ctx, "create user", func(ctx context.Context, tx repository.Repositories) error {
		_, err := tx.Users.FindByEmail(ctx, u.Email)
		switch {
		case err == nil:
			return apperr.Conflict(apperr.CodeDuplicateEmail, "email %s is already registered", u.Email)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		created, err = tx.Users.Create(ctx, u)
		return err
	})
	if err != nil {
		return models.User{}, err
	}
	s.logger.InfoContext(ctx, "user created", slog.String("user_id", created.ID))
	return created, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (models.User, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.User{}, err
	}
	return s.loadUser(ctx, s.store.Repos(), id)
}

// GetByEmail looks a user up by email, ignoring case.
func (s *UserService) GetByEmail(ctx context.Context, email string) (models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return models.User{}, apperr.Validation(apperr.Field{Field: "email", Message: "is required", Code: string(validation.CodeRequired)})
	}
	u, err := s.store.Repos().Users.FindByEmail(ctx, email)
	if err != nil {
		return models.User{}, s.lookup(ctx, err, "user", email)
	}
	return u, nil
}

func (s *UserService) GetAll(ctx context.Context, f models.UserFilters, sort models.Sort, page models.Pagination) (models.Page[models.User], error) {
	if err := validation.Users.ValidateQuery(f, sort, page).Err(); err != nil {
		return models.Page[models.User]{}, err
	}
	out, err := s.store.Repos().Users.FindAll(ctx, f, sort, page)
	if err != nil {
		return models.Page[models.User]{}, s.storageErr(ctx, "list users", err)
	}
	return out, nil
}

func requireSelf(principalID, userID, action string) error {
	if principalID != userID {
		return apperr.PermissionDenied(action)
	}
	return nil
}

// Update changes the principal's own profile.
func (s *UserService) Update(ctx context.Context, principalID, id string, in models.UpdateUserInput) (models.User, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Users.ValidateUpdate(in)).Err(); err != nil {
		return models.User{}, err
	}
	if err := requireSelf(principalID, id, "update_user"); err != nil {
		return models.User{}, err
	}
	var updated models.User
	err := s.tx(ctx, "update user", func(ctx context.Context, tx repository.Repositories) error {
		u, err := s.loadUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			u.Name = strings.TrimSpace(*in.Name)
		}
		if in.AvatarURL != nil {
			u.AvatarURL = *in.AvatarURL
		}
		u.UpdatedAt = s.now()
		updated, err = tx.Users.Update(ctx, u)
		return err
	})
	if err != nil {
		return models.User{}, err
	}
	return updated, nil
}

// memberships returns the ids of every project userID belongs to.
func (s *UserService) memberships(ctx context.Context, repos repository.Repositories, userID string) ([]string, error) {
	var ids []string
	page := models.Pagination{Page: 1, Limit: 100}
	for {
		out, err := repos.Projects.FindAll(ctx, models.ProjectFilters{MemberID: userID, IncludeArchived: true}, models.Sort{}, page)
		if err != nil {
			return nil, err
		}
		for _, p := range out.Items {
			ids = append(ids, p.ID)
		}
		if len(out.Items) < page.Limit || len(ids) >= out.Total {
			return ids, nil
		}
		page.Page++
	}
}

// Delete removes the principal's own account. Owners must transfer or
// delete their projects first. Memberships and assignments go with the user.
func (s *UserService) Delete(ctx context.Context, principalID, id string) error {
	if err := validation.ValidateID(id).Err(); err != nil {
		return err
	}
	if err := requireSelf(principalID, id, "delete_user"); err != nil {
		return err
	}
	// Ownership and memberships are read in the deleting transaction, so a
	// project created for the user meanwhile is refused instead of orphaned.
	var projectIDs []string
	err := s.tx(ctx, "delete user", func(ctx context.Context, tx repository.Repositories) error {
		if _, err := s.loadUser(ctx, tx, id); err != nil {
			return err
		}
		owned, err := tx.Projects.FindByOwner(ctx, id)
		if err != nil {
			return err
		}
		if len(owned) > 0 {
			return apperr.Conflict(apperr.CodeOwnsProjects, "user %s still owns %d projects", id, len(owned))
		}
		if projectIDs, err = s.memberships(ctx, tx, id); err != nil {
			return err
		}
		return tx.Users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if len(projectIDs) > 0 {
		s.invalidateProject(ctx, projectIDs...)
	}
	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", id), slog.Int("memberships", len(projectIDs)))
	return nil
}

// GetProjects lists the projects the principal belongs to.
func (s *UserService) GetProjects(ctx context.Context, principalID, id string, f models.ProjectFilters, sort models.Sort, page models.Pagination) (models.Page[models.Project], error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Projects.ValidateQuery(f, sort, page)).Err(); err != nil {
		return models.Page[models.Project]{}, err
	}
	if err := requireSelf(principalID, id, "view_user_projects"); err != nil {
		return models.Page[models.Project]{}, err
	}
	f.MemberID = id
	out, err := s.store.Repos().Projects.FindAll(ctx, f, sort, page)
	if err != nil {
		return models.Page[models.Project]{}, s.storageErr(ctx, "list user projects", err)
	}
	return out, nil
}

// GetAssignedTasks lists the tasks assigned to the principal.
func (s *UserService) GetAssignedTasks(ctx context.Context, principalID, id string, f models.TaskFilters, sort models.Sort, page models.Pagination) (models.Page[models.Task], error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Tasks.ValidateQuery(f, sort, page)).Err(); err != nil {
		return models.Page[models.Task]{}, err
	}
	if err := requireSelf(principalID, id, "view_user_tasks"); err != nil {
		return models.Page[models.Task]{}, err
	}
	out, err := s.store.Repos().Tasks.FindByAssignee(ctx, id, f, sort, page)
	if err != nil {
		return models.Page[models.Task]{}, s.storageErr(ctx, "list assigned tasks", err)
	}
	return out, nil
}
