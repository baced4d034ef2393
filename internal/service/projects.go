package service

import (
	"context"
	"log/slog"
	"strings"

	"workboard/internal/access"
	"workboard/internal/apperr"
	"workboard/internal/models"
	"workboard/internal/position"
	"workboard/internal/repository"
	"workboard/internal/validation"
)

// ProjectService manages projects and their memberships.
type ProjectService struct {
	*core
}

// Create registers a project owned by the principal.
func (s *ProjectService) Create(ctx context.Context, principalID string, in models.CreateProjectInput) (models.Project, error) {
	if err := validation.Merge(validation.ValidateRef("principal_id", principalID), validation.Projects.ValidateCreate(in)).Err(); err != nil {
		return models.Project{}, err
	}
	now := s.now()
	p := models.Project{
		ID:          validation.NewID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Color:       in.Color,
		OwnerID:     principalID,
		Settings:    models.DefaultProjectSettings(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Members: []models.ProjectMember{{
			UserID:      principalID,
			Role:        models.RoleOwner,
			Permissions: models.DefaultPermissionsForRole(models.RoleOwner),
			JoinedAt:    now,
		}},
	}
	if p.Color == "" {
		p.Color = models.RandomProjectColor()
	}
	if in.Settings != nil {
		p.Settings = mergeProjectSettings(p.Settings, *in.Settings)
	}

	var created models.Project
	err := s.tx(ctx, "create project", func(ctx context.Context, tx repository.Repositories) error {
		if _, err := s.loadUser(ctx, tx, principalID); err != nil {
			return err
		}
		exists, err := tx.Projects.ExistsByName(ctx, p.Name, principalID, "")
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict(apperr.CodeDuplicateName, "a project named %q already exists", p.Name)
		}
		created, err = tx.Projects.Create(ctx, p)
		return err
	})
	if err != nil {
		return models.Project{}, err
	}

	s.logger.InfoContext(ctx, "project created", slog.String("project_id", created.ID), slog.String("owner_id", principalID))
	return created, nil
}

// mergeProjectSettings fills empty enum fields of in from base.
func mergeProjectSettings(base, in models.ProjectSettings) models.ProjectSettings {
	if in.DefaultBoardVisibility == "" {
		in.DefaultBoardVisibility = base.DefaultBoardVisibility
	}
	if in.DefaultTaskPriority == "" {
		in.DefaultTaskPriority = base.DefaultTaskPriority
	}
	return in
}

// GetByID returns a project with freshly computed statistics.
func (s *ProjectService) GetByID(ctx context.Context, principalID, id string) (models.Project, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Project{}, err
	}
	p, err := s.LookupProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if err := access.Require(p, principalID, access.ActionView); err != nil {
		return models.Project{}, err
	}
	stats, err := s.store.Repos().Projects.GetStatistics(ctx, id, s.now())
	if err != nil {
		return models.Project{}, s.storageErr(ctx, "project statistics", err)
	}
	p.Statistics = stats
	return p, nil
}

// GetAll lists the projects the principal belongs to.
func (s *ProjectService) GetAll(ctx context.Context, principalID string, f models.ProjectFilters, sort models.Sort, page models.Pagination) (models.Page[models.Project], error) {
	if err := validation.Projects.ValidateQuery(f, sort, page).Err(); err != nil {
		return models.Page[models.Project]{}, err
	}
	f.MemberID = principalID
	out, err := s.store.Repos().Projects.FindAll(ctx, f, sort, page)
	if err != nil {
		return models.Page[models.Project]{}, s.storageErr(ctx, "list projects", err)
	}
	return out, nil
}

// Update changes the descriptive fields of a project. An empty color picks
// a new palette color.
func (s *ProjectService) Update(ctx context.Context, principalID, id string, in models.UpdateProjectInput) (models.Project, error) {
	if err := validation.Merge(validation.ValidateID(id), validation.Projects.ValidateUpdate(in)).Err(); err != nil {
		return models.Project{}, err
	}

	var updated models.Project
	err := s.tx(ctx, "update project", func(ctx context.Context, tx repository.Repositories) error {
		p, err := s.projectIn(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := access.Require(p, principalID, access.ActionEditProject); err != nil {
			return err
		}
		if p.IsArchived {
			return archivedConflict("project", id)
		}

		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
			exists, err := tx.Projects.ExistsByName(ctx, p.Name, p.OwnerID, p.ID)
			if err != nil {
				return err
			}
			if exists {
				return apperr.Conflict(apperr.CodeDuplicateName, "a project named %q already exists", p.Name)
			}
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Color != nil {
			p.Color = *in.Color
			if p.Color == "" {
				p.Color = models.RandomProjectColor()
			}
		}
		if in.Settings != nil {
			p.Settings = mergeProjectSettings(p.Settings, *in.Settings)
		}
		p.UpdatedAt = s.now()
		updated, err = tx.Projects.Update(ctx, p)
		return err
	})
	s.invalidateProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	return updated, nil
}

// Delete removes an empty project. Projects with boards, archived or not,
// must be archived instead.
func (s *ProjectService) Delete(ctx context.Context, principalID, id string) error {
	if err := validation.ValidateID(id).Err(); err != nil {
		return err
	}

	unlock := s.positions.Lock(position.Key(position.KindProjectBoards, id))
	defer unlock()

	err := s.tx(ctx, "delete project", func(ctx context.Context, tx repository.Repositories) error {
		p, err := s.projectIn(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := access.Require(p, principalID, access.ActionDeleteProject); err != nil {
			return err
		}
		if p.IsArchived {
			return archivedConflict("project", id)
		}
		n, err := tx.Boards.CountByParent(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(apperr.CodeHasDescendants, "project %s still has %d boards; archive it instead", id, n)
		}
		return tx.Projects.Delete(ctx, id)
	})
	s.invalidateProject(ctx, id)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "project deleted", slog.String("project_id", id), slog.String("principal_id", principalID))
	return nil
}

// Archive soft-deletes a project. Its boards and tasks are left untouched.
func (s *ProjectService) Archive(ctx context.Context, principalID, id string) (models.Project, error) {
	return s.setArchived(ctx, principalID, id, true)
}

// Restore reverses Archive.
func (s *ProjectService) Restore(ctx context.Context, principalID, id string) (models.Project, error) {
	return s.setArchived(ctx, principalID, id, false)
}

// setArchived decides from the stored state inside the transaction, so of
// two concurrent archives exactly one succeeds.
func (s *ProjectService) setArchived(ctx context.Context, principalID, id string, archive bool) (models.Project, error) {
	if err := validation.ValidateID(id).Err(); err != nil {
		return models.Project{}, err
	}

	var out models.Project
	err := s.tx(ctx, "archive project", func(ctx context.Context, tx repository.Repositories) error {
		p, err := s.projectIn(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := access.Require(p, principalID, access.ActionArchiveProject); err != nil {
			return err
		}
		switch {
		case archive && p.IsArchived:
			return apperr.Conflict(apperr.CodeArchived, "project %s is already archived", id)
		case !archive && !p.IsArchived:
			return notArchivedConflict("project", id)
		case archive:
			err = tx.Projects.Archive(ctx, id, s.now())
		default:
			err = tx.Projects.Restore(ctx, id)
		}
		if err != nil {
			return err
		}
		out, err = s.projectIn(ctx, tx, id)
		return err
	})
	s.invalidateProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}

	s.logger.InfoContext(ctx, "project archive state changed", slog.String("project_id", id), slog.Bool("archived", archive))
	return out, nil
}

// canInvite reports whether the principal may add a member without the
// manage-members flag: the project must allow member invites and the new
// member may not be granted more than the role defaults of a member.
func canInvite(p models.Project, principalID string, in models.AddMemberInput) bool {
	if !p.Settings.AllowMemberInvites || !access.Allowed(p, principalID, access.ActionEditTasks) {
		return false
	}
	return in.Role != models.RoleAdmin && in.Permissions == nil
}

// AddMember adds a user to the project. Without explicit permissions the
// member receives the defaults of the role.
func (s *ProjectService) AddMember(ctx context.Context, principalID, projectID string, in models.AddMemberInput) (models.Project, error) {
	if err := validation.Merge(validation.ValidateRef("project_id", projectID), validation.Projects.ValidateMember(in)).Err(); err != nil {
		return models.Project{}, err
	}

	var out models.Project
	err := s.tx(ctx, "add member", func(ctx context.Context, tx repository.Repositories) error {
		p, err := s.projectIn(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !canInvite(p, principalID, in) {
			if err := access.Require(p, principalID, access.ActionManageMembers); err != nil {
				return err
			}
		}
		if _, err := s.loadUser(ctx, tx, in.UserID); err != nil {
			return err
		}
		if p.IsArchived {
			return archivedConflict("project", projectID)
		}
		if access.IsMember(p, in.UserID) {
			return apperr.Conflict(apperr.CodeDuplicateMembership, "user %s is already a member of project %s", in.UserID, projectID)
		}

		m := models.ProjectMember{
			ProjectID:   projectID,
			UserID:      in.UserID,
			Role:        in.Role,
			Permissions: models.DefaultPermissionsForRole(in.Role),
			JoinedAt:    s.now(),
		}
		if in.Permissions != nil {
			m.Permissions = *in.Permissions
		}
		if err := tx.Projects.AddMember(ctx, m); err != nil {
			return err
		}
		out, err = s.projectIn(ctx, tx, projectID)
		return err
	})
	s.invalidateProject(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}

	s.logger.InfoContext(ctx, "member added", slog.String("project_id", projectID), slog.String("user_id", in.UserID), slog.String("role", string(in.Role)))
	return out, nil
}

// memberTarget loads the project from repos and checks that userID is a
// removable, non-owner member the principal may manage.
func (s *ProjectService) memberTarget(ctx context.Context, repos repository.Repositories, principalID, projectID, userID string) (models.ProjectMember, error) {
	p, err := s.projectIn(ctx, repos, projectID)
	if err != nil {
		return models.ProjectMember{}, err
	}
	if err := access.Require(p, principalID, access.ActionManageMembers); err != nil {
		return models.ProjectMember{}, err
	}
	if p.IsOwner(userID) {
		return models.ProjectMember{}, apperr.Conflict(apperr.CodeOwnerImmutable, "the owner of project %s cannot be removed or changed", projectID)
	}
	if p.IsArchived {
		return models.ProjectMember{}, archivedConflict("project", projectID)
	}
	m, ok := p.Member(userID)
	if !ok {
		return models.ProjectMember{}, apperr.Conflict(apperr.CodeNotAMember, "user %s is not a member of project %s", userID, projectID)
	}
	return m, nil
}

// changeMember runs fn on the target member inside one transaction and
// returns the project as committed.
func (s *ProjectService) changeMember(ctx context.Context, op, principalID, projectID, userID string, fn func(ctx context.Context, tx repository.Repositories, m models.ProjectMember) error) (models.Project, error) {
	if err := validation.Merge(validation.ValidateRef("project_id", projectID), validation.ValidateRef("user_id", userID)).Err(); err != nil {
		return models.Project{}, err
	}
	var out models.Project
	err := s.tx(ctx, op, func(ctx context.Context, tx repository.Repositories) error {
		m, err := s.memberTarget(ctx, tx, principalID, projectID, userID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, m); err != nil {
			return err
		}
		out, err = s.projectIn(ctx, tx, projectID)
		return err
	})
	s.invalidateProject(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	return out, nil
}

// RemoveMember removes a non-owner member.
func (s *ProjectService) RemoveMember(ctx context.Context, principalID, projectID, userID string) (models.Project, error) {
	p, err := s.changeMember(ctx, "remove member", principalID, projectID, userID, func(ctx context.Context, tx repository.Repositories, m models.ProjectMember) error {
		return tx.Projects.RemoveMember(ctx, projectID, userID)
	})
	if err != nil {
		return models.Project{}, err
	}
	s.logger.InfoContext(ctx, "member removed", slog.String("project_id", projectID), slog.String("user_id", userID))
	return p, nil
}

// UpdateMemberRole changes a member's role. The permission flags are kept
// unless ResetPermissions asks for the new role's defaults.
func (s *ProjectService) UpdateMemberRole(ctx context.Context, principalID, projectID, userID string, in models.UpdateMemberRoleInput) (models.Project, error) {
	if err := validation.Projects.ValidateRoleChange(in).Err(); err != nil {
		return models.Project{}, err
	}
	return s.changeMember(ctx, "update member", principalID, projectID, userID, func(ctx context.Context, tx repository.Repositories, m models.ProjectMember) error {
		m.Role = in.Role
		if in.ResetPermissions {
			m.Permissions = models.DefaultPermissionsForRole(in.Role)
		}
		return s.saveMember(ctx, tx, m)
	})
}

// UpdateMemberPermissions replaces a member's permission flags.
func (s *ProjectService) UpdateMemberPermissions(ctx context.Context, principalID, projectID, userID string, perms models.Permissions) (models.Project, error) {
	return s.changeMember(ctx, "update member", principalID, projectID, userID, func(ctx context.Context, tx repository.Repositories, m models.ProjectMember) error {
		m.Permissions = perms
		return s.saveMember(ctx, tx, m)
	})
}

func (s *ProjectService) saveMember(ctx context.Context, tx repository.Repositories, m models.ProjectMember) error {
	if err := tx.Projects.UpdateMember(ctx, m); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "member updated", slog.String("project_id", m.ProjectID), slog.String("user_id", m.UserID), slog.String("role", string(m.Role)))
	return nil
}

// GetMembers lists the members of a project.
func (s *ProjectService) GetMembers(ctx context.Context, principalID, projectID string) ([]models.ProjectMember, error) {
	if err := validation.ValidateRef("project_id", projectID).Err(); err != nil {
		return nil, err
	}
	p, err := s.LookupProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(p, principalID, access.ActionView); err != nil {
		return nil, err
	}
	return p.Members, nil
}

// GetStatistics returns the aggregate counts of a project. Counts may lag
// concurrent writes.
func (s *ProjectService) GetStatistics(ctx context.Context, principalID, projectID string) (models.ProjectStatistics, error) {
	p, err := s.GetByID(ctx, principalID, projectID)
	if err != nil {
		return models.ProjectStatistics{}, err
	}
	return p.Statistics, nil
}

// LeaveProject removes the principal from a project they do not own.
func (s *ProjectService) LeaveProject(ctx context.Context, principalID, projectID string) error {
	if err := validation.ValidateRef("project_id", projectID).Err(); err != nil {
		return err
	}
	err := s.tx(ctx, "leave project", func(ctx context.Context, tx repository.Repositories) error {
		p, err := s.projectIn(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !access.IsMember(p, principalID) {
			return apperr.NotFound("project", projectID)
		}
		if p.IsOwner(principalID) {
			return apperr.Conflict(apperr.CodeOwnerImmutable, "the owner cannot leave project %s", projectID)
		}
		return tx.Projects.RemoveMember(ctx, projectID, principalID)
	})
	s.invalidateProject(ctx, projectID)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "member left", slog.String("project_id", projectID), slog.String("user_id", principalID))
	return nil
}
