package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workboard/internal/access"
	"workboard/internal/apperr"
	"workboard/internal/models"
)

func (s *Server) registerProjectRoutes(r *gin.RouterGroup) {
	projects := r.Group("/projects")
	projects.GET("", s.handleListProjects)
	projects.POST("", s.handleCreateProject)
	projects.GET(":id", s.handleGetProject)
	projects.PUT(":id", s.handleUpdateProject)
	projects.DELETE(":id", s.handleDeleteProject)
	projects.POST(":id/archive", s.handleArchiveProject)
	projects.POST(":id/restore", s.handleRestoreProject)
	projects.GET(":id/statistics", s.handleProjectStatistics)
	projects.GET(":id/boards", s.handleProjectBoards)
	projects.POST(":id/leave", s.handleLeaveProject)
	projects.GET(":id/access", s.handleProjectAccess)

	projects.GET(":id/members", s.handleListMembers)
	projects.POST(":id/members", s.handleAddMember)
	projects.PUT(":id/members/:userId", s.handleUpdateMemberRole)
	projects.PUT(":id/members/:userId/permissions", s.handleUpdateMemberPermissions)
	projects.DELETE(":id/members/:userId", s.handleRemoveMember)
}

// handleListProjects returns the projects the principal belongs to.
func (s *Server) handleListProjects(c *gin.Context) {
	var f models.ProjectFilters
	sort, page, ok := s.listQuery(c)
	if !ok || !s.bindQuery(c, &f) {
		return
	}
	projects, err := s.services.Projects.GetAll(c.Request.Context(), principal(c), f, sort, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, projects)
}

// handleCreateProject creates a project owned by the principal.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req models.CreateProjectInput
	if !s.bindJSON(c, &req) {
		return
	}
	project, err := s.services.Projects.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.services.Projects.GetByID(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleUpdateProject renames, describes, recolors or reconfigures a project.
func (s *Server) handleUpdateProject(c *gin.Context) {
	var req models.UpdateProjectInput
	if !s.bindJSON(c, &req) {
		return
	}
	project, err := s.services.Projects.Update(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleDeleteProject removes a project that no longer has boards.
func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.services.Projects.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleArchiveProject(c *gin.Context) {
	project, err := s.services.Projects.Archive(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleRestoreProject(c *gin.Context) {
	project, err := s.services.Projects.Restore(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleProjectStatistics(c *gin.Context) {
	stats, err := s.services.Projects.GetStatistics(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"statistics": stats})
}

func (s *Server) handleProjectBoards(c *gin.Context) {
	var f models.BoardFilters
	if !s.bindQuery(c, &f) {
		return
	}
	boards, err := s.services.Boards.GetByParentID(c.Request.Context(), principal(c), c.Param("id"), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"boards": boards})
}

func (s *Server) handleLeaveProject(c *gin.Context) {
	if err := s.services.Projects.LeaveProject(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleListMembers(c *gin.Context) {
	members, err := s.services.Projects.GetMembers(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req models.AddMemberInput
	if !s.bindJSON(c, &req) {
		return
	}
	project, err := s.services.Projects.AddMember(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

func (s *Server) handleUpdateMemberRole(c *gin.Context) {
	var req models.UpdateMemberRoleInput
	if !s.bindJSON(c, &req) {
		return
	}
	project, err := s.services.Projects.UpdateMemberRole(c.Request.Context(), principal(c), c.Param("id"), c.Param("userId"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleUpdateMemberPermissions(c *gin.Context) {
	var req models.Permissions
	if !s.bindJSON(c, &req) {
		return
	}
	project, err := s.services.Projects.UpdateMemberPermissions(c.Request.Context(), principal(c), c.Param("id"), c.Param("userId"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	project, err := s.services.Projects.RemoveMember(c.Request.Context(), principal(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleProjectAccess reports whether the principal may perform ?action= on
// the project. Projects the principal cannot see answer false, not 404.
func (s *Server) handleProjectAccess(c *gin.Context) {
	action, ok := access.ParseAction(c.Query("action"))
	if !ok {
		s.respondError(c, apperr.Validation(apperr.Field{Field: "action", Message: "unknown action", Code: "INVALID_ENUM"}))
		return
	}
	allowed, err := s.services.Access.CanAccess(c.Request.Context(), principal(c), c.Param("id"), action)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"action": action, "allowed": allowed})
}
