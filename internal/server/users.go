package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workboard/internal/models"
)

func (s *Server) registerUserRoutes(r *gin.RouterGroup) {
	r.GET("/me", s.handleMe)
	r.GET("/me/projects", s.handleMyProjects)
	r.GET("/me/tasks", s.handleMyTasks)

	users := r.Group("/users")
	users.GET("", s.handleListUsers)
	users.GET(":id", s.handleGetUser)
	users.PUT(":id", s.handleUpdateUser)
	users.DELETE(":id", s.handleDeleteUser)
	users.GET(":id/projects", s.handleUserProjects)
	users.GET(":id/tasks", s.handleUserTasks)
}

// handleCreateUser registers a profile. It is the only write that needs no principal.
func (s *Server) handleCreateUser(c *gin.Context) {
	var req models.CreateUserInput
	if !s.bindJSON(c, &req) {
		return
	}
	user, err := s.services.Users.Create(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.services.Users.GetByID(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleMyProjects(c *gin.Context) {
	c.AddParam("id", principal(c))
	s.handleUserProjects(c)
}

func (s *Server) handleMyTasks(c *gin.Context) {
	var f models.TaskFilters
	sort, page, ok := s.listQuery(c)
	if !ok || !s.bindQuery(c, &f) {
		return
	}
	me := principal(c)
	tasks, err := s.services.Users.GetAssignedTasks(c.Request.Context(), me, me, f, sort, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}

// handleListUsers searches users, or looks one up when ?email= is given.
func (s *Server) handleListUsers(c *gin.Context) {
	if email := c.Query("email"); email != "" {
		user, err := s.services.Users.GetByEmail(c.Request.Context(), email)
		if err != nil {
			s.respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"user": user})
		return
	}

	var f models.UserFilters
	sort, page, ok := s.listQuery(c)
	if !ok || !s.bindQuery(c, &f) {
		return
	}
	users, err := s.services.Users.GetAll(c.Request.Context(), f, sort, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, users)
}

func (s *Server) handleGetUser(c *gin.Context) {
	user, err := s.services.Users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	var req models.UpdateUserInput
	if !s.bindJSON(c, &req) {
		return
	}
	user, err := s.services.Users.Update(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	if err := s.services.Users.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleUserProjects(c *gin.Context) {
	var f models.ProjectFilters
	sort, page, ok := s.listQuery(c)
	if !ok || !s.bindQuery(c, &f) {
		return
	}
	projects, err := s.services.Users.GetProjects(c.Request.Context(), principal(c), c.Param("id"), f, sort, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, projects)
}

// handleUserTasks lists another user's assignments inside a container the
// principal can read.
func (s *Server) handleUserTasks(c *gin.Context) {
	var f models.TaskFilters
	sort, page, ok := s.listQuery(c)
	if !ok || !s.bindQuery(c, &f) {
		return
	}
	tasks, err := s.services.Tasks.GetByAssignee(c.Request.Context(), principal(c), c.Param("id"), f, sort, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}
