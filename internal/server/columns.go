package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workboard/internal/models"
)

func (s *Server) registerColumnRoutes(r *gin.RouterGroup) {
	columns := r.Group("/columns")
	columns.POST("", s.handleCreateColumn)
	columns.GET(":id", s.handleGetColumn)
	columns.PUT(":id", s.handleUpdateColumn)
	columns.DELETE(":id", s.handleDeleteColumn)
	columns.PUT(":id/position", s.handleMoveColumn)
	columns.GET(":id/tasks", s.handleColumnTasks)
}

func (s *Server) handleCreateColumn(c *gin.Context) {
	var req models.CreateColumnInput
	if !s.bindJSON(c, &req) {
		return
	}
	column, err := s.services.Columns.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"column": column})
}

func (s *Server) handleGetColumn(c *gin.Context) {
	column, err := s.services.Columns.GetByID(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"column": column})
}

func (s *Server) handleUpdateColumn(c *gin.Context) {
	var req models.UpdateColumnInput
	if !s.bindJSON(c, &req) {
		return
	}
	column, err := s.services.Columns.Update(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"column": column})
}

func (s *Server) handleDeleteColumn(c *gin.Context) {
	if err := s.services.Columns.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleMoveColumn(c *gin.Context) {
	var req models.MoveInput
	if !s.bindJSON(c, &req) {
		return
	}
	column, err := s.services.Columns.UpdatePosition(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"column": column})
}

// handleColumnTasks lists a column's tasks in position order; archived tasks
// are included with ?include_archived=true.
func (s *Server) handleColumnTasks(c *gin.Context) {
	tasks, err := s.services.Tasks.GetByParentID(c.Request.Context(), principal(c), c.Param("id"), queryBool(c, "include_archived"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}
