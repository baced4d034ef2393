package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workboard/internal/models"
)

func (s *Server) registerBoardRoutes(r *gin.RouterGroup) {
	boards := r.Group("/boards")
	boards.GET("", s.handleListBoards)
	boards.POST("", s.handleCreateBoard)
	boards.GET(":id", s.handleGetBoard)
	boards.PUT(":id", s.handleUpdateBoard)
	boards.DELETE(":id", s.handleDeleteBoard)
	boards.POST(":id/archive", s.handleArchiveBoard)
	boards.POST(":id/restore", s.handleRestoreBoard)
	boards.PUT(":id/position", s.handleMoveBoard)
	boards.POST(":id/duplicate", s.handleDuplicateBoard)
	boards.GET(":id/columns", s.handleBoardColumns)
}

// handleListBoards pages through the boards of the project named by ?project_id=.
func (s *Server) handleListBoards(c *gin.Context) {
	var f models.BoardFilters
	sort, page, ok := s.listQuery(c)
	if !ok || !s.bindQuery(c, &f) {
		return
	}
	boards, err := s.services.Boards.GetAll(c.Request.Context(), principal(c), f, sort, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, boards)
}

func (s *Server) handleCreateBoard(c *gin.Context) {
	var req models.CreateBoardInput
	if !s.bindJSON(c, &req) {
		return
	}
	board, err := s.services.Boards.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"board": board})
}

func (s *Server) handleGetBoard(c *gin.Context) {
	board, err := s.services.Boards.GetByID(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": board})
}

func (s *Server) handleUpdateBoard(c *gin.Context) {
	var req models.UpdateBoardInput
	if !s.bindJSON(c, &req) {
		return
	}
	board, err := s.services.Boards.Update(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": board})
}

func (s *Server) handleDeleteBoard(c *gin.Context) {
	if err := s.services.Boards.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleArchiveBoard(c *gin.Context) {
	board, err := s.services.Boards.Archive(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": board})
}

func (s *Server) handleRestoreBoard(c *gin.Context) {
	board, err := s.services.Boards.Restore(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": board})
}

func (s *Server) handleMoveBoard(c *gin.Context) {
	var req models.MoveInput
	if !s.bindJSON(c, &req) {
		return
	}
	board, err := s.services.Boards.UpdatePosition(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": board})
}

// handleDuplicateBoard copies a board; the body is optional.
func (s *Server) handleDuplicateBoard(c *gin.Context) {
	var req models.DuplicateBoardInput
	if c.Request.ContentLength > 0 && !s.bindJSON(c, &req) {
		return
	}
	board, err := s.services.Boards.Duplicate(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"board": board})
}

func (s *Server) handleBoardColumns(c *gin.Context) {
	columns, err := s.services.Columns.GetByParentID(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"columns": columns})
}
