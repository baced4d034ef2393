package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workboard/internal/models"
)

type statusRequest struct {
	Status models.TaskStatus `json:"status"`
}

type priorityRequest struct {
	Priority models.Priority `json:"priority"`
}

type assigneeRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) registerTaskRoutes(r *gin.RouterGroup) {
	tasks := r.Group("/tasks")
	tasks.GET("", s.handleListTasks)
	tasks.POST("", s.handleCreateTask)
	tasks.GET("search", s.handleSearchTasks)
	tasks.GET(":id", s.handleGetTask)
	tasks.PUT(":id", s.handleUpdateTask)
	tasks.DELETE(":id", s.handleDeleteTask)
	tasks.POST(":id/archive", s.handleArchiveTask)
	tasks.POST(":id/restore", s.handleRestoreTask)
	tasks.PUT(":id/position", s.handleMoveTask)
	tasks.PUT(":id/status", s.handleTaskStatus)
	tasks.PUT(":id/priority", s.handleTaskPriority)
	tasks.GET(":id/subtasks", s.handleSubtasks)
	tasks.POST(":id/assignees", s.handleAssignUser)
	tasks.DELETE(":id/assignees/:userId", s.handleUnassignUser)
	tasks.POST(":id/comments", s.handleAddComment)
	tasks.POST(":id/attachments", s.handleAddAttachment)
	tasks.POST(":id/time-entries", s.handleAddTimeEntry)
}

// handleListTasks lists tasks of the project, board or column named in the query.
func (s *Server) handleListTasks(c *gin.Context) {
	var f models.TaskFilters
	sort, page, ok := s.listQuery(c)
	if !ok || !s.bindQuery(c, &f) {
		return
	}
	tasks, err := s.services.Tasks.GetAll(c.Request.Context(), principal(c), f, sort, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}

func (s *Server) handleSearchTasks(c *gin.Context) {
	var f models.TaskFilters
	var page models.Pagination
	if !s.bindQuery(c, &f, &page) {
		return
	}
	tasks, err := s.services.Tasks.Search(c.Request.Context(), principal(c), f.Query, f, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}

// handleCreateTask inserts a new task into a column.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req models.CreateTaskInput
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.services.Tasks.GetByID(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleUpdateTask updates task fields such as status or description.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var req models.UpdateTaskInput
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.Update(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task without subtasks.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.services.Tasks.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleArchiveTask(c *gin.Context) {
	task, err := s.services.Tasks.Archive(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleRestoreTask(c *gin.Context) {
	task, err := s.services.Tasks.Restore(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleMoveTask(c *gin.Context) {
	var req models.MoveInput
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.UpdatePosition(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	var req statusRequest
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.UpdateStatus(c.Request.Context(), principal(c), c.Param("id"), req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleTaskPriority(c *gin.Context) {
	var req priorityRequest
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.UpdatePriority(c.Request.Context(), principal(c), c.Param("id"), req.Priority)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleSubtasks(c *gin.Context) {
	tasks, err := s.services.Tasks.GetSubtasks(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleAssignUser(c *gin.Context) {
	var req assigneeRequest
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.AssignUser(c.Request.Context(), principal(c), c.Param("id"), req.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleUnassignUser(c *gin.Context) {
	task, err := s.services.Tasks.UnassignUser(c.Request.Context(), principal(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req models.CommentInput
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.AddComment(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

func (s *Server) handleAddAttachment(c *gin.Context) {
	var req models.AttachmentInput
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.AddAttachment(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

func (s *Server) handleAddTimeEntry(c *gin.Context) {
	var req models.TimeEntryInput
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.services.Tasks.AddTimeEntry(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}
