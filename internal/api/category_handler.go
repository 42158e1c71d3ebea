package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"todo-tracker/internal/model"
	"todo-tracker/internal/repository"
)

type categoryInput struct {
	Name string `json:"name" binding:"required"`
}

type categoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TaskCount int64  `json:"task_count"`
}

func (s *Server) categoryResponse(c *gin.Context, category *model.Category) (categoryResponse, error) {
	count, err := s.categories.TaskCount(c.Request.Context(), category.ID)
	if err != nil {
		return categoryResponse{}, err
	}
	return categoryResponse{ID: category.ID, Name: category.Name, TaskCount: count}, nil
}

// createCategory is get-or-create by name: 200 for an existing
// category, 201 for a fresh one.
func (s *Server) createCategory(c *gin.Context) {
	var input categoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, created, err := s.categories.GetOrCreate(c.Request.Context(), input.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	resp, err := s.categoryResponse(c, category)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.categories.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for i := range categories {
		resp, err := s.categoryResponse(c, &categories[i])
		if err != nil {
			writeError(c, err)
			return
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listCategoryTasks(c *gin.Context) {
	category, err := s.categories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	tasks, err := s.tasks.Query(c.Request.Context(), repository.TaskFilter{CategoryID: category.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponses(tasks, time.Now()))
}

func (s *Server) deleteCategory(c *gin.Context) {
	if err := s.categories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
