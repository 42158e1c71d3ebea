// Package api exposes the REST surface over the task, category and
// profile services.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"todo-tracker/internal/model"
	"todo-tracker/internal/service"
)

// Server aggregates the HTTP handlers.
type Server struct {
	tasks      *service.TaskService
	categories *service.CategoryService
	profiles   *service.ProfileService
	loc        *time.Location
}

func NewServer(tasks *service.TaskService, categories *service.CategoryService, profiles *service.ProfileService, loc *time.Location) *Server {
	return &Server{tasks: tasks, categories: categories, profiles: profiles, loc: loc}
}

// Router builds the gin engine with all routes mounted under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		tasks := api.Group("/tasks")
		{
			tasks.POST("", s.createTask)
			tasks.GET("", s.listTasks)
			tasks.GET("/overdue", s.listOverdueTasks)
			tasks.GET("/completed", s.listCompletedTasks)
			tasks.GET("/:id", s.getTask)
			tasks.PATCH("/:id", s.updateTask)
			tasks.DELETE("/:id", s.deleteTask)
			tasks.POST("/:id/complete", s.completeTask)
			tasks.POST("/:id/uncomplete", s.uncompleteTask)
			tasks.POST("/:id/disable_notifications", s.disableTaskNotifications)
		}

		categories := api.Group("/categories")
		{
			categories.POST("", s.createCategory)
			categories.GET("", s.listCategories)
			categories.GET("/:id/tasks", s.listCategoryTasks)
			categories.DELETE("/:id", s.deleteCategory)
		}

		profiles := api.Group("/profiles")
		{
			profiles.POST("", s.createProfile)
			profiles.GET("", s.listProfiles)
			profiles.GET("/:id", s.getProfile)
			profiles.GET("/:id/tasks", s.listProfileTasks)
			profiles.GET("/:id/stats", s.profileStats)
		}
	}

	return r
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case model.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case model.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
