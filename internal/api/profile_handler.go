package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"todo-tracker/internal/model"
	"todo-tracker/internal/repository"
)

type profileInput struct {
	TelegramID       int64  `json:"telegram_id" binding:"required"`
	TelegramUsername string `json:"telegram_username"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
}

type profileAccount struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type profileResponse struct {
	ID               string         `json:"id"`
	User             profileAccount `json:"user"`
	TelegramID       *int64         `json:"telegram_id"`
	TelegramUsername string         `json:"telegram_username"`
}

func profileToResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID: p.ID,
		User: profileAccount{
			ID:        p.Account.ID,
			Username:  p.Account.Username,
			Email:     p.Account.Email,
			FirstName: p.Account.FirstName,
			LastName:  p.Account.LastName,
		},
		TelegramID:       p.TelegramID,
		TelegramUsername: p.TelegramUsername,
	}
}

// createProfile is idempotent by telegram_id: 200 for an existing
// profile (returned unchanged), 201 for a fresh one.
func (s *Server) createProfile(c *gin.Context) {
	var input profileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegram_id required"})
		return
	}

	profile, created, err := s.profiles.GetOrCreate(c.Request.Context(),
		input.TelegramID, input.TelegramUsername, input.FirstName, input.LastName)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, profileToResponse(profile))
}

func (s *Server) listProfiles(c *gin.Context) {
	profiles, err := s.profiles.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]profileResponse, 0, len(profiles))
	for i := range profiles {
		out = append(out, profileToResponse(&profiles[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getProfile(c *gin.Context) {
	profile, err := s.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(profile))
}

func (s *Server) listProfileTasks(c *gin.Context) {
	profile, err := s.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	tasks, err := s.tasks.Query(c.Request.Context(), repository.TaskFilter{ProfileID: profile.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponses(tasks, time.Now()))
}

func (s *Server) profileStats(c *gin.Context) {
	stats, err := s.tasks.Stats(c.Request.Context(), c.Param("id"), time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_tasks":     stats.Total,
		"completed_tasks": stats.Completed,
		"overdue_tasks":   stats.Overdue,
		"completion_rate": stats.CompletionRate,
	})
}
