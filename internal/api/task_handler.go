package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"todo-tracker/internal/model"
	"todo-tracker/internal/notify"
	"todo-tracker/internal/repository"
	"todo-tracker/internal/service"
)

// createTaskInput accepts due_date in the display-local
// "YYYY-MM-DD HH:MM" format, matching what the API returns.
type createTaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"due_date"`
	User        string   `json:"user"`
	Categories  []string `json:"categories"`
}

type updateTaskInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	DueDate     *string  `json:"due_date"`
	Categories  []string `json:"categories"`
	User        *string  `json:"user"`
	ID          *string  `json:"id"`
	CreatedAt   *string  `json:"created_at"`
}

type taskUserInfo struct {
	ID               string `json:"id"`
	TelegramID       *int64 `json:"telegram_id"`
	TelegramUsername string `json:"telegram_username"`
}

type taskResponse struct {
	ID                    string       `json:"id"`
	Title                 string       `json:"title"`
	Description           string       `json:"description"`
	CreatedAt             string       `json:"created_at"`
	DueDate               string       `json:"due_date"`
	User                  string       `json:"user"`
	Categories            []string     `json:"categories"`
	CategoryNames         []string     `json:"category_names"`
	UserInfo              taskUserInfo `json:"user_info"`
	IsCompleted           bool         `json:"is_completed"`
	IsOverdue             bool         `json:"is_overdue"`
	NotificationsDisabled bool         `json:"notifications_disabled"`
}

func (s *Server) taskResponse(task *model.Task, now time.Time) taskResponse {
	categoryIDs := make([]string, 0, len(task.Categories))
	categoryNames := make([]string, 0, len(task.Categories))
	for _, c := range task.Categories {
		categoryIDs = append(categoryIDs, c.ID)
		categoryNames = append(categoryNames, c.Name)
	}
	return taskResponse{
		ID:            task.ID,
		Title:         task.Title,
		Description:   task.Description,
		CreatedAt:     task.CreatedAt.UTC().Format(time.RFC3339),
		DueDate:       notify.FormatLocal(task.DueDate, s.loc),
		User:          task.ProfileID,
		Categories:    categoryIDs,
		CategoryNames: categoryNames,
		UserInfo: taskUserInfo{
			ID:               task.Profile.ID,
			TelegramID:       task.Profile.TelegramID,
			TelegramUsername: task.Profile.TelegramUsername,
		},
		IsCompleted:           task.IsCompleted,
		IsOverdue:             task.IsOverdue(now),
		NotificationsDisabled: task.NotificationsDisabled,
	}
}

func (s *Server) taskResponses(tasks []model.Task, now time.Time) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, s.taskResponse(&tasks[i], now))
	}
	return out
}

func (s *Server) createTask(c *gin.Context) {
	var input createTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var due *time.Time
	if input.DueDate != "" {
		parsed, err := notify.ParseLocal(input.DueDate, s.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must use format YYYY-MM-DD HH:MM"})
			return
		}
		due = &parsed
	}

	task, err := s.tasks.Create(c.Request.Context(), service.CreateTaskInput{
		Title:       input.Title,
		Description: input.Description,
		DueDate:     due,
		ProfileID:   input.User,
		CategoryIDs: input.Categories,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.taskResponse(task, time.Now()))
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponse(task, time.Now()))
}

func (s *Server) updateTask(c *gin.Context) {
	var input updateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.ID != nil || input.CreatedAt != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and created_at are immutable"})
		return
	}

	update := service.UpdateTaskInput{
		Title:       input.Title,
		Description: input.Description,
		CategoryIDs: input.Categories,
		ProfileID:   input.User,
	}
	if input.DueDate != nil {
		parsed, err := notify.ParseLocal(*input.DueDate, s.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must use format YYYY-MM-DD HH:MM"})
			return
		}
		update.DueDate = &parsed
	}

	task, err := s.tasks.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponse(task, time.Now()))
}

func (s *Server) deleteTask(c *gin.Context) {
	if err := s.tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listTasks(c *gin.Context) {
	filter := repository.TaskFilter{
		ProfileID:  c.Query("user"),
		CategoryID: c.Query("category"),
		Search:     c.Query("search"),
	}

	if raw := c.Query("telegram_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "telegram_id must be an integer"})
			return
		}
		filter.TelegramID = &id
	}
	if raw := c.Query("is_completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_completed must be a boolean"})
			return
		}
		filter.Completed = &completed
	}
	if raw := c.Query("due_from"); raw != "" {
		from, err := notify.ParseLocal(raw, s.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_from must use format YYYY-MM-DD HH:MM"})
			return
		}
		filter.DueFrom = &from
	}
	if raw := c.Query("due_to"); raw != "" {
		to, err := notify.ParseLocal(raw, s.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_to must use format YYYY-MM-DD HH:MM"})
			return
		}
		filter.DueTo = &to
	}

	tasks, err := s.tasks.Query(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponses(tasks, time.Now()))
}

func (s *Server) listOverdueTasks(c *gin.Context) {
	now := time.Now()
	completed := false
	tasks, err := s.tasks.Query(c.Request.Context(), repository.TaskFilter{
		Completed: &completed,
		DueTo:     &now,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponses(tasks, now))
}

func (s *Server) listCompletedTasks(c *gin.Context) {
	completed := true
	tasks, err := s.tasks.Query(c.Request.Context(), repository.TaskFilter{Completed: &completed})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponses(tasks, time.Now()))
}

func (s *Server) completeTask(c *gin.Context) {
	s.setTaskCompleted(c, true)
}

func (s *Server) uncompleteTask(c *gin.Context) {
	s.setTaskCompleted(c, false)
}

func (s *Server) setTaskCompleted(c *gin.Context, completed bool) {
	task, err := s.tasks.SetCompleted(c.Request.Context(), c.Param("id"), completed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponse(task, time.Now()))
}

func (s *Server) disableTaskNotifications(c *gin.Context) {
	task, err := s.tasks.SetNotificationsDisabled(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.taskResponse(task, time.Now()))
}
