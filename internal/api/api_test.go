package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-tracker/internal/repository"
	"todo-tracker/internal/service"
)

var testDBCounter atomic.Int64

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := repository.NewDB(dsn)
	require.NoError(t, err)

	taskRepo := repository.NewTaskRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	loc, err := time.LoadLocation("America/Adak")
	require.NoError(t, err)

	server := NewServer(
		service.NewTaskService(taskRepo, categoryRepo, profileRepo),
		service.NewCategoryService(categoryRepo, taskRepo),
		service.NewProfileService(profileRepo),
		loc,
	)
	return server.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if len(w.Body.Bytes()) > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func createTestProfile(t *testing.T, router *gin.Engine, telegramID int64) string {
	t.Helper()
	w, body := doJSON(t, router, http.MethodPost, "/api/profiles", gin.H{
		"telegram_id":       telegramID,
		"telegram_username": fmt.Sprintf("user%d", telegramID),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	return body["id"].(string)
}

func TestProfileCreateIsIdempotent(t *testing.T) {
	router := newTestRouter(t)

	w, first := doJSON(t, router, http.MethodPost, "/api/profiles", gin.H{"telegram_id": 555, "first_name": "Alice"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, second := doJSON(t, router, http.MethodPost, "/api/profiles", gin.H{"telegram_id": 555, "first_name": "Other"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first["id"], second["id"])

	user := second["user"].(map[string]any)
	assert.Equal(t, "Alice", user["first_name"], "existing profile data is not overwritten")
	assert.Equal(t, "tg_555", user["username"])
}

func TestProfileCreateRequiresTelegramID(t *testing.T) {
	router := newTestRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/profiles", gin.H{"first_name": "NoID"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskDueDateRoundTrip(t *testing.T) {
	router := newTestRouter(t)
	profileID := createTestProfile(t, router, 1)

	w, created := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"title":    "Pay rent",
		"due_date": "2025-03-10 14:30",
		"user":     profileID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2025-03-10 14:30", created["due_date"])

	taskID := created["id"].(string)
	w, fetched := doJSON(t, router, http.MethodGet, "/api/tasks/"+taskID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-03-10 14:30", fetched["due_date"], "no drift through storage")
	assert.Equal(t, false, fetched["is_completed"])
	assert.Equal(t, false, fetched["notifications_disabled"])
}

func TestTaskCreateValidation(t *testing.T) {
	router := newTestRouter(t)
	profileID := createTestProfile(t, router, 1)

	w, _ := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{"title": "no due", "user": profileID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{"title": "bad date", "due_date": "tomorrow", "user": profileID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{"title": "no owner", "due_date": "2025-03-10 14:30", "user": "missing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskUpdateRejectsImmutableFields(t *testing.T) {
	router := newTestRouter(t)
	profileID := createTestProfile(t, router, 1)

	_, created := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"title": "task", "due_date": "2025-03-10 14:30", "user": profileID,
	})
	taskID := created["id"].(string)

	w, _ := doJSON(t, router, http.MethodPatch, "/api/tasks/"+taskID, gin.H{"user": "other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPatch, "/api/tasks/"+taskID, gin.H{"id": "new-id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, updated := doJSON(t, router, http.MethodPatch, "/api/tasks/"+taskID, gin.H{"title": "renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "renamed", updated["title"])
	assert.Equal(t, taskID, updated["id"])
}

func TestTaskCompleteActions(t *testing.T) {
	router := newTestRouter(t)
	profileID := createTestProfile(t, router, 1)

	_, created := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"title": "task", "due_date": "2025-03-10 14:30", "user": profileID,
	})
	taskID := created["id"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/tasks/"+taskID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["is_completed"])

	w, body = doJSON(t, router, http.MethodPost, "/api/tasks/"+taskID+"/uncomplete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["is_completed"])
}

func TestTaskDisableNotifications(t *testing.T) {
	router := newTestRouter(t)
	profileID := createTestProfile(t, router, 1)

	_, created := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"title": "task", "due_date": "2025-03-10 14:30", "user": profileID,
	})
	taskID := created["id"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/tasks/"+taskID+"/disable_notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["notifications_disabled"])
}

func TestTaskNotFound(t *testing.T) {
	router := newTestRouter(t)

	w, _ := doJSON(t, router, http.MethodGet, "/api/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskListFiltersByTelegramID(t *testing.T) {
	router := newTestRouter(t)
	alice := createTestProfile(t, router, 1)
	bob := createTestProfile(t, router, 2)

	doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{"title": "alice task", "due_date": "2025-03-10 14:30", "user": alice})
	doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{"title": "bob task", "due_date": "2025-03-10 14:30", "user": bob})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?telegram_id=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "bob task", tasks[0]["title"])
}

func TestCategoryDeleteConflict(t *testing.T) {
	router := newTestRouter(t)
	profileID := createTestProfile(t, router, 1)

	w, category := doJSON(t, router, http.MethodPost, "/api/categories", gin.H{"name": "Работа"})
	require.Equal(t, http.StatusCreated, w.Code)
	categoryID := category["id"].(string)

	// Same name again: get-or-create returns the existing record.
	w, again := doJSON(t, router, http.MethodPost, "/api/categories", gin.H{"name": "Работа"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, categoryID, again["id"])

	_, task := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"title": "tagged", "due_date": "2025-03-10 14:30", "user": profileID,
		"categories": []string{categoryID},
	})
	taskID := task["id"].(string)

	w, _ = doJSON(t, router, http.MethodDelete, "/api/categories/"+categoryID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, router, http.MethodDelete, "/api/tasks/"+taskID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, _ = doJSON(t, router, http.MethodDelete, "/api/categories/"+categoryID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestProfileStats(t *testing.T) {
	router := newTestRouter(t)
	profileID := createTestProfile(t, router, 1)

	_, open := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{"title": "open", "due_date": "2099-01-01 09:00", "user": profileID})
	_ = open
	_, done := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{"title": "done", "due_date": "2099-01-02 09:00", "user": profileID})
	doJSON(t, router, http.MethodPost, "/api/tasks/"+done["id"].(string)+"/complete", nil)

	w, stats := doJSON(t, router, http.MethodGet, "/api/profiles/"+profileID+"/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), stats["total_tasks"])
	assert.Equal(t, float64(1), stats["completed_tasks"])
	assert.Equal(t, float64(0), stats["overdue_tasks"])
	assert.Equal(t, float64(50), stats["completion_rate"])
}
