package api

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"bookkeeping/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var notificationColumns = []string{"id", "user_id", "title", "message", "type", "priority", "is_read", "read_at", "is_archived", "action_url", "metadata", "expires_at", "created_at", "updated_at"}

func notificationRouter(method, path string, handler func(h *NotificationHandler) gin.HandlerFunc) (*gin.Engine, *NotificationHandler) {
	h := NewNotificationHandler(testServices())
	h.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.Handle(method, path, handler(h))
	return router, h
}

func TestNotificationOrder(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "created_at DESC", true},
		{"created_at", "created_at ASC", true},
		{"-title", "title DESC", true},
		{"-priority", "FIELD(priority, 'low', 'medium', 'high', 'urgent') DESC", true},
		{"message", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := notificationOrder(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotificationHandler_List(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `notifications`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("SELECT \\* FROM `notifications`").
		WillReturnRows(sqlmock.NewRows(notificationColumns).
			AddRow(1, 1, "Budget Alert", "msg", "budget", "low", false, nil, false, "", []byte(`{"status":"alert_75"}`), nil, now, now))

	router, _ := notificationRouter("GET", "/notifications", func(h *NotificationHandler) gin.HandlerFunc { return h.List })

	req := httptest.NewRequest("GET", "/notifications?type=budget&is_read=false&ordering=-priority", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	list := data["list"].([]interface{})
	require.Len(t, list, 1)
	item := list[0].(map[string]interface{})
	assert.Equal(t, "alert_75", item["metadata"].(map[string]interface{})["status"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_List_InvalidFilters(t *testing.T) {
	router, _ := notificationRouter("GET", "/notifications", func(h *NotificationHandler) gin.HandlerFunc { return h.List })

	req := httptest.NewRequest("GET", "/notifications?type=promo&priority=critical&ordering=message&start_date=2024-02-01&end_date=2024-01-01", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	errs := validationErrors(t, decodeResponse(t, w))
	assert.Contains(t, errs, "type")
	assert.Contains(t, errs, "priority")
	assert.Contains(t, errs, "ordering")
	assert.Contains(t, errs, "date_range")
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT \\* FROM `notifications`").
		WillReturnRows(sqlmock.NewRows(notificationColumns).
			AddRow(5, 1, "Welcome", "hi", "system", "medium", false, nil, false, "", nil, nil, now, now))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `notifications`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	router, _ := notificationRouter("POST", "/notifications/:id/mark-read", func(h *NotificationHandler) gin.HandlerFunc { return h.MarkRead })

	req := httptest.NewRequest("POST", "/notifications/5/mark-read", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["is_read"])
	assert.NotNil(t, data["read_at"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_Update_Unread(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT \\* FROM `notifications`").
		WillReturnRows(sqlmock.NewRows(notificationColumns).
			AddRow(5, 1, "Welcome", "hi", "system", "medium", true, now, false, "", nil, nil, now, now))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `notifications`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	router, _ := notificationRouter("PUT", "/notifications/:id", func(h *NotificationHandler) gin.HandlerFunc { return h.Update })

	req := httptest.NewRequest("PUT", "/notifications/5", bytes.NewBufferString(`{"is_read":false,"is_archived":true}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["is_read"])
	assert.Nil(t, data["read_at"])
	assert.Equal(t, true, data["is_archived"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_Get_OtherOwner(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 查询带 user_id 条件，其他用户的通知查不到
	mock.ExpectQuery("SELECT \\* FROM `notifications`").
		WillReturnRows(sqlmock.NewRows(notificationColumns))

	router, _ := notificationRouter("GET", "/notifications/:id", func(h *NotificationHandler) gin.HandlerFunc { return h.Get })

	req := httptest.NewRequest("GET", "/notifications/77", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_BulkAction(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `notifications` SET `is_archived`").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	router, _ := notificationRouter("POST", "/notifications/bulk-action", func(h *NotificationHandler) gin.HandlerFunc { return h.BulkAction })

	req := httptest.NewRequest("POST", "/notifications/bulk-action", bytes.NewBufferString(`{"notification_ids":[1,2,3],"action":"archive"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["affected_count"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_BulkAction_UnknownAction(t *testing.T) {
	router, _ := notificationRouter("POST", "/notifications/bulk-action", func(h *NotificationHandler) gin.HandlerFunc { return h.BulkAction })

	req := httptest.NewRequest("POST", "/notifications/bulk-action", bytes.NewBufferString(`{"notification_ids":[1],"action":"pin"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestNotificationHandler_MarkAllRead(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `notifications`").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	router, _ := notificationRouter("POST", "/notifications/mark-all-read", func(h *NotificationHandler) gin.HandlerFunc { return h.MarkAllRead })

	req := httptest.NewRequest("POST", "/notifications/mark-all-read", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "已将 4 条通知标记为已读", resp["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_Stats(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `notifications`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(5))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `notifications`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(2))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `notifications`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("SELECT type AS").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("budget", 3).AddRow("system", 2))
	mock.ExpectQuery("SELECT priority AS").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("medium", 5))
	mock.ExpectQuery("SELECT \\* FROM `notifications`").
		WillReturnRows(sqlmock.NewRows(notificationColumns).
			AddRow(1, 1, "Welcome", "hi", "system", "medium", false, nil, false, "", nil, nil, now, now))

	router, _ := notificationRouter("GET", "/notifications/stats", func(h *NotificationHandler) gin.HandlerFunc { return h.Stats })

	req := httptest.NewRequest("GET", "/notifications/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(5), data["total"])
	assert.Equal(t, float64(2), data["unread"])
	assert.Equal(t, float64(3), data["read"])
	assert.Equal(t, float64(1), data["archived"])
	assert.Equal(t, float64(3), data["by_type"].(map[string]interface{})["budget"])
	assert.Len(t, data["recent_notifications"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_Stats_QueryError(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `notifications`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(5))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `notifications`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(2))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `notifications`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("SELECT type AS").
		WillReturnError(errors.New("connection reset"))

	router, _ := notificationRouter("GET", "/notifications/stats", func(h *NotificationHandler) gin.HandlerFunc { return h.Stats })

	req := httptest.NewRequest("GET", "/notifications/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 分组统计失败时不返回部分结果，后续查询也不再执行
	assert.Equal(t, 500, w.Code)
	assert.Nil(t, decodeResponse(t, w)["data"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_Types(t *testing.T) {
	router, _ := notificationRouter("GET", "/notifications/types", func(h *NotificationHandler) gin.HandlerFunc { return h.Types })

	req := httptest.NewRequest("GET", "/notifications/types", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Len(t, data["types"], len(models.NotificationTypes))
	assert.Len(t, data["priorities"], len(models.Priorities))
}

func TestApplyPreferenceUpdate(t *testing.T) {
	pref := models.DefaultNotificationPreference(1)

	errs := applyPreferenceUpdate(pref, map[string]interface{}{
		"in_app_budget":       false,
		"email_enabled":       false,
		"quiet_hours_enabled": true,
		"quiet_hours_start":   "23:30",
	})
	assert.Empty(t, errs)
	assert.False(t, pref.Allows(models.ChannelInApp, models.NotificationBudget))
	assert.False(t, pref.ChannelEnabled(models.ChannelEmail))
	assert.True(t, pref.QuietHoursEnabled)
	assert.Equal(t, "23:30", pref.QuietHoursStart)

	errs = applyPreferenceUpdate(pref, map[string]interface{}{
		"sms_budget":      true,
		"push_system":     "yes",
		"quiet_hours_end": "25:00",
	})
	fields := errs.Fields()
	assert.Len(t, fields, 3)
	assert.Contains(t, fields, "sms_budget")
	assert.Contains(t, fields, "push_system")
	assert.Contains(t, fields, "quiet_hours_end")
	assert.Equal(t, "08:00", pref.QuietHoursEnd)
}

func TestNotificationHandler_UpdatePreferences_CreatesDefault(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 偏好不存在时先按默认值创建
	mock.ExpectQuery("SELECT \\* FROM `notification_preferences`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `notification_preferences`").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `notification_preferences`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	router, _ := notificationRouter("PUT", "/notifications/preferences", func(h *NotificationHandler) gin.HandlerFunc { return h.UpdatePreferences })

	req := httptest.NewRequest("PUT", "/notifications/preferences", bytes.NewBufferString(`{"in_app_budget":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["in_app_budget"])
	assert.Equal(t, true, data["in_app_transaction"])
	assert.Equal(t, false, data["push_system"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationHandler_UpdatePreferences_Invalid(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	cols := []string{"id", "user_id", "email_enabled", "in_app_enabled", "in_app_budget", "quiet_hours_enabled", "quiet_hours_start", "quiet_hours_end", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT \\* FROM `notification_preferences`").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, 1, true, true, true, false, "22:00", "08:00", now, now))

	router, _ := notificationRouter("PUT", "/notifications/preferences", func(h *NotificationHandler) gin.HandlerFunc { return h.UpdatePreferences })

	req := httptest.NewRequest("PUT", "/notifications/preferences", bytes.NewBufferString(`{"carrier_pigeon":true,"quiet_hours_start":"7pm"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	errs := validationErrors(t, decodeResponse(t, w))
	assert.Contains(t, errs, "carrier_pigeon")
	assert.Contains(t, errs, "quiet_hours_start")
	require.NoError(t, mock.ExpectationsWereMet())
}
