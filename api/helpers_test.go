package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"bookkeeping/config"
	"bookkeeping/database"
	"bookkeeping/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	return mock, func() {
		database.DB = oldDB
		sqlDB.Close()
	}
}

func setUserIDMiddleware(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Budget: config.BudgetConfig{DedupWindow: 24 * time.Hour},
	}
}

// testServices 基于当前 database.DB 组装服务，不启用缓存与邮件
func testServices() *service.Services {
	return service.NewServices(database.DB, testConfig(), nil, nil)
}

// testServicesWithCache 同 testServices，汇总缓存接到 miniredis
func testServicesWithCache(t *testing.T) (*service.Services, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return service.NewServices(database.DB, testConfig(), client, nil), mr
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// validationErrors 取出 data.errors
func validationErrors(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "data 应为对象")
	errs, ok := data["errors"].(map[string]interface{})
	require.True(t, ok, "data.errors 应为对象")
	return errs
}
