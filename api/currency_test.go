package api

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencyHandler_List(t *testing.T) {
	router := gin.New()
	router.GET("/currencies", NewCurrencyHandler().List)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/currencies", nil))

	assert.Equal(t, 200, w.Code)
	list, ok := decodeResponse(t, w)["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 10)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "AUD", first["code"])
	assert.Equal(t, "A$", first["symbol"])
}
