package api

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"bookkeeping/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var transactionColumns = []string{"id", "user_id", "title", "description", "amount", "type", "category_id", "date", "metadata", "created_at", "updated_at"}

func expectExportRows(mock sqlmock.Sqlmock) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)
	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WillReturnRows(sqlmock.NewRows(transactionColumns).
			AddRow(2, 1, "Lunch", "noodles", "20.50", "expense", 3, day, nil, day, day).
			AddRow(1, 1, "Salary", "", "1000.00", "income", 7, day, nil, day, day))
	mock.ExpectQuery("SELECT .* FROM `categories`").
		WillReturnRows(sqlmock.NewRows(categoryColumns).
			AddRow(3, 1, "Food & Dining", "expense", "🍽️", "#FF6B6B", "", true, day, day, nil))
}

func TestExportHandler_ExportCSV(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	expectExportRows(mock)

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/export/csv", NewExportHandler(testServices()).ExportCSV)

	req := httptest.NewRequest("GET", "/export/csv?start_date=2024-01-01&end_date=2024-01-31", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "transactions_2024-01-01_2024-01-31.csv")
	body := w.Body.String()
	assert.Contains(t, body, "金额")
	assert.Contains(t, body, "2,2024-01-10,expense,Food & Dining,Lunch,20.50,noodles")
	// 类别缺失时显示 Unknown
	assert.Contains(t, body, "1,2024-01-10,income,Unknown,Salary,1000.00")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportHandler_ExportCSV_MissingParams(t *testing.T) {
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/export/csv", NewExportHandler(testServices()).ExportCSV)

	req := httptest.NewRequest("GET", "/export/csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestExportHandler_ExportExcel(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	expectExportRows(mock)

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/export/excel", NewExportHandler(testServices()).ExportExcel)

	req := httptest.NewRequest("GET", "/export/excel?start_date=2024-01-01&end_date=2024-01-31", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("收支记录", "E2")
	require.NoError(t, err)
	assert.Equal(t, "Lunch", title)
	label, _ := f.GetCellValue("收支记录", "A6")
	assert.Equal(t, "结余", label)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildTransactionWorkbook_Totals(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	f, err := buildTransactionWorkbook([]models.Transaction{
		{ID: 1, Title: "Salary", Amount: decimal.RequireFromString("100.10"), Type: models.TransactionIncome, Date: day, CreatedAt: day},
		{ID: 2, Title: "Taxi", Amount: decimal.RequireFromString("30.05"), Type: models.TransactionExpense, Date: day, CreatedAt: day},
	})
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("收支记录")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "收入合计", rows[3][0])
	assert.Equal(t, "100.1", rows[3][5])
	assert.Equal(t, "支出合计", rows[4][0])
	assert.Equal(t, "30.05", rows[4][5])
	assert.Equal(t, "结余", rows[5][0])
	assert.Equal(t, "共 2 条记录", rows[5][6])
}
