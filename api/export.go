package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bookkeeping/middleware"
	"bookkeeping/models"
	"bookkeeping/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var exportHeaders = []string{"ID", "日期", "类型", "类别", "标题", "金额", "描述", "创建时间"}

// ExportHandler 导出处理器
type ExportHandler struct {
	svc *service.Services
}

// NewExportHandler 创建导出处理器
func NewExportHandler(svc *service.Services) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// exportRows 按日期范围查询收支记录，start_date 与 end_date 均为必填
func (h *ExportHandler) exportRows(c *gin.Context) ([]models.Transaction, service.DateRange, bool) {
	startStr := c.Query("start_date")
	endStr := c.Query("end_date")
	if startStr == "" || endStr == "" {
		BadRequest(c, "请提供开始日期和结束日期")
		return nil, service.DateRange{}, false
	}

	r, err := service.ParseDateRange(startStr, endStr, time.Local)
	if err != nil {
		HandleServiceError(c, err, "参数错误")
		return nil, service.DateRange{}, false
	}

	txs, err := h.svc.Store.ListTransactions(c.Request.Context(), middleware.GetCurrentUserID(c), r)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询数据失败"))
		return nil, service.DateRange{}, false
	}
	return txs, r, true
}

func exportRecord(tx models.Transaction) []string {
	return []string{
		strconv.FormatUint(uint64(tx.ID), 10),
		tx.Date.Format(service.DateLayout),
		string(tx.Type),
		tx.CategoryName(),
		tx.Title,
		tx.Amount.StringFixed(2),
		tx.Description,
		tx.CreatedAt.Format(exportTimeLayout),
	}
}

func exportFilename(r service.DateRange, ext string) string {
	return fmt.Sprintf("transactions_%s_%s.%s", r.Start.Format(service.DateLayout), r.End.Format(service.DateLayout), ext)
}

// ExportCSV 导出收支记录为 CSV
// @Summary 导出收支记录
// @Description 根据日期范围导出收支记录为 CSV 文件
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param start_date query string true "开始日期 (2024-01-01)"
// @Param end_date query string true "结束日期 (2024-12-31)"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	txs, r, ok := h.exportRows(c)
	if !ok {
		return
	}

	buf := new(bytes.Buffer)
	// 添加 BOM 以支持 Excel 中文显示
	buf.WriteString("\xEF\xBB\xBF")

	writer := csv.NewWriter(buf)
	if err := writer.Write(exportHeaders); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}
	for _, tx := range txs {
		if err := writer.Write(exportRecord(tx)); err != nil {
			InternalError(c, "生成 CSV 失败")
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(r, "csv")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportExcel 导出收支记录为 Excel
// @Summary 导出收支记录为 Excel
// @Description 根据日期范围导出收支记录为 xlsx 文件，末尾附收入、支出与结余合计
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param start_date query string true "开始日期 (2024-01-01)"
// @Param end_date query string true "结束日期 (2024-12-31)"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/excel [get]
func (h *ExportHandler) ExportExcel(c *gin.Context) {
	txs, r, ok := h.exportRows(c)
	if !ok {
		return
	}

	f, err := buildTransactionWorkbook(txs)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "生成 Excel 失败"))
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "生成 Excel 失败"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(r, "xlsx")))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// buildTransactionWorkbook 生成收支记录工作簿
func buildTransactionWorkbook(txs []models.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "收支记录"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	dataStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    border,
	})
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border: border,
	})

	widths := []float64{8, 12, 10, 16, 30, 14, 30, 20}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	income, expenses := decimal.Zero, decimal.Zero
	for i, tx := range txs {
		row := i + 2
		for j, v := range exportRecord(tx) {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, v)
		}
		// 金额列写入数值，便于在表格中继续计算
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), tx.Amount.InexactFloat64())
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("H%d", row), dataStyle)

		switch tx.Type {
		case models.TransactionIncome:
			income = income.Add(tx.Amount)
		case models.TransactionExpense:
			expenses = expenses.Add(tx.Amount)
		}
	}

	row := len(txs) + 2
	for _, line := range []struct {
		label string
		value decimal.Decimal
	}{
		{"收入合计", income},
		{"支出合计", expenses},
		{"结余", income.Sub(expenses)},
	} {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line.label)
		f.MergeCell(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("E%d", row))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), line.value.InexactFloat64())
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("H%d", row), summaryStyle)
		row++
	}
	f.SetCellValue(sheet, fmt.Sprintf("G%d", row-1), fmt.Sprintf("共 %d 条记录", len(txs)))

	return f, nil
}
