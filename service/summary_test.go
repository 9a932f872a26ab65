package service

import (
	"context"
	"testing"
	"time"

	"bookkeeping/models"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCategories() (food, travel, salary *models.Category) {
	food = &models.Category{ID: 1, Name: "Food & Dining", Type: models.TransactionExpense, IsActive: true}
	travel = &models.Category{ID: 2, Name: "Travel", Type: models.TransactionExpense, IsActive: true}
	salary = &models.Category{ID: 3, Name: "Salary", Type: models.TransactionIncome, IsActive: true}
	return
}

func TestBuildSummary_Empty(t *testing.T) {
	s := BuildSummary(nil, DateRange{})

	assert.True(t, s.TotalIncome.IsZero())
	assert.True(t, s.TotalExpenses.IsZero())
	assert.True(t, s.Balance.IsZero())
	assert.Zero(t, s.TotalTransactions)
	assert.NotNil(t, s.RecentTransactions)
	assert.Empty(t, s.RecentTransactions)
	assert.NotNil(t, s.CategoryBreakdown)
	assert.Empty(t, s.CategoryBreakdown)
	assert.Empty(t, s.MonthlyBreakdown)
	assert.Nil(t, s.DateRange.StartDate)
}

func TestBuildSummary_Totals(t *testing.T) {
	food, travel, salary := sampleCategories()
	st := newMemStore()
	st.addTx(1, models.TransactionIncome, "3000.10", day(2024, 1, 31), salary)
	st.addTx(1, models.TransactionExpense, "0.10", day(2024, 2, 1), food)
	st.addTx(1, models.TransactionExpense, "0.20", day(2024, 2, 1), food)
	st.addTx(1, models.TransactionExpense, "120.33", day(2024, 2, 3), travel)
	st.addTx(1, models.TransactionIncome, "0.01", day(2024, 2, 9), salary)

	s := BuildSummary(st.transactions, DateRange{})

	assert.Equal(t, "3000.11", s.TotalIncome.StringFixed(2))
	assert.Equal(t, "120.63", s.TotalExpenses.StringFixed(2))
	assert.True(t, s.TotalIncome.Sub(s.TotalExpenses).Equal(s.Balance))
	assert.Equal(t, "2879.48", s.Balance.StringFixed(2))
	assert.Equal(t, 5, s.TotalTransactions)
	assert.Equal(t, 2, s.IncomeTransactions)
	assert.Equal(t, 3, s.ExpenseTransactions)

	// 类别合计之和等于收入与支出之和
	sum := decimal.Zero
	for _, ct := range s.CategoryBreakdown {
		sum = sum.Add(ct.Total)
	}
	assert.True(t, s.TotalIncome.Add(s.TotalExpenses).Equal(sum))

	require.Len(t, s.CategoryBreakdown, 3)
	assert.Equal(t, "Salary", s.CategoryBreakdown[0].CategoryName)
	assert.Equal(t, models.TransactionIncome, s.CategoryBreakdown[0].CategoryType)
	assert.Equal(t, "Travel", s.CategoryBreakdown[1].CategoryName)
	assert.Equal(t, "Food & Dining", s.CategoryBreakdown[2].CategoryName)
	assert.Equal(t, 2, s.CategoryBreakdown[2].Count)
	assert.Equal(t, "0.30", s.CategoryBreakdown[2].Total.StringFixed(2))

	require.Len(t, s.MonthlyBreakdown, 2)
	assert.Equal(t, "2024-01", s.MonthlyBreakdown[0].Month)
	assert.Equal(t, "3000.10", s.MonthlyBreakdown[0].Balance.StringFixed(2))
	assert.Equal(t, "2024-02", s.MonthlyBreakdown[1].Month)
	assert.Equal(t, "-120.62", s.MonthlyBreakdown[1].Balance.StringFixed(2))
}

func TestBuildSummary_BalanceIdentity(t *testing.T) {
	amounts := []string{"0.01", "19.99", "0.10", "0.20", "1234567.89", "33.33", "66.67", "0.07"}
	var txs []models.Transaction
	for i, a := range amounts {
		typ := models.TransactionExpense
		if i%3 == 0 {
			typ = models.TransactionIncome
		}
		txs = append(txs, models.Transaction{
			ID: uint(i + 1), Type: typ, Amount: decimal.RequireFromString(a), Date: day(2024, 5, i+1),
		})

		s := BuildSummary(txs, DateRange{})
		assert.True(t, s.TotalIncome.Sub(s.TotalExpenses).Equal(s.Balance), "after %d transactions", i+1)

		sum := decimal.Zero
		for _, ct := range s.CategoryBreakdown {
			sum = sum.Add(ct.Total)
		}
		assert.True(t, s.TotalIncome.Add(s.TotalExpenses).Equal(sum))
	}
}

func TestBuildSummary_TieBreakByName(t *testing.T) {
	a := &models.Category{Name: "B", Type: models.TransactionExpense}
	b := &models.Category{Name: "A", Type: models.TransactionExpense}
	txs := []models.Transaction{
		{ID: 1, Type: models.TransactionExpense, Amount: decimal.NewFromInt(10), Date: day(2024, 1, 1), Category: a},
		{ID: 2, Type: models.TransactionExpense, Amount: decimal.NewFromInt(10), Date: day(2024, 1, 1), Category: b},
	}
	s := BuildSummary(txs, DateRange{})
	require.Len(t, s.CategoryBreakdown, 2)
	assert.Equal(t, "A", s.CategoryBreakdown[0].CategoryName)
	assert.Equal(t, "B", s.CategoryBreakdown[1].CategoryName)
}

func TestBuildSummary_RecentTransactions(t *testing.T) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	var txs []models.Transaction
	for i := 1; i <= 7; i++ {
		txs = append(txs, models.Transaction{
			ID:        uint(i),
			Type:      models.TransactionExpense,
			Amount:    decimal.NewFromInt(int64(i)),
			Date:      day(2024, 6, 1+i%3),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	s := BuildSummary(txs, DateRange{})
	require.Len(t, s.RecentTransactions, 5)

	var ids []uint
	for _, tx := range s.RecentTransactions {
		ids = append(ids, tx.ID)
	}
	// 日期倒序，同日按创建时间倒序
	assert.Equal(t, []uint{5, 2, 7, 4, 1}, ids)
}

func TestBuildSummary_DateRange(t *testing.T) {
	_, _, salary := sampleCategories()
	txs := []models.Transaction{
		{ID: 1, Type: models.TransactionIncome, Amount: decimal.NewFromInt(1), Date: day(2024, 1, 31), Category: salary},
		{ID: 2, Type: models.TransactionIncome, Amount: decimal.NewFromInt(2), Date: day(2024, 2, 1), Category: salary},
		{ID: 3, Type: models.TransactionIncome, Amount: decimal.NewFromInt(4), Date: day(2024, 2, 29), Category: salary},
		{ID: 4, Type: models.TransactionIncome, Amount: decimal.NewFromInt(8), Date: day(2024, 3, 1), Category: salary},
	}
	r := DateRange{Start: ptrTime(day(2024, 2, 1)), End: ptrTime(day(2024, 2, 29))}

	s := BuildSummary(txs, r)
	assert.Equal(t, "6", s.TotalIncome.String())
	assert.Equal(t, 2, s.TotalTransactions)
	require.NotNil(t, s.DateRange.StartDate)
	assert.Equal(t, "2024-02-01", *s.DateRange.StartDate)
	assert.Equal(t, "2024-02-29", *s.DateRange.EndDate)
}

func TestBuildSummary_DeletedCategory(t *testing.T) {
	gone := &models.Category{Name: "Travel", Type: models.TransactionExpense}
	gone.DeletedAt.Valid = true
	txs := []models.Transaction{
		{ID: 1, Type: models.TransactionExpense, Amount: decimal.NewFromInt(5), Date: day(2024, 1, 1), Category: gone},
	}
	s := BuildSummary(txs, DateRange{})
	require.Len(t, s.CategoryBreakdown, 1)
	assert.Equal(t, "Unknown", s.CategoryBreakdown[0].CategoryName)
}

func TestAssembleSummary_FromGroupedRows(t *testing.T) {
	rows := []SummaryRow{
		{Month: "2024-02", CategoryName: "Food & Dining", Type: models.TransactionExpense, Total: decimal.RequireFromString("0.30"), Count: 2},
		{Month: "2024-01", CategoryName: "Salary", Type: models.TransactionIncome, Total: decimal.RequireFromString("3000.10"), Count: 1},
		{Month: "2024-02", CategoryName: "Food & Dining", Type: models.TransactionExpense, Total: decimal.RequireFromString("1.70"), Count: 1},
		{Month: "2024-02", CategoryName: "Other", Type: "transfer", Total: decimal.NewFromInt(99), Count: 1},
	}
	recent := make([]models.Transaction, 7)

	s := AssembleSummary(rows, recent, DateRange{})
	assert.Equal(t, "3000.10", s.TotalIncome.StringFixed(2))
	assert.Equal(t, "2.00", s.TotalExpenses.StringFixed(2))
	assert.Equal(t, 4, s.TotalTransactions)
	assert.Equal(t, 3, s.ExpenseTransactions)
	require.Len(t, s.CategoryBreakdown, 2)
	assert.Equal(t, "Food & Dining", s.CategoryBreakdown[1].CategoryName)
	assert.Equal(t, 3, s.CategoryBreakdown[1].Count)
	require.Len(t, s.MonthlyBreakdown, 2)
	assert.Equal(t, "2024-01", s.MonthlyBreakdown[0].Month)
	assert.Len(t, s.RecentTransactions, recentLimit)
}

func TestAggregateTransactions_GroupsByMonthCategoryType(t *testing.T) {
	food, _, salary := sampleCategories()
	txs := []models.Transaction{
		{ID: 1, Type: models.TransactionExpense, Amount: decimal.RequireFromString("0.10"), Date: day(2024, 2, 1), Category: food},
		{ID: 2, Type: models.TransactionExpense, Amount: decimal.RequireFromString("0.20"), Date: day(2024, 2, 28), Category: food},
		{ID: 3, Type: models.TransactionExpense, Amount: decimal.RequireFromString("1.00"), Date: day(2024, 3, 1), Category: food},
		{ID: 4, Type: models.TransactionIncome, Amount: decimal.RequireFromString("9"), Date: day(2024, 2, 2), Category: salary},
		{ID: 5, Type: models.TransactionExpense, Amount: decimal.RequireFromString("4"), Date: day(2024, 2, 2)},
	}

	rows := AggregateTransactions(txs, DateRange{})
	require.Len(t, rows, 4)
	assert.Equal(t, SummaryRow{Month: "2024-02", CategoryName: "Food & Dining", Type: models.TransactionExpense, Total: rows[0].Total, Count: 2}, rows[0])
	assert.Equal(t, "0.30", rows[0].Total.StringFixed(2))
	assert.Equal(t, "2024-03", rows[1].Month)
	assert.Equal(t, "Unknown", rows[3].CategoryName)
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("", "", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, r.Start)
	assert.Nil(t, r.End)

	r, err = ParseDateRange("2024-01-01", "2024-01-31", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 1), *r.Start)
	assert.Equal(t, day(2024, 1, 31), *r.End)

	_, err = ParseDateRange("2024/01/01", "bad", time.UTC)
	verrs, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"start_date": "日期格式错误，应为 YYYY-MM-DD",
		"end_date":   "日期格式错误，应为 YYYY-MM-DD",
	}, verrs.Fields())

	_, err = ParseDateRange("2024-02-01", "2024-01-01", time.UTC)
	verrs, ok = AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "date_range", verrs[0].Field)
}

func TestSummarize_InvertedRange(t *testing.T) {
	svc := NewSummaryService(newMemStore(), nil, nil)
	_, err := svc.Summarize(context.Background(), 1, DateRange{Start: ptrTime(day(2024, 2, 1)), End: ptrTime(day(2024, 1, 1))})
	_, ok := AsValidation(err)
	assert.True(t, ok)
}

func TestSummarize_StoreError(t *testing.T) {
	st := newMemStore()
	st.err = assert.AnError
	_, err := NewSummaryService(st, nil, nil).Summarize(context.Background(), 1, DateRange{})
	assert.ErrorIs(t, err, assert.AnError)
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSummarize_Cache(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	st.addTx(1, models.TransactionExpense, "10", day(2024, 1, 1), nil)

	svc := NewSummaryService(st, NewSummaryCache(setupTestRedis(t), time.Minute), nil)

	first, err := svc.Summarize(ctx, 1, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, "10", first.TotalExpenses.String())

	// 未失效前返回缓存结果
	st.addTx(1, models.TransactionExpense, "5", day(2024, 1, 2), nil)
	cached, err := svc.Summarize(ctx, 1, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, "10", cached.TotalExpenses.String())

	svc.Invalidate(ctx, 1)
	fresh, err := svc.Summarize(ctx, 1, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, "15", fresh.TotalExpenses.String())
	assert.Equal(t, 2, fresh.ExpenseTransactions)
}

func TestSummarize_CacheUnavailable(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	st := newMemStore()
	st.addTx(1, models.TransactionIncome, "7", day(2024, 1, 1), nil)

	svc := NewSummaryService(st, NewSummaryCache(client, time.Minute), nil)
	s, err := svc.Summarize(ctx, 1, DateRange{})
	require.NoError(t, err, "缓存不可用时直接查库")
	assert.Equal(t, "7", s.TotalIncome.String())
}
