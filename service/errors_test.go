package service

import (
	"errors"
	"fmt"
	"testing"

	"bookkeeping/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsValidation(t *testing.T) {
	single := NewValidationError("amount", "金额不能为负数")
	wrapped := fmt.Errorf("创建失败: %w", single)

	verrs, ok := AsValidation(wrapped)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"amount": "金额不能为负数"}, verrs.Fields())

	many := ValidationErrors{single, NewValidationError("type", "x")}
	verrs, ok = AsValidation(many)
	require.True(t, ok)
	assert.Len(t, verrs, 2)
	assert.Equal(t, "amount: 金额不能为负数; type: x", many.Error())

	_, ok = AsValidation(errors.New("boom"))
	assert.False(t, ok)
	_, ok = AsValidation(ErrNotFound)
	assert.False(t, ok)
}

func TestValidateTransactionCategory(t *testing.T) {
	expense := &models.Category{Name: "Travel", Type: models.TransactionExpense, IsActive: true}

	assert.NoError(t, ValidateTransactionCategory(expense, models.TransactionExpense))

	err := ValidateTransactionCategory(expense, models.TransactionIncome)
	verrs, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "category_id", verrs[0].Field)

	_, ok = AsValidation(ValidateTransactionCategory(nil, models.TransactionExpense))
	assert.True(t, ok)

	inactive := &models.Category{Name: "Old", Type: models.TransactionExpense}
	_, ok = AsValidation(ValidateTransactionCategory(inactive, models.TransactionExpense))
	assert.True(t, ok)

	verrs, ok = AsValidation(ValidateTransactionCategory(expense, models.TransactionType("transfer")))
	require.True(t, ok)
	assert.Equal(t, "type", verrs[0].Field)
}
