package taxapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	pathExpenses        = "/expenses"
	pathExpenseClassify = "/expenses/classify"
)

// ExpenseService records and classifies expenses.
type ExpenseService struct {
	caller *caller
}

// ExpenseQuery filters the expense list. Nil and zero fields are omitted.
type ExpenseQuery struct {
	Page         int
	Size         int
	StartDate    *Date
	EndDate      *Date
	CategoryID   *int64
	IsDeductible *bool
}

func (query ExpenseQuery) values() (url.Values, error) {
	values := url.Values{}
	if err := setPaging(values, query.Page, query.Size); err != nil {
		return nil, err
	}
	if query.StartDate != nil {
		values.Set("start_date", query.StartDate.String())
	}
	if query.EndDate != nil {
		values.Set("end_date", query.EndDate.String())
	}
	if query.StartDate != nil && query.EndDate != nil && query.EndDate.Before(query.StartDate.Time) {
		return nil, invalidArgument("end date precedes start date")
	}
	if query.CategoryID != nil {
		values.Set("category_id", strconv.FormatInt(*query.CategoryID, 10))
	}
	if query.IsDeductible != nil {
		values.Set("is_deductible", strconv.FormatBool(*query.IsDeductible))
	}
	return values, nil
}

// Create records an expense.
func (service *ExpenseService) Create(ctx context.Context, expense ExpenseCreate) (Expense, error) {
	if strings.TrimSpace(expense.Description) == "" {
		return Expense{}, invalidArgument("description is required")
	}
	if !expense.Amount.IsPositive() {
		return Expense{}, invalidArgument("amount must be positive")
	}
	if expense.VATAmount != nil && expense.VATAmount.IsNegative() {
		return Expense{}, invalidArgument("vat amount must not be negative")
	}
	var created Expense
	_, err := service.caller.call(ctx, http.MethodPost, pathExpenses, nil, expense, &created, false)
	return created, err
}

// List returns a filtered page of expenses.
func (service *ExpenseService) List(ctx context.Context, query ExpenseQuery) (ExpenseList, error) {
	values, err := query.values()
	if err != nil {
		return ExpenseList{}, err
	}
	var list ExpenseList
	_, err = service.caller.call(ctx, http.MethodGet, pathExpenses, values, nil, &list, false)
	return list, err
}

// Get returns one expense.
func (service *ExpenseService) Get(ctx context.Context, expenseID int64) (Expense, error) {
	var expense Expense
	_, err := service.caller.call(ctx, http.MethodGet, expensePath(expenseID), nil, nil, &expense, false)
	return expense, err
}

// Update changes an expense.
func (service *ExpenseService) Update(ctx context.Context, expenseID int64, update ExpenseUpdate) (Expense, error) {
	if update.Amount != nil && !update.Amount.IsPositive() {
		return Expense{}, invalidArgument("amount must be positive")
	}
	var expense Expense
	_, err := service.caller.call(ctx, http.MethodPut, expensePath(expenseID), nil, update, &expense, false)
	return expense, err
}

// Delete removes an expense.
func (service *ExpenseService) Delete(ctx context.Context, expenseID int64) error {
	_, err := service.caller.call(ctx, http.MethodDelete, expensePath(expenseID), nil, nil, nil, false)
	return err
}

// Classify runs AI classification on a stored expense and returns the updated record.
func (service *ExpenseService) Classify(ctx context.Context, expenseID int64) (Expense, error) {
	var expense Expense
	_, err := service.caller.call(ctx, http.MethodPost, expensePath(expenseID)+"/classify", nil, nil, &expense, false)
	return expense, err
}

// ClassifyPreview suggests a category for a description without saving anything.
func (service *ExpenseService) ClassifyPreview(ctx context.Context, request ClassifyRequest) (ClassifyResponse, error) {
	if strings.TrimSpace(request.Description) == "" {
		return ClassifyResponse{}, invalidArgument("description is required")
	}
	var response ClassifyResponse
	_, err := service.caller.call(ctx, http.MethodPost, pathExpenseClassify, nil, request, &response, false)
	return response, err
}

func expensePath(expenseID int64) string {
	return pathExpenses + "/" + strconv.FormatInt(expenseID, 10)
}
