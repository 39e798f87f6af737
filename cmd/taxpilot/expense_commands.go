package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tyemirov/taxpilot/internal/taxapi"
)

func newExpensesCommand() *cobra.Command {
	expensesCmd := &cobra.Command{Use: "expenses", Short: "Record and classify expenses"}
	expensesCmd.AddCommand(
		newExpensesListCommand(),
		newExpensesGetCommand(),
		newExpensesAddCommand(),
		newExpensesUpdateCommand(),
		newExpensesDeleteCommand(),
		newExpensesClassifyCommand(),
		newExpensesPreviewCommand(),
	)
	return expensesCmd
}

// expenseFields holds the flags shared by add and update.
type expenseFields struct {
	date          string
	description   string
	amount        string
	vatAmount     string
	categoryID    int64
	paymentMethod string
	evidenceType  string
	vendor        string
	memo          string
}

func (fields *expenseFields) register(flags *pflag.FlagSet) {
	flags.StringVar(&fields.date, "date", "", "Expense date (YYYY-MM-DD)")
	flags.StringVar(&fields.description, "description", "", "What was bought")
	flags.StringVar(&fields.amount, "amount", "", "Amount in won")
	flags.StringVar(&fields.vatAmount, "vat", "", "VAT portion of the amount")
	flags.Int64Var(&fields.categoryID, "category-id", 0, "Account category id")
	flags.StringVar(&fields.paymentMethod, "payment-method", "", "card, cash, transfer, ...")
	flags.StringVar(&fields.evidenceType, "evidence-type", "", "Receipt type")
	flags.StringVar(&fields.vendor, "vendor", "", "Vendor name")
	flags.StringVar(&fields.memo, "memo", "", "Free-form note")
}

func parseAmount(name string, value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: --%s %q is not a number", taxapi.ErrInvalidArgument, name, value)
	}
	return amount, nil
}

func parseID(value string) (int64, error) {
	identifier, err := strconv.ParseInt(value, 10, 64)
	if err != nil || identifier <= 0 {
		return 0, fmt.Errorf("%w: id %q", taxapi.ErrInvalidArgument, value)
	}
	return identifier, nil
}

func newExpensesListCommand() *cobra.Command {
	var page, size int
	var startDate, endDate string
	var categoryID int64
	var deductible bool
	command := &cobra.Command{
		Use:   "list",
		Short: "List expenses",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			query := taxapi.ExpenseQuery{Page: page, Size: size}
			flags := command.Flags()
			if startDate != "" {
				parsed, err := taxapi.ParseDate(startDate)
				if err != nil {
					return err
				}
				query.StartDate = &parsed
			}
			if endDate != "" {
				parsed, err := taxapi.ParseDate(endDate)
				if err != nil {
					return err
				}
				query.EndDate = &parsed
			}
			if flags.Changed("category-id") {
				query.CategoryID = &categoryID
			}
			if flags.Changed("deductible") {
				query.IsDeductible = &deductible
			}
			list, err := app.services.Expenses.List(command.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, list)
		}),
	}
	command.Flags().IntVar(&page, "page", 0, "Page number")
	command.Flags().IntVar(&size, "size", 0, "Page size (at most 100)")
	command.Flags().StringVar(&startDate, "from", "", "First date (YYYY-MM-DD)")
	command.Flags().StringVar(&endDate, "to", "", "Last date (YYYY-MM-DD)")
	command.Flags().Int64Var(&categoryID, "category-id", 0, "Only this category")
	command.Flags().BoolVar(&deductible, "deductible", false, "Only deductible (or, with =false, non-deductible) expenses")
	return command
}

func newExpensesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one expense",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			expenseID, err := parseID(arguments[0])
			if err != nil {
				return err
			}
			expense, err := app.services.Expenses.Get(command.Context(), expenseID)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, expense)
		}),
	}
}

func newExpensesAddCommand() *cobra.Command {
	var fields expenseFields
	command := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			if err := requireFlag("amount", fields.amount); err != nil {
				return err
			}
			amount, err := parseAmount("amount", fields.amount)
			if err != nil {
				return err
			}
			today := time.Now()
			expense := taxapi.ExpenseCreate{
				Date:         taxapi.NewDate(today.Year(), today.Month(), today.Day()),
				Description:  fields.description,
				Amount:       amount,
				EvidenceType: fields.evidenceType,
			}
			flags := command.Flags()
			if fields.date != "" {
				if expense.Date, err = taxapi.ParseDate(fields.date); err != nil {
					return err
				}
			}
			if fields.vatAmount != "" {
				vat, err := parseAmount("vat", fields.vatAmount)
				if err != nil {
					return err
				}
				expense.VATAmount = &vat
			}
			if flags.Changed("category-id") {
				expense.CategoryID = &fields.categoryID
			}
			if flags.Changed("payment-method") {
				expense.PaymentMethod = &fields.paymentMethod
			}
			if flags.Changed("vendor") {
				expense.Vendor = &fields.vendor
			}
			if flags.Changed("memo") {
				expense.Memo = &fields.memo
			}
			created, err := app.services.Expenses.Create(command.Context(), expense)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, created)
		}),
	}
	fields.register(command.Flags())
	return command
}

func newExpensesUpdateCommand() *cobra.Command {
	var fields expenseFields
	var deductible, confirmed bool
	command := &cobra.Command{
		Use:   "update ID",
		Short: "Change an expense; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			expenseID, err := parseID(arguments[0])
			if err != nil {
				return err
			}
			var update taxapi.ExpenseUpdate
			flags := command.Flags()
			if flags.Changed("date") {
				parsed, err := taxapi.ParseDate(fields.date)
				if err != nil {
					return err
				}
				update.Date = &parsed
			}
			if flags.Changed("description") {
				update.Description = &fields.description
			}
			if flags.Changed("amount") {
				amount, err := parseAmount("amount", fields.amount)
				if err != nil {
					return err
				}
				update.Amount = &amount
			}
			if flags.Changed("vat") {
				vat, err := parseAmount("vat", fields.vatAmount)
				if err != nil {
					return err
				}
				update.VATAmount = &vat
			}
			if flags.Changed("category-id") {
				update.CategoryID = &fields.categoryID
			}
			if flags.Changed("payment-method") {
				update.PaymentMethod = &fields.paymentMethod
			}
			if flags.Changed("evidence-type") {
				update.EvidenceType = &fields.evidenceType
			}
			if flags.Changed("vendor") {
				update.Vendor = &fields.vendor
			}
			if flags.Changed("memo") {
				update.Memo = &fields.memo
			}
			if flags.Changed("deductible") {
				update.IsDeductible = &deductible
			}
			if flags.Changed("confirmed") {
				update.IsConfirmed = &confirmed
			}
			updated, err := app.services.Expenses.Update(command.Context(), expenseID, update)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, updated)
		}),
	}
	fields.register(command.Flags())
	command.Flags().BoolVar(&deductible, "deductible", false, "Mark as deductible")
	command.Flags().BoolVar(&confirmed, "confirmed", false, "Confirm the classification")
	return command
}

func newExpensesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			expenseID, err := parseID(arguments[0])
			if err != nil {
				return err
			}
			if err := app.services.Expenses.Delete(command.Context(), expenseID); err != nil {
				return err
			}
			writeLine(app.streams.out, "Deleted expense %d.", expenseID)
			return nil
		}),
	}
}

func newExpensesClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify ID",
		Short: "Run AI classification on a stored expense",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			expenseID, err := parseID(arguments[0])
			if err != nil {
				return err
			}
			classified, err := app.services.Expenses.Classify(command.Context(), expenseID)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, classified)
		}),
	}
}

func newExpensesPreviewCommand() *cobra.Command {
	var description, amount, vendor string
	command := &cobra.Command{
		Use:   "preview",
		Short: "Suggest a category without saving anything",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			request := taxapi.ClassifyRequest{Description: description}
			if amount != "" {
				parsed, err := parseAmount("amount", amount)
				if err != nil {
					return err
				}
				request.Amount = &parsed
			}
			if vendor != "" {
				request.Vendor = &vendor
			}
			suggestion, err := app.services.Expenses.ClassifyPreview(command.Context(), request)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, suggestion)
		}),
	}
	command.Flags().StringVar(&description, "description", "", "What was bought")
	command.Flags().StringVar(&amount, "amount", "", "Amount in won")
	command.Flags().StringVar(&vendor, "vendor", "", "Vendor name")
	return command
}
