package taxapi

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

const (
	pathLedger       = "/ledger"
	pathLedgerExport = "/ledger/export"
	pathDashboard    = "/dashboard"
	pathCategories   = "/categories"

	minimumLedgerYear = 2020
	maximumLedgerYear = 2100
)

// ExportFormat selects the ledger export encoding.
type ExportFormat string

// Supported export formats.
const (
	ExportExcel ExportFormat = "excel"
	ExportCSV   ExportFormat = "csv"
)

// LedgerQuery selects a ledger period. Month 0 means the whole year.
type LedgerQuery struct {
	Year  int
	Month int
}

func (query LedgerQuery) values() (url.Values, error) {
	if query.Year < minimumLedgerYear || query.Year > maximumLedgerYear {
		return nil, invalidArgument("year must be between 2020 and 2100")
	}
	if query.Month < 0 || query.Month > 12 {
		return nil, invalidArgument("month must be between 1 and 12")
	}
	values := url.Values{}
	values.Set("year", strconv.Itoa(query.Year))
	if query.Month > 0 {
		values.Set("month", strconv.Itoa(query.Month))
	}
	return values, nil
}

// ExportFile is a downloaded ledger document.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LedgerService reads bookkeeping summaries.
type LedgerService struct {
	caller *caller
}

// Get returns the simplified ledger for a period.
func (service *LedgerService) Get(ctx context.Context, query LedgerQuery) (Ledger, error) {
	values, err := query.values()
	if err != nil {
		return Ledger{}, err
	}
	var ledger Ledger
	_, err = service.caller.call(ctx, http.MethodGet, pathLedger, values, nil, &ledger, false)
	return ledger, err
}

// Export downloads the ledger as a spreadsheet or CSV document.
func (service *LedgerService) Export(ctx context.Context, query LedgerQuery, format ExportFormat) (ExportFile, error) {
	if format == "" {
		format = ExportExcel
	}
	if format != ExportExcel && format != ExportCSV {
		return ExportFile{}, invalidArgument("format must be excel or csv")
	}
	values, err := query.values()
	if err != nil {
		return ExportFile{}, err
	}
	values.Set("format", string(format))
	response, err := service.caller.call(ctx, http.MethodGet, pathLedgerExport, values, nil, nil, false)
	if err != nil {
		return ExportFile{}, err
	}
	return ExportFile{
		Filename:    attachmentFilename(response.Header.Get("Content-Disposition"), query, format),
		ContentType: response.Header.Get("Content-Type"),
		Data:        response.Body,
	}, nil
}

// Dashboard returns the current month, year to date, category and trend summaries.
func (service *LedgerService) Dashboard(ctx context.Context) (Dashboard, error) {
	var dashboard Dashboard
	_, err := service.caller.call(ctx, http.MethodGet, pathDashboard, nil, nil, &dashboard, false)
	return dashboard, err
}

// Categories lists the account categories in display order.
func (service *LedgerService) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	_, err := service.caller.call(ctx, http.MethodGet, pathCategories, nil, nil, &categories, false)
	return categories, err
}

func attachmentFilename(contentDisposition string, query LedgerQuery, format ExportFormat) string {
	if _, params, err := mime.ParseMediaType(contentDisposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	name := "ledger_" + strconv.Itoa(query.Year)
	if query.Month > 0 {
		name += "_" + strconv.Itoa(query.Month)
	}
	if format == ExportCSV {
		return name + ".csv"
	}
	return name + ".xlsx"
}
