package taxapi

import (
	"github.com/shopspring/decimal"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

// UnlimitedUsage marks a usage limit that does not apply.
const UnlimitedUsage = -1

// SignupRequest registers an email account.
type SignupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

// LoginRequest authenticates an email account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// KakaoLoginRequest exchanges a Kakao OAuth access token for a credential pair.
type KakaoLoginRequest struct {
	AccessToken string `json:"access_token"`
}

// UserBasic is the user summary returned with a credential pair.
type UserBasic struct {
	ID       int64   `json:"id"`
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Provider string  `json:"provider"`
}

// TokenResponse is the refresh endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Credentials converts the payload into a credential pair.
func (response TokenResponse) Credentials() apiclient.Credentials {
	return apiclient.Credentials{AccessToken: response.AccessToken, RefreshToken: response.RefreshToken}
}

// AuthResponse is returned by signup, login and social login.
type AuthResponse struct {
	TokenResponse
	User UserBasic `json:"user"`
}

// User is the full account profile.
type User struct {
	ID             int64     `json:"id"`
	Email          *string   `json:"email"`
	Name           *string   `json:"name"`
	Provider       string    `json:"provider"`
	BusinessType   *string   `json:"business_type"`
	BusinessName   *string   `json:"business_name"`
	BusinessNumber *string   `json:"business_number"`
	TaxType        *string   `json:"tax_type"`
	ProfileImage   *string   `json:"profile_image"`
	IsAdmin        bool      `json:"is_admin"`
	Status         string    `json:"status"`
	IsVerified     bool      `json:"is_verified"`
	CreatedAt      Timestamp `json:"created_at"`
}

// Subscription describes the active plan.
type Subscription struct {
	PlanCode  string     `json:"plan_code"`
	PlanName  string     `json:"plan_name"`
	Status    string     `json:"status"`
	StartedAt Timestamp  `json:"started_at"`
	ExpiresAt *Timestamp `json:"expires_at"`
}

// UserWithSubscription is the /users/me payload.
type UserWithSubscription struct {
	User
	Subscription *Subscription `json:"subscription"`
}

// ProfileUpdate changes account profile fields; nil fields are left untouched.
type ProfileUpdate struct {
	Name           *string `json:"name,omitempty"`
	ProfileImage   *string `json:"profile_image,omitempty"`
	MarketingAgree *bool   `json:"marketing_agree,omitempty"`
}

// BusinessUpdate changes business registration fields; nil fields are left untouched.
type BusinessUpdate struct {
	BusinessType   *string `json:"business_type,omitempty"`
	BusinessName   *string `json:"business_name,omitempty"`
	BusinessNumber *string `json:"business_number,omitempty"`
	TaxType        *string `json:"tax_type,omitempty"`
}

// UsageInfo reports the current month's metered usage. Limits of UnlimitedUsage do not apply.
type UsageInfo struct {
	ChatUsed     int `json:"chat_used"`
	ChatLimit    int `json:"chat_limit"`
	ExpenseUsed  int `json:"expense_used"`
	ExpenseLimit int `json:"expense_limit"`
	ExportUsed   int `json:"export_used"`
	ExportLimit  int `json:"export_limit"`
}

// UserDashboard bundles profile, plan and usage.
type UserDashboard struct {
	User         User          `json:"user"`
	Subscription *Subscription `json:"subscription"`
	Usage        UsageInfo     `json:"usage"`
}

// ChatRequest asks the tax assistant a question.
type ChatRequest struct {
	Question  string  `json:"question"`
	SessionID *string `json:"session_id,omitempty"`
}

// ChatResponse is the assistant's answer. Answer is Markdown.
type ChatResponse struct {
	Answer       string   `json:"answer"`
	IsDeductible *bool    `json:"is_deductible"`
	CategoryCode *string  `json:"category_code"`
	CategoryName *string  `json:"category_name"`
	Confidence   *float64 `json:"confidence"`
	References   []string `json:"references"`
	SessionID    *string  `json:"session_id"`
}

// ChatHistoryItem is one past exchange.
type ChatHistoryItem struct {
	ID           int64     `json:"id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	IsDeductible *bool     `json:"is_deductible"`
	CategoryName *string   `json:"category_name"`
	Confidence   *float64  `json:"confidence"`
	Channel      string    `json:"channel"`
	CreatedAt    Timestamp `json:"created_at"`
}

// ChatHistoryList is a page of chat history.
type ChatHistoryList struct {
	Items []ChatHistoryItem `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
}

// Feedback rates an answer.
type Feedback string

// Accepted feedback values.
const (
	FeedbackGood Feedback = "good"
	FeedbackBad  Feedback = "bad"
)

// FeedbackRequest rates one chat exchange.
type FeedbackRequest struct {
	ChatID   int64    `json:"chat_id"`
	Feedback Feedback `json:"feedback"`
}

// CategoryInfo is the expense category summary embedded in expenses.
type CategoryInfo struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	IsDeductible bool   `json:"is_deductible"`
}

// Category is an account category usable for expense classification.
type Category struct {
	ID           int64   `json:"id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	NameEn       *string `json:"name_en"`
	Description  *string `json:"description"`
	IsDeductible bool    `json:"is_deductible"`
}

// ExpenseCreate records a new expense.
type ExpenseCreate struct {
	Date          Date             `json:"date"`
	Description   string           `json:"description"`
	Amount        decimal.Decimal  `json:"amount"`
	VATAmount     *decimal.Decimal `json:"vat_amount,omitempty"`
	CategoryID    *int64           `json:"category_id,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	EvidenceType  string           `json:"evidence_type,omitempty"`
	Vendor        *string          `json:"vendor,omitempty"`
	Memo          *string          `json:"memo,omitempty"`
}

// ExpenseUpdate changes an expense; nil fields are left untouched.
type ExpenseUpdate struct {
	Date          *Date            `json:"date,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	VATAmount     *decimal.Decimal `json:"vat_amount,omitempty"`
	CategoryID    *int64           `json:"category_id,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	EvidenceType  *string          `json:"evidence_type,omitempty"`
	Vendor        *string          `json:"vendor,omitempty"`
	Memo          *string          `json:"memo,omitempty"`
	IsDeductible  *bool            `json:"is_deductible,omitempty"`
	IsConfirmed   *bool            `json:"is_confirmed,omitempty"`
}

// Expense is a recorded expense including AI classification results.
type Expense struct {
	ID            int64            `json:"id"`
	Date          Date             `json:"date"`
	Description   string           `json:"description"`
	Amount        decimal.Decimal  `json:"amount"`
	VATAmount     *decimal.Decimal `json:"vat_amount"`
	Category      *CategoryInfo    `json:"category"`
	PaymentMethod *string          `json:"payment_method"`
	EvidenceType  string           `json:"evidence_type"`
	Vendor        *string          `json:"vendor"`
	Memo          *string          `json:"memo"`
	IsDeductible  *bool            `json:"is_deductible"`
	AIClassified  bool             `json:"ai_classified"`
	AICategory    *CategoryInfo    `json:"ai_category"`
	AIConfidence  *float64         `json:"ai_confidence"`
	AIReason      *string          `json:"ai_reason"`
	IsConfirmed   bool             `json:"is_confirmed"`
	CreatedAt     Timestamp        `json:"created_at"`
	UpdatedAt     Timestamp        `json:"updated_at"`
}

// ExpenseList is a page of expenses.
type ExpenseList struct {
	Items       []Expense       `json:"items"`
	Total       int             `json:"total"`
	Page        int             `json:"page"`
	Size        int             `json:"size"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ClassifyRequest asks for a category suggestion without saving an expense.
type ClassifyRequest struct {
	Description string           `json:"description"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Vendor      *string          `json:"vendor,omitempty"`
}

// ClassifyResponse is a category suggestion.
type ClassifyResponse struct {
	CategoryCode string  `json:"category_code"`
	CategoryName string  `json:"category_name"`
	IsDeductible bool    `json:"is_deductible"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}

// LedgerEntry is one line of the simplified ledger.
type LedgerEntry struct {
	Date         Date            `json:"date"`
	Description  string          `json:"description"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	CategoryName *string         `json:"category_name"`
	EvidenceType string          `json:"evidence_type"`
	IsDeductible *bool           `json:"is_deductible"`
}

// LedgerSummary totals a ledger period.
type LedgerSummary struct {
	TotalIncome          decimal.Decimal `json:"total_income"`
	TotalExpense         decimal.Decimal `json:"total_expense"`
	DeductibleExpense    decimal.Decimal `json:"deductible_expense"`
	NonDeductibleExpense decimal.Decimal `json:"non_deductible_expense"`
	NetIncome            decimal.Decimal `json:"net_income"`
	EstimatedTax         decimal.Decimal `json:"estimated_tax"`
}

// PeriodInfo bounds a ledger.
type PeriodInfo struct {
	StartDate Date `json:"start_date"`
	EndDate   Date `json:"end_date"`
	Year      int  `json:"year"`
	Month     *int `json:"month"`
}

// Ledger is the simplified bookkeeping view for a period.
type Ledger struct {
	Entries []LedgerEntry `json:"entries"`
	Summary LedgerSummary `json:"summary"`
	Period  PeriodInfo    `json:"period"`
}

// CategoryStats is spending for one category.
type CategoryStats struct {
	CategoryCode string          `json:"category_code"`
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
	Count        int             `json:"count"`
	Percentage   float64         `json:"percentage"`
}

// MonthlyStats is one point of the monthly trend.
type MonthlyStats struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Deductible decimal.Decimal `json:"deductible"`
	Net        decimal.Decimal `json:"net"`
}

// CurrentMonthSummary totals the current month.
type CurrentMonthSummary struct {
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Deductible   decimal.Decimal `json:"deductible"`
	Net          decimal.Decimal `json:"net"`
	ExpenseCount int             `json:"expense_count"`
}

// YearToDateSummary totals the year so far.
type YearToDateSummary struct {
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Deductible   decimal.Decimal `json:"deductible"`
	EstimatedTax decimal.Decimal `json:"estimated_tax"`
}

// Dashboard is the bookkeeping overview.
type Dashboard struct {
	CurrentMonth      CurrentMonthSummary `json:"current_month"`
	YearToDate        YearToDateSummary   `json:"ytd"`
	ExpenseByCategory []CategoryStats     `json:"expense_by_category"`
	MonthlyTrend      []MonthlyStats      `json:"monthly_trend"`
}
