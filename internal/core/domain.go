package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Required ExpenseType = "required"
	Optional ExpenseType = "optional"
)

// DefaultCategory is used when an expense arrives without a category.
const DefaultCategory = "Other"

// DateLayout is the calendar date format used for storage and CSV.
const DateLayout = "2006-01-02"

type (
	ExpenseType string

	// ExpenseID identifies an expense for its whole lifetime.
	ExpenseID string

	Date struct {
		time.Time
	}

	Expense struct {
		ID        ExpenseID
		Title     string
		Amount    decimal.Decimal
		Date      Date
		Category  string
		Type      ExpenseType
		Currency  Currency
		Recurring bool
	}

	// Draft holds the mutable fields of an expense, as entered by the user.
	Draft struct {
		Title     string
		Amount    decimal.Decimal
		Date      Date
		Category  string
		Type      ExpenseType
		Currency  Currency
		Recurring bool
	}

	// Budget is the monthly allowance for one category. Amount is in base units.
	Budget struct {
		Category       string
		Amount         decimal.Decimal
		Currency       Currency
		OriginalAmount decimal.Decimal
	}
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("expense not found")
	ErrInvalidType          = errors.New("invalid expense type")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyTitle           = errors.New("empty title")
	ErrEmptyCategory        = errors.New("empty category")
	ErrInvalidMonthSelector = errors.New("invalid month selector")
)

// FieldError names one field that failed validation.
type FieldError struct {
	Field string
	Err   error
}

// ValidationError lists every field of a draft that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Err.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Has reports whether the named field failed.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field string, err error) {
	e.Fields = append(e.Fields, FieldError{Field: field, Err: err})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ParseExpenseType accepts exactly "required" or "optional" (any case).
// An empty string yields the zero value, which filters treat as "any".
func ParseExpenseType(s string) (ExpenseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case string(Required):
		return Required, nil
	case string(Optional):
		return Optional, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// NormalizeExpenseType is the lenient form used by imports: anything that is
// not "required" becomes optional.
func NormalizeExpenseType(s string) ExpenseType {
	if strings.EqualFold(strings.TrimSpace(s), string(Required)) {
		return Required
	}
	return Optional
}

func (t ExpenseType) IsValid() bool {
	return t == Required || t == Optional
}

func (t ExpenseType) String() string {
	return string(t)
}

// NewExpenseID returns a fresh random identifier.
func NewExpenseID() ExpenseID {
	return ExpenseID(uuid.NewString())
}

// UnmarshalJSON accepts both strings and the numeric ids older snapshots used.
func (id *ExpenseID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ExpenseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expense id: %w", err)
	}
	*id = ExpenseID(n.String())
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// InMonth reports whether the date falls in the given calendar month.
func (d Date) InMonth(year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks every field and reports all failures at once.
func (d Draft) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(d.Title) == "" {
		verr.add("title", ErrEmptyTitle)
	}
	if !d.Amount.IsPositive() {
		verr.add("amount", ErrInvalidAmount)
	}
	if err := d.Date.Validate(); err != nil {
		verr.add("date", ErrInvalidDate)
	}
	if d.Type != "" && !d.Type.IsValid() {
		verr.add("type", ErrInvalidType)
	}
	if d.Currency != "" && !d.Currency.IsValid() {
		verr.add("currency", ErrInvalidCurrency)
	}
	return verr.orNil()
}

// Normalized fills the defaults the ledger applies to every record.
func (d Draft) Normalized() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Category = strings.TrimSpace(d.Category)
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	if d.Type == "" {
		d.Type = Optional
	}
	if d.Currency == "" {
		d.Currency = BaseCurrency
	}
	return d
}

// Expense materializes the draft under the given id.
func (d Draft) Expense(id ExpenseID) Expense {
	n := d.Normalized()
	return Expense{
		ID:        id,
		Title:     n.Title,
		Amount:    n.Amount,
		Date:      n.Date,
		Category:  n.Category,
		Type:      n.Type,
		Currency:  n.Currency,
		Recurring: n.Recurring,
	}
}

// Draft returns the mutable fields of e.
func (e Expense) Draft() Draft {
	return Draft{
		Title:     e.Title,
		Amount:    e.Amount,
		Date:      e.Date,
		Category:  e.Category,
		Type:      e.Type,
		Currency:  e.Currency,
		Recurring: e.Recurring,
	}
}

func (e Expense) Validate() error {
	return e.Draft().Validate()
}

// expenseJSON is the snapshot form. decimal.Decimal decodes both JSON numbers
// and strings, so snapshots holding plain numeric amounts still load.
type expenseJSON struct {
	ID        ExpenseID       `json:"id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Date      Date            `json:"date"`
	Category  string          `json:"category"`
	Type      ExpenseType     `json:"type"`
	Currency  Currency        `json:"currency,omitempty"`
	Recurring bool            `json:"recurring"`
}

func (e Expense) MarshalJSON() ([]byte, error) {
	return json.Marshal(expenseJSON{
		ID:        e.ID,
		Title:     e.Title,
		Amount:    e.Amount,
		Date:      e.Date,
		Category:  e.Category,
		Type:      e.Type,
		Currency:  e.Currency,
		Recurring: e.Recurring,
	})
}

func (e *Expense) UnmarshalJSON(b []byte) error {
	var raw expenseJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	cur, err := ParseCurrency(string(raw.Currency))
	if err != nil {
		return err
	}
	*e = Expense{
		ID:        raw.ID,
		Title:     raw.Title,
		Amount:    raw.Amount,
		Date:      raw.Date,
		Category:  raw.Category,
		Type:      NormalizeExpenseType(string(raw.Type)),
		Currency:  cur,
		Recurring: raw.Recurring,
	}
	return nil
}

type budgetJSON struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       Currency        `json:"currency"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
}

// EncodeBudgets renders budgets in the snapshot form: category -> budget.
func EncodeBudgets(budgets map[string]Budget) ([]byte, error) {
	out := make(map[string]budgetJSON, len(budgets))
	for cat, b := range budgets {
		out[cat] = budgetJSON{Amount: b.Amount, Currency: b.Currency, OriginalAmount: b.OriginalAmount}
	}
	return json.Marshal(out)
}

// DecodeBudgets parses the snapshot form. Entries with a non-positive amount
// or unknown currency are returned in skipped.
func DecodeBudgets(data []byte) (budgets map[string]Budget, skipped []string, err error) {
	var raw map[string]budgetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode budgets: %w", err)
	}
	budgets = make(map[string]Budget, len(raw))
	for cat, b := range raw {
		cur, cerr := ParseCurrency(string(b.Currency))
		if cerr != nil || !b.Amount.IsPositive() || strings.TrimSpace(cat) == "" {
			skipped = append(skipped, cat)
			continue
		}
		orig := b.OriginalAmount
		if orig.IsZero() {
			orig = b.Amount
		}
		budgets[cat] = Budget{Category: cat, Amount: b.Amount, Currency: cur, OriginalAmount: orig}
	}
	return budgets, skipped, nil
}

// DecodeExpenses parses an expenses snapshot record by record. Records that
// fail to decode or validate are reported by index in skipped.
func DecodeExpenses(data []byte) (expenses []Expense, skipped []string, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode expenses: %w", err)
	}
	expenses = make([]Expense, 0, len(raw))
	seen := make(map[ExpenseID]struct{}, len(raw))
	for i, r := range raw {
		var e Expense
		if err := json.Unmarshal(r, &e); err != nil {
			skipped = append(skipped, strconv.Itoa(i)+": "+err.Error())
			continue
		}
		if err := e.Validate(); err != nil {
			skipped = append(skipped, strconv.Itoa(i)+": "+err.Error())
			continue
		}
		if strings.TrimSpace(e.Category) == "" {
			e.Category = DefaultCategory
		}
		if e.ID == "" {
			e.ID = NewExpenseID()
		}
		if _, dup := seen[e.ID]; dup {
			e.ID = NewExpenseID()
		}
		seen[e.ID] = struct{}{}
		expenses = append(expenses, e)
	}
	return expenses, skipped, nil
}
