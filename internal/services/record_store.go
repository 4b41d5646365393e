package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"budgetbook/internal/core"
	"budgetbook/internal/kv"
	applog "budgetbook/internal/log"
)

// ErrPersistenceWrite marks a mutation that was applied in memory but could
// not be written to the store.
var ErrPersistenceWrite = errors.New("snapshot write failed")

// PersistError reports which snapshot failed to persist.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersistenceWrite, e.Err}
}

// IsWarning reports whether err only signals a failed snapshot write, in
// which case the change is still present in memory.
func IsWarning(err error) bool {
	return err != nil && errors.Is(err, ErrPersistenceWrite)
}

// Notifier is told about every successful snapshot write.
type Notifier interface {
	NotifySnapshot(ctx context.Context, key string, revision int64) error
}

type Option func(*RecordStore)

func WithNotifier(n Notifier) Option {
	return func(s *RecordStore) { s.notifier = n }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *RecordStore) { s.logger = l }
}

// RecordStore owns the expense and budget collections and writes a full
// snapshot of the affected collection after every mutation.
type RecordStore struct {
	store    kv.Store
	conv     *core.Converter
	notifier Notifier
	logger   *applog.Logger

	mu        sync.Mutex
	expenses  []core.Expense
	budgets   map[string]core.Budget
	revisions map[string]int64
}

func NewRecordStore(store kv.Store, conv *core.Converter, opts ...Option) *RecordStore {
	if conv == nil {
		conv = core.DefaultConverter()
	}
	s := &RecordStore{
		store:     store,
		conv:      conv,
		budgets:   map[string]core.Budget{},
		revisions: map[string]int64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.Default(applog.ComponentStore)
	}
	return s
}

// Load replaces the in-memory collections with the persisted snapshots.
// Missing, unreadable or malformed snapshots leave the collection empty and
// are only logged.
func (s *RecordStore) Load(ctx context.Context) error {
	var (
		expenses []core.Expense
		budgets  map[string]core.Budget
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		expenses = s.loadExpenses(gctx)
		return nil
	})
	g.Go(func() error {
		budgets = s.loadBudgets(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = expenses
	s.budgets = budgets
	s.logger.DebugContext(ctx, "Ledger loaded", applog.FieldCount, len(expenses), "budgets", len(budgets))
	return nil
}

func (s *RecordStore) read(ctx context.Context, key string) (string, bool) {
	v, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Snapshot read failed, starting empty",
			applog.FieldKey, key, applog.FieldError, err)
		return "", false
	}
	return v, found && strings.TrimSpace(v) != ""
}

func (s *RecordStore) loadExpenses(ctx context.Context) []core.Expense {
	v, ok := s.read(ctx, kv.KeyExpenses)
	if !ok {
		return nil
	}
	expenses, skipped, err := core.DecodeExpenses([]byte(v))
	if err != nil {
		s.logger.WarnContext(ctx, "Malformed expenses snapshot, starting empty", applog.FieldError, err)
		return nil
	}
	if len(skipped) > 0 {
		s.logger.WarnContext(ctx, "Dropped invalid expense records",
			applog.FieldCount, len(skipped), applog.FieldSkipped, skipped)
	}
	return expenses
}

func (s *RecordStore) loadBudgets(ctx context.Context) map[string]core.Budget {
	v, ok := s.read(ctx, kv.KeyBudgets)
	if !ok {
		return map[string]core.Budget{}
	}
	budgets, skipped, err := core.DecodeBudgets([]byte(v))
	if err != nil {
		s.logger.WarnContext(ctx, "Malformed budgets snapshot, starting empty", applog.FieldError, err)
		return map[string]core.Budget{}
	}
	if len(skipped) > 0 {
		s.logger.WarnContext(ctx, "Dropped invalid budgets",
			applog.FieldCount, len(skipped), applog.FieldSkipped, skipped)
	}
	return budgets
}

// Add validates d, assigns a new id and appends the record.
func (s *RecordStore) Add(ctx context.Context, d core.Draft) (core.ExpenseID, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := d.Expense(core.NewExpenseID())
	s.expenses = append(s.expenses, e)
	fields := applog.NewFields().WithOperation(applog.OpCreate).WithExpense(string(e.ID), e.Category)
	s.logger.InfoContext(ctx, "Expense added", fields.ToSlice()...)
	return e.ID, s.persistExpenses(ctx)
}

// AddMany appends every draft with a single snapshot write. Nothing is added
// when any draft is invalid.
func (s *RecordStore) AddMany(ctx context.Context, drafts []core.Draft) ([]core.ExpenseID, error) {
	for i, d := range drafts {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("draft %d: %w", i, err)
		}
	}
	if len(drafts) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]core.ExpenseID, 0, len(drafts))
	for _, d := range drafts {
		e := d.Expense(core.NewExpenseID())
		s.expenses = append(s.expenses, e)
		ids = append(ids, e.ID)
	}
	s.logger.InfoContext(ctx, "Expenses added", applog.FieldCount, len(ids))
	return ids, s.persistExpenses(ctx)
}

// Update replaces every mutable field of the record with id, keeping the id
// and the position in the collection.
func (s *RecordStore) Update(ctx context.Context, id core.ExpenseID, d core.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}
	s.expenses[i] = d.Expense(id)
	s.logger.InfoContext(ctx, "Expense updated", applog.FieldExpenseID, id)
	return s.persistExpenses(ctx)
}

// Remove deletes the record with id. An unknown id leaves the collection
// unchanged but the snapshot is still written.
func (s *RecordStore) Remove(ctx context.Context, id core.ExpenseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
		s.logger.InfoContext(ctx, "Expense removed", applog.FieldExpenseID, id)
	}
	return s.persistExpenses(ctx)
}

func (s *RecordStore) indexOf(id core.ExpenseID) int {
	for i, e := range s.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *RecordStore) Get(id core.ExpenseID) (core.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.expenses[i], true
	}
	return core.Expense{}, false
}

// Expenses returns a copy of the collection in insertion order.
func (s *RecordStore) Expenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, len(s.expenses))
	copy(out, s.expenses)
	return out
}

func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expenses)
}

// SetBudget stores the monthly budget for category, converted to base units.
// An existing budget for the category is overwritten.
func (s *RecordStore) SetBudget(ctx context.Context, category string, amount decimal.Decimal, currency core.Currency) error {
	category = strings.TrimSpace(category)
	verr := &core.ValidationError{}
	if category == "" {
		verr.Fields = append(verr.Fields, core.FieldError{Field: "category", Err: core.ErrEmptyCategory})
	}
	if !amount.IsPositive() {
		verr.Fields = append(verr.Fields, core.FieldError{Field: "amount", Err: core.ErrInvalidAmount})
	}
	if currency == "" {
		currency = core.BaseCurrency
	}
	base, err := s.conv.Normalize(amount, currency)
	if err != nil {
		verr.Fields = append(verr.Fields, core.FieldError{Field: "currency", Err: core.ErrInvalidCurrency})
	}
	if len(verr.Fields) > 0 {
		return verr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.budgets[category] = core.Budget{
		Category:       category,
		Amount:         base,
		Currency:       currency,
		OriginalAmount: amount,
	}
	s.logger.InfoContext(ctx, "Budget set", applog.FieldCategory, category, "amount", base.String())
	return s.persistBudgets(ctx)
}

// RemoveBudget deletes the budget for category; the snapshot is written even
// when there was none.
func (s *RecordStore) RemoveBudget(ctx context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category = strings.TrimSpace(category)
	if _, ok := s.budgets[category]; ok {
		delete(s.budgets, category)
		s.logger.InfoContext(ctx, "Budget removed", applog.FieldCategory, category)
	}
	return s.persistBudgets(ctx)
}

// Budgets returns a copy of the budget table.
func (s *RecordStore) Budgets() map[string]core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.Budget, len(s.budgets))
	for k, v := range s.budgets {
		out[k] = v
	}
	return out
}

func (s *RecordStore) Budget(category string) (core.Budget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[category]
	return b, ok
}

// BudgetCategories lists the budgeted categories in lexical order.
func (s *RecordStore) BudgetCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.budgets))
	for k := range s.budgets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Revision returns the revision of the last snapshot of key this store wrote.
func (s *RecordStore) Revision(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revisions[key]
}

// Converter returns the converter the store normalizes budgets with.
func (s *RecordStore) Converter() *core.Converter {
	return s.conv
}

func (s *RecordStore) persistExpenses(ctx context.Context) error {
	list := s.expenses
	if list == nil {
		list = []core.Expense{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return &PersistError{Key: kv.KeyExpenses, Err: err}
	}
	return s.write(ctx, kv.KeyExpenses, data)
}

func (s *RecordStore) persistBudgets(ctx context.Context) error {
	data, err := core.EncodeBudgets(s.budgets)
	if err != nil {
		return &PersistError{Key: kv.KeyBudgets, Err: err}
	}
	return s.write(ctx, kv.KeyBudgets, data)
}

// nextRevision numbers a write that just succeeded. Stores that count writes
// themselves are authoritative, so separate processes publish increasing
// revisions; otherwise the count is local to this store.
func (s *RecordStore) nextRevision(ctx context.Context, key string) int64 {
	local := s.revisions[key] + 1
	r, ok := s.store.(kv.Reviser)
	if !ok {
		return local
	}
	rev, err := r.Revision(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNoRevision) {
			s.logger.WarnContext(ctx, "Reading snapshot revision failed, using local count",
				applog.FieldKey, key, applog.FieldError, err)
		}
		return local
	}
	return rev
}

// write must be called with mu held.
func (s *RecordStore) write(ctx context.Context, key string, data []byte) error {
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		s.logger.WarnContext(ctx, "Snapshot write failed, change kept in memory",
			applog.FieldKey, key, applog.FieldError, err)
		return &PersistError{Key: key, Err: err}
	}

	rev := s.nextRevision(ctx, key)
	s.revisions[key] = rev

	if s.notifier != nil {
		if err := s.notifier.NotifySnapshot(ctx, key, rev); err != nil {
			s.logger.WarnContext(ctx, "Snapshot notification failed",
				applog.NewFields().WithOperation(applog.OpNotify).WithSnapshot(key, rev).WithError(err).ToSlice()...)
		}
	}
	return nil
}
