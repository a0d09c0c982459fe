package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wa-bot/internal/amount"
	"wa-bot/internal/domain"
)

const (
	recentLimit      = 10
	topLimit         = 5
	noExpensesFound  = "No expenses found."
	uncategorized    = "Uncategorized"
	dayLayout        = "2006-01-02"
	longDayLayout    = "Mon, Jan 2, 2006"
	monthYearLayout  = "January 2006"
	summaryRuleWidth = 60
)

// Reports renders expense listings and summaries.
type Reports struct {
	expenses ExpenseStore
	budgets  BudgetStore
	loc      *time.Location
	now      func() time.Time
}

func NewReports(expenses ExpenseStore, budgets BudgetStore, loc *time.Location) (*Reports, error) {
	if expenses == nil {
		return nil, errors.New("usecase: expense store must not be nil")
	}
	if budgets == nil {
		return nil, errors.New("usecase: budget store must not be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reports{expenses: expenses, budgets: budgets, loc: loc, now: time.Now}, nil
}

func (r *Reports) today() time.Time {
	return r.now().In(r.loc)
}

func (r *Reports) monthRange() (time.Time, time.Time) {
	t := r.today()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, r.loc)
	return start, start.AddDate(0, 1, -1)
}

func (r *Reports) monthExpenses(ctx context.Context) ([]domain.Expense, time.Time, error) {
	from, to := r.monthRange()
	list, err := r.expenses.ExpensesBetween(ctx, from, to)
	if err != nil {
		return nil, from, newError(ErrorUpstream, "notion_query_error", err)
	}
	return list, from, nil
}

// Month lists this month's expenses, newest first.
func (r *Reports) Month(ctx context.Context) (string, error) {
	list, from, err := r.monthExpenses(ctx)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return noExpensesFound, nil
	}
	var b strings.Builder
	b.WriteString("Here are your recent expenses:\n")
	fmt.Fprintf(&b, "📊 Expenses for monthly pay cycle %s\n\n", from.Format(monthYearLayout))
	for _, e := range list {
		fmt.Fprintf(&b, "- %s: Rp. %s on %s\n", e.Name, amount.Format(e.Amount), r.dateOf(e))
	}
	fmt.Fprintf(&b, "\n💰 Total: Rp. %s", amount.Format(total(list)))
	return b.String(), nil
}

// Today lists today's expenses.
func (r *Reports) Today(ctx context.Context) (string, error) {
	day := r.today()
	list, err := r.expenses.ExpensesBetween(ctx, day, day)
	if err != nil {
		return "", newError(ErrorUpstream, "notion_query_error", err)
	}
	if len(list) == 0 {
		return "No expenses recorded today.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Today's Expenses (%s)\n\n", day.Format(longDayLayout))
	for _, e := range list {
		fmt.Fprintf(&b, "• %s - Rp. %s\n", e.Name, amount.Format(e.Amount))
	}
	fmt.Fprintf(&b, "\n💰 Total: Rp. %s", amount.Format(total(list)))
	return b.String(), nil
}

// Recent lists the latest expenses regardless of month.
func (r *Reports) Recent(ctx context.Context) (string, error) {
	list, err := r.expenses.RecentExpenses(ctx, recentLimit)
	if err != nil {
		return "", newError(ErrorUpstream, "notion_query_error", err)
	}
	if len(list) == 0 {
		return noExpensesFound, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🕒 Last %d expenses:\n\n", len(list))
	for _, e := range list {
		fmt.Fprintf(&b, "- %s: Rp. %s on %s\n", e.Name, amount.Format(e.Amount), r.dateOf(e))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Top lists this month's largest expenses.
func (r *Reports) Top(ctx context.Context) (string, error) {
	list, _, err := r.monthExpenses(ctx)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return noExpensesFound, nil
	}
	sorted := slices.Clone(list)
	slices.SortStableFunc(sorted, func(a, b domain.Expense) int {
		return b.Amount.Cmp(a.Amount)
	})
	if len(sorted) > topLimit {
		sorted = sorted[:topLimit]
	}
	var b strings.Builder
	b.WriteString("🏆 Top expenses this month:\n\n")
	for i, e := range sorted {
		fmt.Fprintf(&b, "%d. %s - Rp. %s (%s)\n", i+1, e.Name, amount.Format(e.Amount), r.dateOf(e))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type categoryTotal struct {
	name  string
	total decimal.Decimal
	count int
}

// Summarize totals this month's expenses per category, largest first, and
// shows budget usage when userID has a budget.
func (r *Reports) Summarize(ctx context.Context, userID string) (string, error) {
	list, from, err := r.monthExpenses(ctx)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return noExpensesFound, nil
	}

	byName := make(map[string]*categoryTotal)
	var cats []*categoryTotal
	for _, e := range list {
		name := e.Category
		if name == "" {
			name = uncategorized
		}
		ct, ok := byName[name]
		if !ok {
			ct = &categoryTotal{name: name}
			byName[name] = ct
			cats = append(cats, ct)
		}
		ct.total = ct.total.Add(e.Amount)
		ct.count++
	}
	slices.SortStableFunc(cats, func(a, b *categoryTotal) int {
		if c := b.total.Cmp(a.total); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	sum := total(list)
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Summary for %s\n\n", from.Format(monthYearLayout))
	for _, ct := range cats {
		fmt.Fprintf(&b, "• %s: Rp. %s (%d %s)\n", ct.name, amount.Format(ct.total), ct.count, plural(ct.count, "item", "items"))
	}
	fmt.Fprintf(&b, "\n💰 Total: Rp. %s", amount.Format(sum))

	budget, ok, err := r.budgets.GetBudget(ctx, userID)
	if err != nil {
		return "", newError(ErrorInternal, "budget_read_error", err)
	}
	if ok && budget.Monthly.IsPositive() {
		fmt.Fprintf(&b, "\n🎯 Budget: Rp. %s (%s%% used)", amount.Format(budget.Monthly), percent(sum, budget.Monthly))
	}
	return b.String(), nil
}

// Search lists this month's expenses whose name contains term.
func (r *Reports) Search(ctx context.Context, term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "Usage: !search <term>", nil
	}
	from, to := r.monthRange()
	list, err := r.expenses.SearchExpenses(ctx, term, from, to)
	if err != nil {
		return "", newError(ErrorUpstream, "notion_query_error", err)
	}
	if len(list) == 0 {
		return fmt.Sprintf("No expenses matching %q this month.", term), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Results for %q:\n\n", term)
	for _, e := range list {
		fmt.Fprintf(&b, "- %s: Rp. %s on %s\n", e.Name, amount.Format(e.Amount), r.dateOf(e))
	}
	fmt.Fprintf(&b, "\n💰 Total: Rp. %s", amount.Format(total(list)))
	return b.String(), nil
}

// YesterdaySummary is the daily digest sent by the scheduler.
func (r *Reports) YesterdaySummary(ctx context.Context) (string, error) {
	yesterday := r.today().AddDate(0, 0, -1)
	list, err := r.expenses.ExpensesBetween(ctx, yesterday, yesterday)
	if err != nil {
		return "", newError(ErrorUpstream, "notion_query_error", err)
	}
	if len(list) == 0 {
		return noExpensesFound, nil
	}
	rule := strings.Repeat("=", summaryRuleWidth)
	var b strings.Builder
	b.WriteString("Here are your recent expenses:\n")
	fmt.Fprintf(&b, "📊 Yesterday's Expenses (%s)\n%s\n\n", yesterday.Format(longDayLayout), rule)
	for _, e := range list {
		fmt.Fprintf(&b, "   • %s - Rp. %s\n", e.Name, amount.Format(e.Amount))
	}
	fmt.Fprintf(&b, "\n%s\nTotal Expenses Yesterday: Rp. %s", rule, amount.Format(total(list)))
	return b.String(), nil
}

func (r *Reports) dateOf(e domain.Expense) string {
	if e.Date.IsZero() {
		return "No date"
	}
	return e.Date.Format(dayLayout)
}

func total(list []domain.Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range list {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// percent returns part/whole*100 with one decimal.
func percent(part, whole decimal.Decimal) string {
	if whole.IsZero() {
		return "0.0"
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
