package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wa-bot/internal/amount"
	"wa-bot/internal/domain"
)

const budgetUsage = "❌ Invalid amount. Example: !budget 5000k"

// Budget shows the user's monthly budget against this month's spending.
func (r *Reports) Budget(ctx context.Context, userID string) (string, error) {
	budget, ok, err := r.budgets.GetBudget(ctx, userID)
	if err != nil {
		return "", newError(ErrorInternal, "budget_read_error", err)
	}
	if !ok || !budget.Monthly.IsPositive() {
		return "No budget set. Use !budget <amount> to set one, e.g. !budget 5000k", nil
	}
	list, from, err := r.monthExpenses(ctx)
	if err != nil {
		return "", err
	}
	spent := total(list)
	remaining := budget.Monthly.Sub(spent)

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 Budget for %s\n\n", from.Format(monthYearLayout))
	fmt.Fprintf(&b, "💵 Monthly budget: Rp. %s\n", amount.Format(budget.Monthly))
	fmt.Fprintf(&b, "💸 Spent: Rp. %s\n", amount.Format(spent))
	fmt.Fprintf(&b, "💰 Remaining: Rp. %s\n", amount.Format(remaining))
	fmt.Fprintf(&b, "📈 Used: %s%%", percent(spent, budget.Monthly))
	if remaining.IsNegative() {
		fmt.Fprintf(&b, "\n⚠️ Over budget by Rp. %s", amount.Format(remaining.Neg()))
	}
	return b.String(), nil
}

// SetBudget parses arg with the suffix-k rules and stores it as the user's
// monthly budget.
func (r *Reports) SetBudget(ctx context.Context, userID, arg string) (string, error) {
	monthly, err := amount.Parse(arg)
	if err != nil {
		if errors.Is(err, amount.ErrInvalid) {
			return budgetUsage, nil
		}
		return "", newError(ErrorInternal, "budget_parse_error", err)
	}
	if !monthly.IsPositive() {
		return budgetUsage, nil
	}
	if err := r.budgets.SetBudget(ctx, domain.Budget{UserID: userID, Monthly: monthly}); err != nil {
		return "", newError(ErrorInternal, "budget_write_error", err)
	}
	return fmt.Sprintf("✅ Monthly budget set to Rp. %s", amount.Format(monthly)), nil
}
