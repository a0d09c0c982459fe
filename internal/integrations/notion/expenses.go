package notion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"wa-bot/internal/domain"
)

// AddExpense stores e in the expense database. Only the calendar day of
// e.Date is kept.
func (c *Client) AddExpense(ctx context.Context, e domain.Expense) (string, error) {
	if strings.TrimSpace(e.Name) == "" {
		return "", errors.New("notion: AddExpense: name is required")
	}
	day := c.day(e.Date)
	props := notionapi.Properties{
		PropName:   title(e.Name),
		PropAmount: notionapi.NumberProperty{Number: e.Amount.InexactFloat64()},
		PropDate:   notionapi.DateProperty{Date: &notionapi.DateObject{Start: &day}},
	}
	if e.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: e.Category}}
	}
	id, err := c.create(ctx, c.ids.Expenses, props)
	if err != nil {
		return "", fmt.Errorf("notion: AddExpense: %w", err)
	}
	return id, nil
}

// ExpensesBetween returns expenses dated within [from, to] (whole days),
// newest first.
func (c *Client) ExpensesBetween(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	pages, err := c.queryAll(ctx, c.ids.Expenses, &notionapi.DatabaseQueryRequest{
		Filter: c.dateRange(from, to),
		Sorts:  []notionapi.SortObject{{Property: PropDate, Direction: notionapi.SortOrderDESC}},
	})
	if err != nil {
		return nil, fmt.Errorf("notion: ExpensesBetween: %w", err)
	}
	return toExpenses(pages), nil
}

// SearchExpenses returns expenses within [from, to] whose name contains term.
func (c *Client) SearchExpenses(ctx context.Context, term string, from, to time.Time) ([]domain.Expense, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("notion: SearchExpenses: term is required")
	}
	filter := append(c.dateRange(from, to), notionapi.PropertyFilter{
		Property: PropName,
		RichText: &notionapi.TextFilterCondition{Contains: term},
	})
	pages, err := c.queryAll(ctx, c.ids.Expenses, &notionapi.DatabaseQueryRequest{
		Filter: filter,
		Sorts:  []notionapi.SortObject{{Property: PropDate, Direction: notionapi.SortOrderDESC}},
	})
	if err != nil {
		return nil, fmt.Errorf("notion: SearchExpenses: %w", err)
	}
	return toExpenses(pages), nil
}

// RecentExpenses returns the n most recent expenses.
func (c *Client) RecentExpenses(ctx context.Context, n int) ([]domain.Expense, error) {
	if n <= 0 {
		return nil, nil
	}
	res, err := c.db.Query(ctx, notionapi.DatabaseID(c.ids.Expenses), &notionapi.DatabaseQueryRequest{
		Sorts:    []notionapi.SortObject{{Property: PropDate, Direction: notionapi.SortOrderDESC}},
		PageSize: n,
	})
	if err != nil {
		return nil, fmt.Errorf("notion: RecentExpenses: %w", err)
	}
	if res == nil {
		return nil, nil
	}
	out := toExpenses(res.Results)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Categories lists the distinct expense categories in first-seen order.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	pages, err := c.queryAll(ctx, c.ids.Expenses, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropCategory,
			Select:   &notionapi.SelectFilterCondition{IsNotEmpty: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notion: Categories: %w", err)
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range pages {
		name := textOf(p.Properties, PropCategory)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func (c *Client) day(t time.Time) notionapi.Date {
	if t.IsZero() {
		t = time.Now()
	}
	t = t.In(c.loc)
	return notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc))
}

func (c *Client) dateRange(from, to time.Time) notionapi.AndCompoundFilter {
	start, end := c.day(from), c.day(to)
	return notionapi.AndCompoundFilter{
		notionapi.PropertyFilter{Property: PropDate, Date: &notionapi.DateFilterCondition{OnOrAfter: &start}},
		notionapi.PropertyFilter{Property: PropDate, Date: &notionapi.DateFilterCondition{OnOrBefore: &end}},
	}
}

func toExpenses(pages []notionapi.Page) []domain.Expense {
	out := make([]domain.Expense, 0, len(pages))
	for _, p := range pages {
		name := titleOf(p.Properties, PropName)
		if name == "" {
			name = "No description"
		}
		out = append(out, domain.Expense{
			ID:       p.ID.String(),
			Name:     name,
			Amount:   decimal.NewFromFloat(numberOf(p.Properties, PropAmount)),
			Category: textOf(p.Properties, PropCategory),
			Date:     dateOf(p.Properties, PropDate),
		})
	}
	return out
}
