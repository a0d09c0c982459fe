package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wa-bot/internal/domain"
)

func TestMemoryBudgets(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBudgets()

	_, ok, err := m.GetBudget(ctx, "628111")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.SetBudget(ctx, domain.Budget{UserID: "628111", Monthly: decimal.NewFromInt(5000000)}))
	require.NoError(t, m.SetBudget(ctx, domain.Budget{UserID: "628111", Monthly: decimal.NewFromInt(6000000)}))

	got, ok, err := m.GetBudget(ctx, "628111")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Monthly.Equal(decimal.NewFromInt(6000000)))

	require.EqualError(t, m.SetBudget(ctx, domain.Budget{}), "repository: SetBudget: user id is required")
}
