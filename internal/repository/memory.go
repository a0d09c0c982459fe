package repository

import (
	"context"
	"errors"
	"sync"

	"wa-bot/internal/domain"
)

// MemoryBudgets keeps budgets in process memory. Used when no DynamoDB table
// is configured; budgets are lost on restart.
type MemoryBudgets struct {
	mu      sync.RWMutex
	budgets map[string]domain.Budget
}

func NewMemoryBudgets() *MemoryBudgets {
	return &MemoryBudgets{budgets: make(map[string]domain.Budget)}
}

func (m *MemoryBudgets) GetBudget(_ context.Context, userID string) (domain.Budget, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.budgets[userID]
	return b, ok, nil
}

func (m *MemoryBudgets) SetBudget(_ context.Context, b domain.Budget) error {
	if b.UserID == "" {
		return errors.New("repository: SetBudget: user id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[b.UserID] = b
	return nil
}
