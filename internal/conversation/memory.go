package conversation

import (
	"context"
	"sync"

	"wa-bot/internal/domain"
)

// MemoryStore keeps conversation states in process memory, one table per
// topic. States never expire.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[domain.Topic]map[string]domain.ConversationState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[domain.Topic]map[string]domain.ConversationState)}
}

func (m *MemoryStore) Get(_ context.Context, userID string, topic domain.Topic) (domain.ConversationState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tables[topic][userID]
	if !ok {
		return domain.ConversationState{}, false, nil
	}
	st.Record = st.Record.Clone()
	return st, true, nil
}

func (m *MemoryStore) Put(_ context.Context, state domain.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[state.Topic]
	if !ok {
		table = make(map[string]domain.ConversationState)
		m.tables[state.Topic] = table
	}
	state.Record = state.Record.Clone()
	table[state.UserID] = state
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string, topic domain.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables[topic], userID)
	return nil
}

// Len returns the number of live conversations on topic.
func (m *MemoryStore) Len(topic domain.Topic) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[topic])
}
