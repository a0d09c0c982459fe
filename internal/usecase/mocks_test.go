package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wa-bot/internal/conversation"
	"wa-bot/internal/domain"
)

const testUser = "6281234567890"

var jakarta = time.FixedZone("WIB", 7*60*60)

// fixedNow is Wednesday 15 May 2024, 10:00 in Jakarta.
var fixedNow = time.Date(2024, time.May, 15, 10, 0, 0, 0, jakarta)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockExpenses struct {
	added      []domain.Expense
	addErr     error
	between    []domain.Expense
	betweenErr error
	ranges     [][2]time.Time
	search     []domain.Expense
	searchTerm string
	recent     []domain.Expense
	recentN    int
	categories []string
	catErr     error
}

func (m *mockExpenses) AddExpense(_ context.Context, e domain.Expense) (string, error) {
	if m.addErr != nil {
		return "", m.addErr
	}
	m.added = append(m.added, e)
	return "page-id", nil
}

func (m *mockExpenses) ExpensesBetween(_ context.Context, from, to time.Time) ([]domain.Expense, error) {
	m.ranges = append(m.ranges, [2]time.Time{from, to})
	return m.between, m.betweenErr
}

func (m *mockExpenses) SearchExpenses(_ context.Context, term string, from, to time.Time) ([]domain.Expense, error) {
	m.searchTerm = term
	m.ranges = append(m.ranges, [2]time.Time{from, to})
	return m.search, nil
}

func (m *mockExpenses) RecentExpenses(_ context.Context, n int) ([]domain.Expense, error) {
	m.recentN = n
	return m.recent, nil
}

func (m *mockExpenses) Categories(_ context.Context) ([]string, error) {
	return m.categories, m.catErr
}

type mockPreOrders struct {
	added []domain.PreOrder
	list  []domain.PreOrder
	err   error
}

func (m *mockPreOrders) AddPreOrder(_ context.Context, po domain.PreOrder) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.added = append(m.added, po)
	return "po-id", nil
}

func (m *mockPreOrders) ListPreOrders(_ context.Context) ([]domain.PreOrder, error) {
	return m.list, m.err
}

type mockWishlist struct {
	added    []domain.WishlistItem
	list     []domain.WishlistItem
	existing map[string]bool
	checked  []string
	err      error
}

func (m *mockWishlist) AddWishlistItem(_ context.Context, item domain.WishlistItem) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.added = append(m.added, item)
	return "wish-id", nil
}

func (m *mockWishlist) ListWishlist(_ context.Context) ([]domain.WishlistItem, error) {
	return m.list, m.err
}

func (m *mockWishlist) ExistsByName(_ context.Context, name string) (bool, error) {
	m.checked = append(m.checked, name)
	if m.err != nil {
		return false, m.err
	}
	return m.existing[name], nil
}

type mockBudgets struct {
	budgets map[string]domain.Budget
	getErr  error
	setErr  error
}

func (m *mockBudgets) GetBudget(_ context.Context, userID string) (domain.Budget, bool, error) {
	if m.getErr != nil {
		return domain.Budget{}, false, m.getErr
	}
	b, ok := m.budgets[userID]
	return b, ok, nil
}

func (m *mockBudgets) SetBudget(_ context.Context, b domain.Budget) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.budgets == nil {
		m.budgets = make(map[string]domain.Budget)
	}
	m.budgets[b.UserID] = b
	return nil
}

type mockScanner struct {
	receipt  domain.Receipt
	err      error
	image    []byte
	fileName string
}

func (m *mockScanner) ProcessReceipt(_ context.Context, image []byte, fileName string) (domain.Receipt, error) {
	m.image = image
	m.fileName = fileName
	return m.receipt, m.err
}

type sentMessage struct {
	to   string
	body string
}

type mockMessenger struct {
	sent      []sentMessage
	reactions []string
	sendErr   error
	reactErr  error
	media     []byte
	mimeType  string
	mediaErr  error
}

func (m *mockMessenger) SendText(_ context.Context, to, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{to: to, body: body})
	return nil
}

func (m *mockMessenger) React(_ context.Context, _, _, emoji string) error {
	m.reactions = append(m.reactions, emoji)
	return m.reactErr
}

func (m *mockMessenger) DownloadMedia(_ context.Context, _ string) ([]byte, string, error) {
	return m.media, m.mimeType, m.mediaErr
}

func (m *mockMessenger) lastBody(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1].body
}

type mockFeatures struct {
	disabled map[string]bool
}

func (m mockFeatures) IsEnabled(key string) bool { return !m.disabled[key] }

func (m mockFeatures) HelpMessage() string { return "HELP" }

type mockAllowlist map[string]bool

func (m mockAllowlist) IsAllowed(sender string) bool { return m[sender] }

type fixture struct {
	bot       *Bot
	sessions  *conversation.MemoryStore
	expenses  *mockExpenses
	preorders *mockPreOrders
	wishlist  *mockWishlist
	budgets   *mockBudgets
	scanner   *mockScanner
	messenger *mockMessenger
	features  mockFeatures
}

func newFixture(t *testing.T, disabled ...string) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  conversation.NewMemoryStore(),
		expenses:  &mockExpenses{categories: []string{"Food", "Transport"}},
		preorders: &mockPreOrders{},
		wishlist:  &mockWishlist{existing: map[string]bool{}},
		budgets:   &mockBudgets{},
		scanner:   &mockScanner{},
		messenger: &mockMessenger{},
		features:  mockFeatures{disabled: map[string]bool{}},
	}
	for _, k := range disabled {
		f.features.disabled[k] = true
	}
	bot, err := NewBot(Deps{
		Sessions:   f.sessions,
		Expenses:   f.expenses,
		PreOrders:  f.preorders,
		Wishlist:   f.wishlist,
		Budgets:    f.budgets,
		Receipts:   f.scanner,
		Messenger:  f.messenger,
		Features:   f.features,
		Allowlist:  mockAllowlist{testUser: true},
		Location:   jakarta,
		NotionLink: "https://notion.so/finance",
	})
	require.NoError(t, err)
	bot.now = func() time.Time { return fixedNow }
	bot.reports.now = bot.now
	bot.newID = func() string { return "fixed-id" }
	f.bot = bot
	return f
}

// say sends text through Respond and fails the test on error.
func (f *fixture) say(t *testing.T, text string) string {
	t.Helper()
	reply, err := f.bot.Respond(context.Background(), testUser, text)
	require.NoError(t, err)
	return reply
}
