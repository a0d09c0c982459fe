package usecase

import (
	"context"
	"time"

	"wa-bot/internal/domain"
)

// Messenger delivers replies and reactions and fetches attached media.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	React(ctx context.Context, to, messageID, emoji string) error
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

type ExpenseStore interface {
	AddExpense(ctx context.Context, e domain.Expense) (string, error)
	ExpensesBetween(ctx context.Context, from, to time.Time) ([]domain.Expense, error)
	SearchExpenses(ctx context.Context, term string, from, to time.Time) ([]domain.Expense, error)
	RecentExpenses(ctx context.Context, n int) ([]domain.Expense, error)
	Categories(ctx context.Context) ([]string, error)
}

type PreOrderStore interface {
	AddPreOrder(ctx context.Context, po domain.PreOrder) (string, error)
	ListPreOrders(ctx context.Context) ([]domain.PreOrder, error)
}

type WishlistStore interface {
	AddWishlistItem(ctx context.Context, item domain.WishlistItem) (string, error)
	ListWishlist(ctx context.Context) ([]domain.WishlistItem, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

type BudgetStore interface {
	GetBudget(ctx context.Context, userID string) (domain.Budget, bool, error)
	SetBudget(ctx context.Context, b domain.Budget) error
}

type ReceiptScanner interface {
	ProcessReceipt(ctx context.Context, image []byte, fileName string) (domain.Receipt, error)
}

// Features switches commands on and off and renders the help text.
type Features interface {
	IsEnabled(key string) bool
	HelpMessage() string
}

// Allowlist decides which senders the bot answers.
type Allowlist interface {
	IsAllowed(sender string) bool
}
