package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"wa-bot/internal/amount"
	"wa-bot/internal/conversation"
	"wa-bot/internal/domain"
)

const (
	reactionSeen       = "👀"
	disabledMessage    = "⚠️ This feature is currently disabled."
	noCategoriesFound  = "No expense categories found in Notion. Add a categorized expense there first."
	notionLinkNotSet   = "Notion link is not configured."
	emptyListPreOrders = "No pre-orders yet. Type !po to add one."
	emptyListWishlist  = "Your wishlist is empty. Type !wishlist to add an item."
)

// expensePattern matches "<description> <amount>" where amount may use a
// comma or dot decimal and a trailing k.
var expensePattern = regexp.MustCompile(`(?i)^(.+?)\s+(\d+(?:,\d+|\.\d+)?k?)$`)

// topicPrecedence is the order in which active conversations claim a message.
var topicPrecedence = []domain.Topic{domain.TopicExpense, domain.TopicPreOrder, domain.TopicWishlist}

// Deps are the collaborators of a Bot.
type Deps struct {
	Sessions   conversation.Store
	Expenses   ExpenseStore
	PreOrders  PreOrderStore
	Wishlist   WishlistStore
	Budgets    BudgetStore
	Receipts   ReceiptScanner
	Messenger  Messenger
	Features   Features
	Allowlist  Allowlist
	Location   *time.Location
	NotionLink string
}

// Bot routes incoming chat messages to commands, conversations and receipt
// scanning. Messages are handled one at a time.
type Bot struct {
	engine     *conversation.Engine
	reports    *Reports
	expenses   ExpenseStore
	preorders  PreOrderStore
	wishlist   WishlistStore
	receipts   ReceiptScanner
	messenger  Messenger
	features   Features
	allowlist  Allowlist
	loc        *time.Location
	notionLink string
	now        func() time.Time
	newID      func() string

	mu sync.Mutex
}

func NewBot(d Deps) (*Bot, error) {
	switch {
	case d.Sessions == nil:
		return nil, errors.New("usecase: session store must not be nil")
	case d.Expenses == nil:
		return nil, errors.New("usecase: expense store must not be nil")
	case d.PreOrders == nil:
		return nil, errors.New("usecase: pre-order store must not be nil")
	case d.Wishlist == nil:
		return nil, errors.New("usecase: wishlist store must not be nil")
	case d.Budgets == nil:
		return nil, errors.New("usecase: budget store must not be nil")
	case d.Receipts == nil:
		return nil, errors.New("usecase: receipt scanner must not be nil")
	case d.Messenger == nil:
		return nil, errors.New("usecase: messenger must not be nil")
	case d.Features == nil:
		return nil, errors.New("usecase: features must not be nil")
	case d.Allowlist == nil:
		return nil, errors.New("usecase: allowlist must not be nil")
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	reports, err := NewReports(d.Expenses, d.Budgets, loc)
	if err != nil {
		return nil, err
	}
	b := &Bot{
		reports:    reports,
		expenses:   d.Expenses,
		preorders:  d.PreOrders,
		wishlist:   d.Wishlist,
		receipts:   d.Receipts,
		messenger:  d.Messenger,
		features:   d.Features,
		allowlist:  d.Allowlist,
		loc:        loc,
		notionLink: d.NotionLink,
		now:        time.Now,
		newID:      newUUID,
	}
	b.engine, err = conversation.New(d.Sessions, b.specs()...)
	if err != nil {
		return nil, fmt.Errorf("usecase: build conversation engine: %w", err)
	}
	return b, nil
}

// Reports exposes the report renderer shared with the scheduler.
func (b *Bot) Reports() *Reports {
	return b.reports
}

// Handle processes one incoming message and sends the reply. Messages from
// senders outside the allow-list are ignored. Failures are reported to the
// user as "Error: ..." and returned only when the reply itself fails.
func (b *Bot) Handle(ctx context.Context, msg domain.IncomingMessage) error {
	if !b.allowlist.IsAllowed(msg.From) {
		slog.Info("ignoring message from unknown sender", "from", msg.From)
		return nil
	}
	if err := b.messenger.React(ctx, msg.From, msg.ID, reactionSeen); err != nil {
		slog.Warn("react failed", "err", err, "message_id", msg.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		reply string
		err   error
	)
	switch msg.Type {
	case domain.MessageImage:
		reply, err = b.handleReceipt(ctx, msg)
	case domain.MessageText:
		reply, err = b.Respond(ctx, msg.From, msg.Text)
	default:
		return nil
	}
	if err != nil {
		slog.Error("message handling failed", "err", err, "from", msg.From, "type", msg.Type)
		reply = "Error: " + UserMessage(err)
	}
	if reply == "" {
		return nil
	}
	if err := b.messenger.SendText(ctx, msg.From, reply); err != nil {
		return fmt.Errorf("usecase: send reply: %w", err)
	}
	return nil
}

// Respond computes the reply to a text message from userID. Active
// conversations take the message first; otherwise it is matched against
// commands and finally parsed as an expense.
func (b *Bot) Respond(ctx context.Context, userID, text string) (string, error) {
	for _, topic := range topicPrecedence {
		active, err := b.engine.HasActive(ctx, topic, userID)
		if err != nil {
			return "", newError(ErrorInternal, "session_error", err)
		}
		if !active {
			continue
		}
		reply, err := b.engine.Advance(ctx, topic, userID, text)
		if err != nil {
			return "", engineError(err)
		}
		slog.Info("conversation advanced", "topic", topic, "outcome", reply.Outcome.String())
		return reply.Text, nil
	}

	trimmed := strings.TrimSpace(text)
	cmd, arg := splitCommand(trimmed)
	switch cmd {
	case "!help":
		return b.features.HelpMessage(), nil
	case "!list":
		return b.gated("list", func() (string, error) { return b.reports.Month(ctx) })
	case "!today":
		return b.gated("today", func() (string, error) { return b.reports.Today(ctx) })
	case "!recent":
		return b.gated("recent", func() (string, error) { return b.reports.Recent(ctx) })
	case "!top":
		return b.gated("top", func() (string, error) { return b.reports.Top(ctx) })
	case "!summarize":
		return b.gated("summarize", func() (string, error) { return b.reports.Summarize(ctx, userID) })
	case "!search":
		return b.gated("search", func() (string, error) { return b.reports.Search(ctx, arg) })
	case "!budget":
		if arg == "" {
			return b.gated("budget", func() (string, error) { return b.reports.Budget(ctx, userID) })
		}
		return b.gated("budgetSet", func() (string, error) { return b.reports.SetBudget(ctx, userID, arg) })
	case "!po":
		if strings.EqualFold(arg, "list") {
			return b.gated("poList", func() (string, error) { return b.listPreOrders(ctx) })
		}
		if arg == "" {
			return b.gated("po", func() (string, error) { return b.start(ctx, domain.TopicPreOrder, userID) })
		}
	case "!wishlist":
		if strings.EqualFold(arg, "list") {
			return b.gated("wishlistList", func() (string, error) { return b.listWishlist(ctx) })
		}
		if arg == "" {
			return b.gated("wishlist", func() (string, error) { return b.start(ctx, domain.TopicWishlist, userID) })
		}
	case "!notionlink":
		return b.gated("notionlink", func() (string, error) {
			if b.notionLink == "" {
				return notionLinkNotSet, nil
			}
			return "Here is your Notion link: " + b.notionLink, nil
		})
	}

	return b.detectExpense(ctx, userID, trimmed)
}

// splitCommand returns the lower-cased command word and the rest of the text
// when text starts with "!".
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "!") {
		return "", ""
	}
	cmd, arg, _ := strings.Cut(text, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func (b *Bot) gated(feature string, fn func() (string, error)) (string, error) {
	if !b.features.IsEnabled(feature) {
		return disabledMessage, nil
	}
	return fn()
}

func (b *Bot) start(ctx context.Context, topic domain.Topic, userID string, seed ...domain.Field) (string, error) {
	prompt, err := b.engine.Start(ctx, topic, userID, seed...)
	if err != nil {
		return "", engineError(err)
	}
	return prompt, nil
}

// ParsedExpense is an expense read from a "<description> <amount>" message.
type ParsedExpense struct {
	Description string
	Amount      string
}

// ParseExpense reads a free-text expense such as "nasi padang 25k" or
// "coffee 12,5k". The amount is returned in canonical decimal form.
func ParseExpense(text string) (ParsedExpense, bool) {
	m := expensePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ParsedExpense{}, false
	}
	desc := strings.TrimSpace(m[1])
	amt, err := amount.Parse(strings.ReplaceAll(m[2], ",", "."))
	if err != nil || desc == "" {
		return ParsedExpense{}, false
	}
	return ParsedExpense{Description: desc, Amount: amt.String()}, true
}

func (b *Bot) detectExpense(ctx context.Context, userID, text string) (string, error) {
	parsed, ok := ParseExpense(text)
	if !ok {
		return b.features.HelpMessage(), nil
	}
	categories, err := b.expenses.Categories(ctx)
	if err != nil {
		return "", newError(ErrorUpstream, "notion_categories_error", err)
	}
	if len(categories) == 0 {
		return noCategoriesFound, nil
	}
	amt, _ := amount.Parse(parsed.Amount)
	slog.Info("expense detected", "description", parsed.Description, "amount", parsed.Amount)
	return b.start(ctx, domain.TopicExpense, userID,
		domain.Field{Name: fieldDescription, Value: parsed.Description},
		domain.Field{Name: fieldAmount, Value: parsed.Amount},
		domain.Field{Name: fieldAmountDisplay, Value: amount.Format(amt)},
		domain.Field{Name: fieldCategories, Value: strings.Join(categories, "\n")},
	)
}

func (b *Bot) listPreOrders(ctx context.Context) (string, error) {
	list, err := b.preorders.ListPreOrders(ctx)
	if err != nil {
		return "", newError(ErrorUpstream, "notion_list_error", err)
	}
	if len(list) == 0 {
		return emptyListPreOrders, nil
	}
	var sb strings.Builder
	sb.WriteString("📦 Pre-orders:\n")
	for i, po := range list {
		fmt.Fprintf(&sb, "\n%d. %s (%s)\n", i+1, po.Name, po.Store)
		fmt.Fprintf(&sb, "   📅 %s | 💰 Rp. %s | 🧾 Remaining Rp. %s", po.ReleaseDate, amount.Format(po.FullPrice), amount.Format(po.Remaining()))
	}
	return sb.String(), nil
}

func (b *Bot) listWishlist(ctx context.Context) (string, error) {
	list, err := b.wishlist.ListWishlist(ctx)
	if err != nil {
		return "", newError(ErrorUpstream, "notion_list_error", err)
	}
	if len(list) == 0 {
		return emptyListWishlist, nil
	}
	var sb strings.Builder
	sb.WriteString("🎁 Wishlist:\n")
	for i, item := range list {
		fmt.Fprintf(&sb, "\n%d. %s - Rp. %s", i+1, item.Name, amount.Format(item.Price))
		if item.Priority != "" {
			fmt.Fprintf(&sb, " ⭐ %s", item.Priority)
		}
		if item.Category != "" {
			fmt.Fprintf(&sb, " [%s]", item.Category)
		}
	}
	return sb.String(), nil
}

// engineError keeps usecase errors raised inside terminal actions and
// validators visible to UserMessage.
func engineError(err error) error {
	var ue *Error
	if errors.As(err, &ue) {
		return err
	}
	return newError(ErrorInternal, "session_error", err)
}
