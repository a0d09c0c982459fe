package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"wa-bot/internal/amount"
	"wa-bot/internal/conversation"
	"wa-bot/internal/domain"
)

// Record fields. Expense fields other than category are seeded when the
// expense is detected.
const (
	fieldDescription   = "description"
	fieldAmount        = "amount"
	fieldAmountDisplay = "amount_display"
	fieldCategories    = "categories"
	fieldCategory      = "category"

	fieldName        = "name"
	fieldStore       = "toko"
	fieldLinks       = "links"
	fieldReleaseDate = "release_date"
	fieldFullPrice   = "full_price"
	fieldDownPayment = "dp"

	fieldPrice    = "price"
	fieldURL      = "url"
	fieldNote     = "note"
	fieldPriority = "priority"
)

const (
	abortHint    = "\n\nType 'cancel' to abort."
	invalidPrice = "❌ Invalid price. Use numbers with an optional k suffix, e.g. 150000 or 150k."
)

func (b *Bot) specs() []conversation.Spec {
	return []conversation.Spec{b.expenseSpec(), b.preOrderSpec(), b.wishlistSpec()}
}

func (b *Bot) expenseSpec() conversation.Spec {
	return conversation.Spec{
		Topic:     domain.TopicExpense,
		Cancelled: "❌ Expense addition cancelled.",
		Steps: []conversation.Step{{
			Field: fieldCategory,
			Prompt: "📝 Expense detected: {description}\n💰 Amount: Rp. {amount_display}\n\n" +
				"Available categories:\n{categories}\n\nPlease enter the category:" + abortHint,
			Validate: conversation.OneOf(fieldCategories, "❌ Invalid category!"),
		}},
		Complete: b.completeExpense,
	}
}

func (b *Bot) completeExpense(ctx context.Context, _ string, rec domain.Record) (string, error) {
	amt, err := decimal.NewFromString(rec.Value(fieldAmount))
	if err != nil {
		return "", newError(ErrorInternal, "record_decode_error", err)
	}
	e := domain.Expense{
		Name:     rec.Value(fieldDescription),
		Amount:   amt,
		Category: rec.Value(fieldCategory),
		Date:     b.now().In(b.loc),
	}
	if _, err := b.expenses.AddExpense(ctx, e); err != nil {
		return "", newError(ErrorUpstream, "notion_write_error", err)
	}
	return fmt.Sprintf("✅ Expense added: Rp. %s - %s\n📁 Category: %s", amount.Format(e.Amount), e.Name, e.Category), nil
}

func (b *Bot) preOrderSpec() conversation.Spec {
	return conversation.Spec{
		Topic:     domain.TopicPreOrder,
		Cancelled: "❌ Pre-order cancelled.",
		Steps: []conversation.Step{
			{
				Field:    fieldName,
				Prompt:   "📦 New pre-order\n\nWhat is the item name?" + abortHint,
				Validate: conversation.Text("❌ Item name cannot be empty."),
			},
			{
				Field:    fieldStore,
				Prompt:   "🏪 Which store (toko) is it from?",
				Validate: conversation.Text("❌ Store cannot be empty."),
			},
			{
				Field:    fieldLinks,
				Prompt:   "🔗 Product links? (or type 'skip')",
				Optional: true,
			},
			{
				Field:    fieldReleaseDate,
				Prompt:   "📅 Release date? (e.g. Dec 2024)",
				Validate: conversation.Text("❌ Release date cannot be empty."),
			},
			{
				Field:    fieldFullPrice,
				Prompt:   "💰 Full price? (e.g. 1500000 or 1500k)",
				Validate: conversation.Amount(invalidPrice),
			},
			{
				Field:    fieldDownPayment,
				Prompt:   "💵 Down payment (DP) paid? (e.g. 500k, or 0)",
				Validate: downPayment(),
			},
		},
		Complete: b.completePreOrder,
	}
}

// downPayment accepts an amount no larger than the full price already
// recorded.
func downPayment() conversation.Validator {
	parse := conversation.Amount(invalidPrice)
	return func(ctx context.Context, input string, rec domain.Record) (string, error) {
		v, err := parse(ctx, input, rec)
		if err != nil {
			return "", err
		}
		dp, err := decimal.NewFromString(v)
		if err != nil {
			return "", err
		}
		full, err := decimal.NewFromString(rec.Value(fieldFullPrice))
		if err == nil && dp.GreaterThan(full) {
			return "", conversation.Reject(fmt.Sprintf("❌ DP cannot be more than the full price (Rp. %s).", amount.Format(full)))
		}
		return v, nil
	}
}

func (b *Bot) completePreOrder(ctx context.Context, _ string, rec domain.Record) (string, error) {
	full, err := decimal.NewFromString(rec.Value(fieldFullPrice))
	if err != nil {
		return "", newError(ErrorInternal, "record_decode_error", err)
	}
	dp, err := decimal.NewFromString(rec.Value(fieldDownPayment))
	if err != nil {
		return "", newError(ErrorInternal, "record_decode_error", err)
	}
	po := domain.PreOrder{
		Name:        rec.Value(fieldName),
		Store:       rec.Value(fieldStore),
		Links:       optional(rec, fieldLinks),
		ReleaseDate: rec.Value(fieldReleaseDate),
		FullPrice:   full,
		DownPayment: dp,
	}
	if _, err := b.preorders.AddPreOrder(ctx, po); err != nil {
		return "", newError(ErrorUpstream, "notion_write_error", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Pre-order added: %s\n", po.Name)
	fmt.Fprintf(&sb, "🏪 Toko: %s\n", po.Store)
	fmt.Fprintf(&sb, "📅 Release: %s\n", po.ReleaseDate)
	fmt.Fprintf(&sb, "💰 Full price: Rp. %s\n", amount.Format(po.FullPrice))
	fmt.Fprintf(&sb, "💵 DP: Rp. %s\n", amount.Format(po.DownPayment))
	fmt.Fprintf(&sb, "🧾 Remaining: Rp. %s", amount.Format(po.Remaining()))
	return sb.String(), nil
}

func (b *Bot) wishlistSpec() conversation.Spec {
	return conversation.Spec{
		Topic:     domain.TopicWishlist,
		Cancelled: "❌ Wishlist entry cancelled.",
		Steps: []conversation.Step{
			{
				Field:  fieldName,
				Prompt: "🎁 New wishlist item\n\nWhat do you want to buy?" + abortHint,
				Validate: conversation.Unique(
					wishlistChecker{b.wishlist},
					"❌ \"{value}\" is already on your wishlist. Please use a different name.",
					conversation.Text("❌ Item name cannot be empty."),
				),
			},
			{
				Field:    fieldPrice,
				Prompt:   "💰 How much is it? (e.g. 1500000 or 1500k)",
				Validate: conversation.Amount(invalidPrice),
			},
			{
				Field:    fieldURL,
				Prompt:   "🔗 Link to the item? (or type 'skip')",
				Optional: true,
			},
			{
				Field:    fieldNote,
				Prompt:   "📝 Any notes? (or type 'skip')",
				Optional: true,
			},
			{
				Field:    fieldPriority,
				Prompt:   "⭐ Priority? (High / Medium / Low, or type 'skip')",
				Optional: true,
			},
			{
				Field:    fieldCategory,
				Prompt:   "🏷️ Category? (e.g. Gadget, Hobby)",
				Validate: conversation.Text("❌ Category cannot be empty."),
			},
		},
		Complete: b.completeWishlist,
	}
}

func (b *Bot) completeWishlist(ctx context.Context, _ string, rec domain.Record) (string, error) {
	price, err := decimal.NewFromString(rec.Value(fieldPrice))
	if err != nil {
		return "", newError(ErrorInternal, "record_decode_error", err)
	}
	item := domain.WishlistItem{
		Name:     rec.Value(fieldName),
		Price:    price,
		URL:      optional(rec, fieldURL),
		Note:     optional(rec, fieldNote),
		Priority: optional(rec, fieldPriority),
		Category: rec.Value(fieldCategory),
	}
	if _, err := b.wishlist.AddWishlistItem(ctx, item); err != nil {
		return "", newError(ErrorUpstream, "notion_write_error", err)
	}
	return fmt.Sprintf("✅ Added to wishlist: %s\n💰 Price: Rp. %s\n🏷️ Category: %s", item.Name, amount.Format(item.Price), item.Category), nil
}

// optional returns the stored value, or "" when the user skipped the step.
func optional(rec domain.Record, field string) string {
	v := rec.Value(field)
	if domain.IsSkip(v) {
		return ""
	}
	return strings.TrimSpace(v)
}

type wishlistChecker struct {
	store WishlistStore
}

func (c wishlistChecker) ExistsByName(ctx context.Context, name string) (bool, error) {
	exists, err := c.store.ExistsByName(ctx, name)
	if err != nil {
		return false, newError(ErrorUpstream, "notion_list_error", err)
	}
	return exists, nil
}
