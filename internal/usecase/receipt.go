package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wa-bot/internal/amount"
	"wa-bot/internal/domain"
)

const (
	reactionWorking    = "⏳"
	reactionDone       = "✅"
	reactionFailed     = "❌"
	receiptCategory    = "Receipt"
	receiptRuleWidth   = 50
	receiptItemLimit   = 10
	defaultCurrency    = "IDR"
	downloadFailed     = "Failed to download image. Please try again."
	unsupportedImage   = "Unsupported image format. Please send a JPEG, PNG, WEBP, GIF or BMP image."
	fallbackVendorName = "Unknown"
)

// imageExtensions maps the receipt image types Veryfi accepts to a file
// extension.
var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
}

func newUUID() string {
	return uuid.NewString()
}

// handleReceipt scans an image message, stores the total as an expense and
// returns the receipt summary.
func (b *Bot) handleReceipt(ctx context.Context, msg domain.IncomingMessage) (string, error) {
	if !b.features.IsEnabled("receipt") {
		return disabledMessage, nil
	}
	b.react(ctx, msg, reactionWorking)

	image, mimeType, err := b.messenger.DownloadMedia(ctx, msg.MediaID)
	if err != nil || len(image) == 0 {
		slog.Error("media download failed", "err", err, "media_id", msg.MediaID)
		b.react(ctx, msg, reactionFailed)
		return downloadFailed, nil
	}
	if mimeType == "" {
		mimeType = msg.MimeType
	}
	mimeType, _, _ = strings.Cut(strings.ToLower(mimeType), ";")
	ext, ok := imageExtensions[strings.TrimSpace(mimeType)]
	if !ok {
		b.react(ctx, msg, reactionFailed)
		return unsupportedImage, nil
	}
	fileName := msg.Filename
	if fileName == "" {
		fileName = fmt.Sprintf("receipt_%s.%s", b.newID(), ext)
	}

	receipt, err := b.receipts.ProcessReceipt(ctx, image, fileName)
	if err != nil {
		b.react(ctx, msg, reactionFailed)
		return "", newError(ErrorUpstream, "receipt_scan_error", err)
	}

	e := domain.Expense{
		Name:     receipt.Vendor,
		Amount:   receipt.Total.Round(0),
		Category: receiptCategory,
		Date:     b.receiptDate(receipt.Date),
	}
	if e.Name == "" {
		e.Name = receiptCategory
	}
	if _, err := b.expenses.AddExpense(ctx, e); err != nil {
		b.react(ctx, msg, reactionFailed)
		return "", newError(ErrorUpstream, "notion_write_error", err)
	}
	slog.Info("receipt stored", "receipt_id", receipt.ID, "vendor", e.Name, "amount", e.Amount.String())

	b.react(ctx, msg, reactionDone)
	return FormatReceipt(receipt, e.Date), nil
}

func (b *Bot) react(ctx context.Context, msg domain.IncomingMessage, emoji string) {
	if err := b.messenger.React(ctx, msg.From, msg.ID, emoji); err != nil {
		slog.Warn("react failed", "err", err, "message_id", msg.ID, "emoji", emoji)
	}
}

// receiptDate parses a YYYY-MM-DD receipt date, falling back to today.
func (b *Bot) receiptDate(s string) time.Time {
	if s != "" {
		if t, err := time.ParseInLocation(dayLayout, s, b.loc); err == nil {
			return t
		}
	}
	return b.now().In(b.loc)
}

// FormatReceipt renders the scanned receipt for chat.
func FormatReceipt(r domain.Receipt, date time.Time) string {
	vendor := r.Vendor
	if vendor == "" {
		vendor = fallbackVendorName
	}
	currency := r.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	receiptDate := r.Date
	if receiptDate == "" {
		receiptDate = date.Format(dayLayout)
	}
	rule := strings.Repeat("=", receiptRuleWidth)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📄 Receipt Details\n%s\n\n", rule)
	fmt.Fprintf(&sb, "🏪 Merchant: %s\n", vendor)
	fmt.Fprintf(&sb, "📅 Date: %s\n", receiptDate)
	fmt.Fprintf(&sb, "💰 Total: %s %s\n\n", currency, amount.Format(r.Total))

	if len(r.Items) > 0 {
		sb.WriteString("📋 Items:\n")
		for i, item := range r.Items {
			if i == receiptItemLimit {
				fmt.Fprintf(&sb, "   ... and %d more items\n", len(r.Items)-receiptItemLimit)
				break
			}
			desc := item.Description
			if desc == "" {
				desc = "Unknown item"
			}
			fmt.Fprintf(&sb, "   • %s (x%s) - %s %s\n", desc, item.Quantity.String(), currency, amount.Format(item.Total))
		}
	}

	id := r.ID
	if id == "" {
		id = "N/A"
	}
	fmt.Fprintf(&sb, "\n%s\n✅ Receipt processed successfully!\nReceipt ID: %s", rule, id)
	return sb.String()
}
