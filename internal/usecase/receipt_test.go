package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wa-bot/internal/domain"
)

func imageMessage() domain.IncomingMessage {
	return domain.IncomingMessage{ID: "wamid.1", From: testUser, Type: domain.MessageImage, MediaID: "media-1", MimeType: "image/jpeg"}
}

func TestHandleReceipt(t *testing.T) {
	f := newFixture(t)
	f.messenger.media = []byte("jpeg-bytes")
	f.messenger.mimeType = "image/jpeg"
	f.scanner.receipt = domain.Receipt{
		ID:     "123456",
		Vendor: "Indomaret",
		Total:  dec("25500.4"),
		Date:   "2024-05-14",
		Items: []domain.ReceiptItem{
			{Description: "Milk", Quantity: decimal.NewFromInt(2), Total: dec("20000")},
			{Quantity: decimal.NewFromInt(1), Total: dec("5500.4")},
		},
	}

	require.NoError(t, f.bot.Handle(context.Background(), imageMessage()))

	require.Equal(t, []string{reactionSeen, reactionWorking, reactionDone}, f.messenger.reactions)
	require.Equal(t, []byte("jpeg-bytes"), f.scanner.image)
	require.Equal(t, "receipt_fixed-id.jpg", f.scanner.fileName)

	require.Len(t, f.expenses.added, 1)
	e := f.expenses.added[0]
	require.Equal(t, "Indomaret", e.Name)
	require.True(t, e.Amount.Equal(dec("25500")))
	require.Equal(t, receiptCategory, e.Category)
	require.True(t, e.Date.Equal(time.Date(2024, time.May, 14, 0, 0, 0, 0, jakarta)))

	rule := strings.Repeat("=", 50)
	require.Equal(t, "📄 Receipt Details\n"+rule+"\n\n"+
		"🏪 Merchant: Indomaret\n📅 Date: 2024-05-14\n💰 Total: IDR 25,500.4\n\n"+
		"📋 Items:\n   • Milk (x2) - IDR 20,000\n   • Unknown item (x1) - IDR 5,500.4\n"+
		"\n"+rule+"\n✅ Receipt processed successfully!\nReceipt ID: 123456", f.messenger.lastBody(t))
}

func TestHandleReceiptFallbacks(t *testing.T) {
	f := newFixture(t)
	f.messenger.media = []byte("png")
	f.messenger.mimeType = "image/png"
	msg := imageMessage()
	msg.Filename = "struk.png"
	f.scanner.receipt = domain.Receipt{Total: dec("10000"), Date: "not-a-date"}

	require.NoError(t, f.bot.Handle(context.Background(), msg))

	require.Equal(t, "struk.png", f.scanner.fileName)
	e := f.expenses.added[0]
	require.Equal(t, receiptCategory, e.Name)
	require.True(t, e.Date.Equal(fixedNow))
	require.Contains(t, f.messenger.lastBody(t), "🏪 Merchant: Unknown")
	require.Contains(t, f.messenger.lastBody(t), "Receipt ID: N/A")
}

func TestHandleReceiptDownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.messenger.mediaErr = errors.New("graph api down")

	require.NoError(t, f.bot.Handle(context.Background(), imageMessage()))
	require.Equal(t, []string{reactionSeen, reactionWorking, reactionFailed}, f.messenger.reactions)
	require.Equal(t, downloadFailed, f.messenger.lastBody(t))
	require.Empty(t, f.expenses.added)
}

func TestHandleReceiptUnsupportedType(t *testing.T) {
	f := newFixture(t)
	f.messenger.media = []byte("tiff")
	f.messenger.mimeType = "image/tiff"

	require.NoError(t, f.bot.Handle(context.Background(), imageMessage()))
	require.Equal(t, unsupportedImage, f.messenger.lastBody(t))
	require.Nil(t, f.scanner.image)
}

func TestHandleReceiptScanFailure(t *testing.T) {
	f := newFixture(t)
	f.messenger.media = []byte("jpeg")
	f.messenger.mimeType = "image/jpeg; charset=binary"
	f.scanner.err = errors.New("veryfi: unexpected status 401")

	require.NoError(t, f.bot.Handle(context.Background(), imageMessage()))
	require.Equal(t, reactionFailed, f.messenger.reactions[len(f.messenger.reactions)-1])
	require.Equal(t, "Error: Failed to process receipt", f.messenger.lastBody(t))
	require.Empty(t, f.expenses.added)
}

func TestHandleReceiptDisabled(t *testing.T) {
	f := newFixture(t, "receipt")

	require.NoError(t, f.bot.Handle(context.Background(), imageMessage()))
	require.Equal(t, []string{reactionSeen}, f.messenger.reactions)
	require.Equal(t, disabledMessage, f.messenger.lastBody(t))
}

func TestFormatReceiptTruncatesItems(t *testing.T) {
	r := domain.Receipt{ID: "9", Vendor: "Shop", Total: dec("120"), Currency: "USD"}
	for i := 0; i < 12; i++ {
		r.Items = append(r.Items, domain.ReceiptItem{Description: fmt.Sprintf("item%d", i), Quantity: decimal.NewFromInt(1), Total: dec("10")})
	}

	got := FormatReceipt(r, fixedNow)
	require.Equal(t, 10, strings.Count(got, "   • "))
	require.Contains(t, got, "   ... and 2 more items\n")
	require.Contains(t, got, "📅 Date: 2024-05-15")
	require.Contains(t, got, "💰 Total: USD 120")
}
