package notion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"wa-bot/internal/domain"
)

// AddPreOrder stores po in the pre-order database.
func (c *Client) AddPreOrder(ctx context.Context, po domain.PreOrder) (string, error) {
	if err := requireDB(c.ids.PreOrders, "pre-order"); err != nil {
		return "", err
	}
	if strings.TrimSpace(po.Name) == "" {
		return "", errors.New("notion: AddPreOrder: name is required")
	}
	props := notionapi.Properties{
		PropName:        title(po.Name),
		PropStore:       richText(po.Store),
		PropReleaseDate: richText(po.ReleaseDate),
		PropFullPrice:   notionapi.NumberProperty{Number: po.FullPrice.InexactFloat64()},
		PropDownPayment: notionapi.NumberProperty{Number: po.DownPayment.InexactFloat64()},
	}
	if po.Links != "" {
		props[PropLinks] = richText(po.Links)
	}
	id, err := c.create(ctx, c.ids.PreOrders, props)
	if err != nil {
		return "", fmt.Errorf("notion: AddPreOrder: %w", err)
	}
	return id, nil
}

// ListPreOrders returns every stored pre-order.
func (c *Client) ListPreOrders(ctx context.Context) ([]domain.PreOrder, error) {
	if err := requireDB(c.ids.PreOrders, "pre-order"); err != nil {
		return nil, err
	}
	pages, err := c.queryAll(ctx, c.ids.PreOrders, &notionapi.DatabaseQueryRequest{})
	if err != nil {
		return nil, fmt.Errorf("notion: ListPreOrders: %w", err)
	}
	out := make([]domain.PreOrder, 0, len(pages))
	for _, p := range pages {
		out = append(out, domain.PreOrder{
			ID:          p.ID.String(),
			Name:        titleOf(p.Properties, PropName),
			Store:       textOf(p.Properties, PropStore),
			Links:       textOf(p.Properties, PropLinks),
			ReleaseDate: textOf(p.Properties, PropReleaseDate),
			FullPrice:   decimal.NewFromFloat(numberOf(p.Properties, PropFullPrice)),
			DownPayment: decimal.NewFromFloat(numberOf(p.Properties, PropDownPayment)),
		})
	}
	return out, nil
}

// AddWishlistItem stores item in the wishlist database. Empty optional fields
// are left out of the page.
func (c *Client) AddWishlistItem(ctx context.Context, item domain.WishlistItem) (string, error) {
	if err := requireDB(c.ids.Wishlist, "wishlist"); err != nil {
		return "", err
	}
	if strings.TrimSpace(item.Name) == "" {
		return "", errors.New("notion: AddWishlistItem: name is required")
	}
	props := notionapi.Properties{
		PropName:  title(item.Name),
		PropPrice: notionapi.NumberProperty{Number: item.Price.InexactFloat64()},
	}
	if item.URL != "" {
		props[PropURL] = notionapi.URLProperty{URL: item.URL}
	}
	if item.Note != "" {
		props[PropNote] = richText(item.Note)
	}
	if item.Priority != "" {
		props[PropPriority] = notionapi.SelectProperty{Select: notionapi.Option{Name: item.Priority}}
	}
	if item.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: item.Category}}
	}
	id, err := c.create(ctx, c.ids.Wishlist, props)
	if err != nil {
		return "", fmt.Errorf("notion: AddWishlistItem: %w", err)
	}
	return id, nil
}

// ListWishlist returns every wishlist item.
func (c *Client) ListWishlist(ctx context.Context) ([]domain.WishlistItem, error) {
	if err := requireDB(c.ids.Wishlist, "wishlist"); err != nil {
		return nil, err
	}
	pages, err := c.queryAll(ctx, c.ids.Wishlist, &notionapi.DatabaseQueryRequest{})
	if err != nil {
		return nil, fmt.Errorf("notion: ListWishlist: %w", err)
	}
	out := make([]domain.WishlistItem, 0, len(pages))
	for _, p := range pages {
		out = append(out, domain.WishlistItem{
			ID:       p.ID.String(),
			Name:     titleOf(p.Properties, PropName),
			Price:    decimal.NewFromFloat(numberOf(p.Properties, PropPrice)),
			URL:      textOf(p.Properties, PropURL),
			Note:     textOf(p.Properties, PropNote),
			Priority: textOf(p.Properties, PropPriority),
			Category: textOf(p.Properties, PropCategory),
		})
	}
	return out, nil
}

// ExistsByName reports whether a wishlist item titled name already exists.
func (c *Client) ExistsByName(ctx context.Context, name string) (bool, error) {
	if err := requireDB(c.ids.Wishlist, "wishlist"); err != nil {
		return false, err
	}
	res, err := c.db.Query(ctx, notionapi.DatabaseID(c.ids.Wishlist), &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropName,
			RichText: &notionapi.TextFilterCondition{Equals: strings.TrimSpace(name)},
		},
		PageSize: 1,
	})
	if err != nil {
		return false, fmt.Errorf("notion: ExistsByName: %w", err)
	}
	return res != nil && len(res.Results) > 0, nil
}
