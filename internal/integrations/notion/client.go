package notion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// Property names used in the Notion databases.
const (
	PropName     = "Name"
	PropAmount   = "Amount"
	PropCategory = "Category"
	PropDate     = "Date"

	PropStore       = "Toko"
	PropLinks       = "Links"
	PropReleaseDate = "Release Date"
	PropFullPrice   = "Full Price"
	PropDownPayment = "DP"

	PropPrice    = "Price"
	PropURL      = "URL"
	PropNote     = "Note"
	PropPriority = "Priority"
)

// databaseAPI is the part of notionapi.DatabaseService used by Client.
// (*notionapi.Client).Database satisfies it.
type databaseAPI interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// pageAPI is the part of notionapi.PageService used by Client.
type pageAPI interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

// Databases holds the ids of the Notion databases the bot writes to.
// PreOrders and Wishlist may be empty when those features are disabled.
type Databases struct {
	Expenses  string
	PreOrders string
	Wishlist  string
}

// Client reads and writes bot records in Notion.
type Client struct {
	db    databaseAPI
	pages pageAPI
	ids   Databases
	loc   *time.Location
}

type Option func(*Client)

// WithLocation sets the timezone expense dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New creates a Client. Pass (*notionapi.Client).Database and .Page.
func New(db databaseAPI, pages pageAPI, ids Databases, opts ...Option) (*Client, error) {
	if db == nil {
		return nil, errors.New("notion: database api must not be nil")
	}
	if pages == nil {
		return nil, errors.New("notion: page api must not be nil")
	}
	if strings.TrimSpace(ids.Expenses) == "" {
		return nil, errors.New("notion: expense database id must not be empty")
	}
	c := &Client{db: db, pages: pages, ids: ids, loc: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// queryAll follows next cursors until the database has no more results.
func (c *Client) queryAll(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	for {
		res, err := c.db.Query(ctx, notionapi.DatabaseID(dbID), req)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return pages, nil
		}
		pages = append(pages, res.Results...)
		if !res.HasMore || res.NextCursor == "" {
			return pages, nil
		}
		req.StartCursor = res.NextCursor
	}
}

func (c *Client) create(ctx context.Context, dbID string, props notionapi.Properties) (string, error) {
	page, err := c.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	})
	if err != nil {
		return "", err
	}
	if page == nil {
		return "", nil
	}
	return page.ID.String(), nil
}

func requireDB(id, what string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("notion: %s database is not configured", what)
	}
	return nil
}

func title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Title: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}}
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}}
}

func plainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		switch {
		case r.PlainText != "":
			b.WriteString(r.PlainText)
		case r.Text != nil:
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

func titleOf(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case notionapi.TitleProperty:
		return plainText(p.Title)
	}
	return ""
}

func textOf(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case *notionapi.URLProperty:
		return p.URL
	case *notionapi.SelectProperty:
		return p.Select.Name
	}
	return ""
}

func numberOf(props notionapi.Properties, name string) float64 {
	if p, ok := props[name].(*notionapi.NumberProperty); ok {
		return p.Number
	}
	return 0
}

func dateOf(props notionapi.Properties, name string) time.Time {
	p, ok := props[name].(*notionapi.DateProperty)
	if !ok || p.Date == nil || p.Date.Start == nil {
		return time.Time{}
	}
	return time.Time(*p.Date.Start)
}
