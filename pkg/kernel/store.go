package kernel

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Page represents pagination metadata
type Page struct {
	Number int `json:"page"`      // Current page number (1-based)
	Size   int `json:"page_size"` // Number of records per page
	Total  int `json:"total"`     // Total number of records
	Pages  int `json:"pages"`     // Total number of pages
}

// Paginated is a generic container for offset-paginated data with metadata.
// Used by admin list endpoints that don't need keyset semantics.
type Paginated[T any] struct {
	Items []T  `json:"items"`
	Page  Page `json:"pagination"`
	Empty bool `json:"empty"`
}

// NewPaginated creates a new paginated result with calculated fields
func NewPaginated[T any](items []T, page, size, total int) Paginated[T] {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size // Ceiling division
	}

	return Paginated[T]{
		Items: items,
		Page: Page{
			Number: page,
			Size:   size,
			Total:  total,
			Pages:  pages,
		},
		Empty: len(items) == 0,
	}
}

// HasNext returns whether there are more pages after the current one
func (p Paginated[T]) HasNext() bool {
	return p.Page.Number < p.Page.Pages
}

// HasPrevious returns whether there are pages before the current one
func (p Paginated[T]) HasPrevious() bool {
	return p.Page.Number > 1
}

// PaginationOptions holds options for offset pagination queries
type PaginationOptions struct {
	Page     int
	PageSize int
}

// Cursor is the opaque keyset-pagination token described in spec §4.2: a
// base64 envelope over (created_at millis, id). Because the keyset is a
// strict lower bound on a tuple that is never reused, iterating a listing
// with the cursor returned by the previous page visits every row inserted
// before the first request exactly once, regardless of concurrent inserts.
type Cursor struct {
	CreatedAtMillis int64  `json:"t"`
	ID              string `json:"id"`
}

// NewCursor builds a cursor from the last row of a page.
func NewCursor(createdAt time.Time, id string) Cursor {
	return Cursor{CreatedAtMillis: createdAt.UnixMilli(), ID: id}
}

// Encode renders the cursor as an opaque, URL-safe string.
func (c Cursor) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a cursor string produced by Encode. An empty string
// decodes to the zero Cursor, meaning "start from the beginning".
func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	if s == "" {
		return c, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, err
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, err
	}
	return c, nil
}

// IsZero reports whether the cursor represents "start from the beginning".
func (c Cursor) IsZero() bool {
	return c.CreatedAtMillis == 0 && c.ID == ""
}

// CreatedAt returns the cursor's timestamp boundary.
func (c Cursor) CreatedAt() time.Time {
	return time.UnixMilli(c.CreatedAtMillis).UTC()
}

// KeysetPage is the result of a cursor-paginated list query.
type KeysetPage[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}
