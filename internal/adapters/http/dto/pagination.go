package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"sort"
)

// DefaultLimit is the default number of items per page.
const DefaultLimit = 20

// MaxLimit is the maximum allowed items per page.
const MaxLimit = 100

// ErrInvalidCursor is returned when cursor decoding fails.
var ErrInvalidCursor = errors.New("invalid cursor")

// PaginationRequest represents pagination parameters from the query string.
type PaginationRequest struct {
	// Cursor is an opaque string from a previous response's NextCursor.
	Cursor string `form:"cursor"`

	// Limit is the maximum number of items to return (1-100, default 20).
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// GetLimit returns the limit with defaults applied.
func (p *PaginationRequest) GetLimit() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// PaginatedResponse is a page of items.
type PaginatedResponse[T any] struct {
	Items []T `json:"items"`

	// NextCursor resumes after the last item. Empty on the last page.
	NextCursor string `json:"nextCursor,omitempty"`

	HasMore bool `json:"hasMore"`
}

// cursorData is the decoded form of a cursor: the key of the last item served.
type cursorData struct {
	After string `json:"after"`
}

// EncodeCursor encodes the key of the last served item.
func EncodeCursor(after string) string {
	b, err := json.Marshal(cursorData{After: after})
	if err != nil {
		return ""
	}

	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor returns the key encoded by EncodeCursor. An empty cursor
// decodes to "" and means the first page.
func DecodeCursor(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCursor
	}

	var data cursorData
	if err := json.Unmarshal(b, &data); err != nil || data.After == "" {
		return "", ErrInvalidCursor
	}

	return data.After, nil
}

// Paginate serves one page of items, which must be sorted ascending by key.
// The page starts after the cursor's key, so items registered or retired
// between requests never shift the window.
func Paginate[T any](items []T, req PaginationRequest, key func(T) string) (*PaginatedResponse[T], error) {
	after, err := DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	start := 0
	if after != "" {
		start = sort.Search(len(items), func(i int) bool { return key(items[i]) > after })
	}

	limit := req.GetLimit()
	rest := items[start:]

	page := &PaginatedResponse[T]{Items: rest, HasMore: len(rest) > limit}
	if page.HasMore {
		page.Items = rest[:limit]
		page.NextCursor = EncodeCursor(key(page.Items[limit-1]))
	}

	if page.Items == nil {
		page.Items = []T{}
	}

	return page, nil
}
