package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 24
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last row of a page. Key is the sort column value
// rendered as text (a timestamp or a decimal price), ID breaks ties.
type Cursor struct {
	Key string
	ID  uuid.UUID
}

// TimeCursor builds a cursor keyed on a timestamp.
func TimeCursor(at time.Time, id uuid.UUID) Cursor {
	return Cursor{Key: at.UTC().Format(time.RFC3339Nano), ID: id}
}

// Time parses the cursor key as a timestamp.
func (c Cursor) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, c.Key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return t, nil
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// PageSize is the normalized number of rows returned to the caller.
func (p Params) PageSize() int {
	return NormalizeLimit(p.Limit)
}

// FetchSize asks the store for one extra row so Trim can tell whether a
// further page exists.
func (p Params) FetchSize() int {
	return p.PageSize() + 1
}

// Trim cuts rows fetched with FetchSize down to the page size. When the
// extra row was present the returned cursor points at the last kept row;
// otherwise it is empty and the caller is on the final page.
func Trim[T any](rows []T, p Params, key func(T) Cursor) ([]T, string) {
	size := p.PageSize()
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, EncodeCursor(key(rows[size-1]))
}

// EncodeCursor builds an opaque cursor string from the provided values.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.Key, cursor.ID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes the cursor string back into its components. An empty
// value yields a nil cursor.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	idx := strings.LastIndex(string(decoded), "|")
	if idx <= 0 {
		return nil, fmt.Errorf("invalid cursor format")
	}
	id, err := uuid.Parse(string(decoded[idx+1:]))
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{Key: string(decoded[:idx]), ID: id}, nil
}
