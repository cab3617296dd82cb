// Package pagination implements keyset cursors over (created_at, id) for
// journal listings. A cursor is scoped to the listing it came from, so a
// token minted for one part's history is rejected on another's.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrBadCursor = errors.New("malformed cursor")

type Params struct {
	Limit  int
	Cursor string
}

// Cursor marks the last row of the previous page.
type Cursor struct {
	Scope     string
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps limit into [1, MaxLimit], mapping zero or negative
// values to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so Split can tell whether a next
// page exists without a count query.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Encode renders c as a URL-safe token.
func (c Cursor) Encode() string {
	raw := strings.Join([]string{c.Scope, c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID.String()}, "\x1f")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Parse decodes token for scope. An empty token yields nil, nil.
func Parse(token, scope string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrBadCursor
	}
	parts := strings.Split(string(raw), "\x1f")
	if len(parts) != 3 {
		return nil, ErrBadCursor
	}
	if parts[0] != scope {
		return nil, errors.New("cursor belongs to a different listing")
	}
	at, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrBadCursor
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, ErrBadCursor
	}
	return &Cursor{Scope: scope, CreatedAt: at, ID: id}, nil
}

// Split trims a LimitWithBuffer result down to limit rows and, when a
// further page exists, returns the token pointing past the last kept row.
func Split[T any](rows []T, limit int, scope string, key func(T) (time.Time, uuid.UUID)) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	at, id := key(rows[limit-1])
	return rows, Cursor{Scope: scope, CreatedAt: at, ID: id}.Encode()
}
