package validators

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
)

const maxIdentifierLen = 128

// cleanIdentifier trims a part, location or cursor value, drops control
// characters and caps its length without splitting a rune.
func cleanIdentifier(raw string) string {
	value := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if len(value) <= maxIdentifierLen {
		return value
	}
	cut := maxIdentifierLen
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

// RequiredQuery returns a trimmed, non-empty query parameter.
func RequiredQuery(r *http.Request, key string) (string, error) {
	value := cleanIdentifier(r.URL.Query().Get(key))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter is required").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// OptionalQuery returns a trimmed query parameter or nil when absent.
func OptionalQuery(r *http.Request, key string) *string {
	value := cleanIdentifier(r.URL.Query().Get(key))
	if value == "" {
		return nil
	}
	return &value
}

// OptionalInt parses a non-negative integer query parameter; absent reads as zero.
func OptionalInt(r *http.Request, key string) (int, error) {
	raw := OptionalQuery(r, key)
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.Atoi(*raw)
	if err != nil || n < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a non-negative integer").WithDetails(map[string]any{"field": key})
	}
	return n, nil
}

// PathParam returns a trimmed, non-empty route parameter.
func PathParam(r *http.Request, name string) (string, error) {
	value := cleanIdentifier(chi.URLParam(r, name))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").WithDetails(map[string]any{"field": name})
	}
	return value, nil
}

// PathUUID parses a route parameter as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid id").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
