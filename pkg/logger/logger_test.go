package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestContextFieldsFlowIntoEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: buf, Format: FormatJSON})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithPartID(ctx, "PUMP-100")
	ctx = log.WithLocation(ctx, "BAY-1")
	ctx = log.WithFields(ctx, map[string]any{"qty": 4, "movement_type": "transfer"})
	log.Info(ctx, "moved")

	entry := lastEntry(t, buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "PUMP-100", entry["part_id"])
	assert.Equal(t, "BAY-1", entry["location_id"])
	assert.Equal(t, 4.0, entry["qty"])
	assert.Equal(t, "moved", entry["message"])
}

func TestFieldsDoNotLeakBetweenContexts(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: FormatJSON})

	base := context.Background()
	_ = log.WithPartID(base, "PUMP-100")
	log.Info(base, "plain")
	_, ok := lastEntry(t, buf)["part_id"]
	assert.False(t, ok)
}

func TestErrorEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: FormatJSON})

	log.Error(context.Background(), "failed", errors.New("boom"))
	entry := lastEntry(t, buf)
	assert.Equal(t, "boom", entry["error"])
	assert.NotEmpty(t, entry["stack"])

	log.Error(context.Background(), "rejected", pkgerrors.New(pkgerrors.CodeInsufficientInventory, "short"))
	assert.Equal(t, "INSUFFICIENT_INVENTORY", lastEntry(t, buf)["error_code"])
}

func TestWithErrorFlattensTypedErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: FormatJSON})

	ctx := log.WithError(context.Background(), pkgerrors.New(pkgerrors.CodeConcurrentModification, "gave up"))
	log.Warn(ctx, "conflict")

	entry := lastEntry(t, buf)
	assert.Equal(t, "CONCURRENT_MODIFICATION", entry["error_code"])
	assert.Equal(t, true, entry["retryable"])
	_, hasStack := entry["stack"]
	assert.False(t, hasStack)
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: FormatJSON, WarnStack: true})
	log.Warn(context.Background(), "warny")
	assert.NotEmpty(t, lastEntry(t, buf)["stack"])
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: FormatConsole})
	log.Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
}
