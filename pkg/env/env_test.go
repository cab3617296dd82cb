package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Setenv("ASSETLEDGER_LOG_FORMAT", "  console ")
	t.Setenv("ASSETLEDGER_BLANK", "   ")

	assert.Equal(t, "ASSETLEDGER_LOG_FORMAT", Key("log_format"))
	assert.Equal(t, "console", Get("LOG_FORMAT", "json"))
	assert.Equal(t, "json", Get("BLANK", "json"))
	assert.Equal(t, "fallback", Get("NEVER_SET", "fallback"))
}
