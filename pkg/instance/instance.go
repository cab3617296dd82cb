package instance

import (
	"os"

	"github.com/angelmondragon/assetledger/pkg/env"
)

// GetID identifies this process in logs and lock ownership. It prefers
// ASSETLEDGER_INSTANCE_ID, then the host name.
func GetID() string {
	if id := env.Get("INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
