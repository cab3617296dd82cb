// Package env reads the handful of settings needed before config.Load runs,
// such as log format and instance identity.
package env

import (
	"os"
	"strings"
)

// Prefix is shared with the envconfig-driven config package.
const Prefix = "ASSETLEDGER"

// Key namespaces name under Prefix.
func Key(name string) string {
	return Prefix + "_" + strings.ToUpper(name)
}

// Get returns the trimmed value of Key(name), or fallback when it is unset
// or blank.
func Get(name, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(Key(name))); val != "" {
		return val
	}
	return fallback
}
