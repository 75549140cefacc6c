package deprebuddy

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version returns the release of the engine.
func Version() string {
	return strings.TrimSpace(version)
}
