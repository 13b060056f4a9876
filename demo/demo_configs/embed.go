package demo_configs

import (
	"embed"
)

// FS provides embedded default game settings (YAML and JSON) for external usage.
//
//go:embed *.yaml *.json
var FS embed.FS
