// Package rulepack embeds the bundled rule definitions and language
// adapters. It has no imports beyond embed so any package can load it.
//
// Usage:
//
//	rule.LoadRulesFromFS(rulepack.FS, rulepack.RulesDir)
//	language.LoadAdaptersFromFS(rulepack.FS, rulepack.AdaptersDir)
package rulepack

import "embed"

// Directories inside FS.
const (
	RulesDir    = "rules"
	AdaptersDir = "adapters"
)

//go:embed rules/*.yaml adapters/*.yaml
var FS embed.FS
