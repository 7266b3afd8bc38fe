// Package manifest generates the plugin aggregation module.
//
// The generated source is a pure function of the active plugin set and the
// runtime configuration: identical inputs always yield byte-identical
// output. The module exposes an explicit app configuration object consumed
// by a single initialization call in the admin entry point, plus an export
// map from each plugin's short name to its entry module inside the merged
// tree.
package manifest

import (
	"fmt"
	"strings"

	"github.com/idreaminteractive/strapi/internal/config"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/hash"
	"github.com/idreaminteractive/strapi/internal/layers"
)

// header marks the file as generated.
const header = "// Generated by strapi-admin. Do not edit: this file is rewritten on every build.\n"

// Generator produces and writes the aggregation module.
type Generator struct {
	fs     fsops.FS
	hasher hash.Hasher
}

// NewGenerator creates a Generator.
func NewGenerator(fs fsops.FS, hasher hash.Hasher) *Generator {
	return &Generator{fs: fs, hasher: hasher}
}

// Generate builds the manifest source text for the given active plugins
// and runtime settings. Plugins must be in resolver order; when two
// plugins share a short name the later-declared one wins, matching the
// merged tree's override order.
func Generate(plugins []layers.Plugin, rt *config.Runtime) string {
	var b strings.Builder

	b.WriteString(header)
	b.WriteString("'use strict';\n\n")

	// App configuration, consumed once by the entry point's init call.
	b.WriteString("const appConfig = {\n")
	fmt.Fprintf(&b, "  mode: %s,\n", jsString(rt.Mode))
	fmt.Fprintf(&b, "  backendURL: resolveBackendURL(%s),\n", jsString(rt.BackendURL))
	b.WriteString("  languages: [")
	for i, lang := range rt.Languages {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(jsString(lang))
	}
	b.WriteString("],\n")
	b.WriteString("  locale: resolveLocale(),\n")
	b.WriteString("};\n\n")

	// A root-relative backend URL is resolved against the current origin.
	b.WriteString("function resolveBackendURL(configured) {\n")
	b.WriteString("  if (configured.charAt(0) === '/') {\n")
	b.WriteString("    return window.location.origin + (configured === '/' ? '' : configured);\n")
	b.WriteString("  }\n")
	b.WriteString("  return configured;\n")
	b.WriteString("}\n\n")

	// Locale resolution order: stored preference, platform language,
	// fixed fallback.
	b.WriteString("function resolveLocale() {\n")
	b.WriteString("  return (\n")
	b.WriteString("    window.localStorage.getItem('strapi-admin-language') ||\n")
	b.WriteString("    window.navigator.language ||\n")
	b.WriteString("    'en'\n")
	b.WriteString("  );\n")
	b.WriteString("}\n\n")

	b.WriteString("const plugins = {\n")
	for _, p := range dedupeByShortName(plugins) {
		fmt.Fprintf(&b, "  %s: require('../../plugins/%s/admin/src').default,\n",
			jsString(p.ShortName), p.Name)
	}
	b.WriteString("};\n\n")

	b.WriteString("module.exports = { appConfig, plugins };\n")

	return b.String()
}

// dedupeByShortName resolves short-name collisions with object-literal
// semantics: first position, last-declared value.
func dedupeByShortName(plugins []layers.Plugin) []layers.Plugin {
	index := make(map[string]int)
	var out []layers.Plugin
	for _, p := range plugins {
		if i, ok := index[p.ShortName]; ok {
			out[i] = p
			continue
		}
		index[p.ShortName] = len(out)
		out = append(out, p)
	}
	return out
}

// jsString quotes a value as a JS string literal. Go's %q escaping is a
// strict subset of valid JS double-quoted strings.
func jsString(s string) string {
	return fmt.Sprintf("%q", s)
}

// Write writes the manifest to its fixed destination inside the merged
// tree. The write is skipped when the on-disk content already matches, so
// regeneration is idempotent and does not wake the bundler's own watcher.
// Returns whether the file changed.
func (g *Generator) Write(paths *config.Paths, text string) (bool, error) {
	dest := paths.ManifestPath()

	exists, err := g.fs.Exists(dest)
	if err != nil {
		return false, fmt.Errorf("failed to check manifest destination: %w", err)
	}
	if exists {
		current, err := g.hasher.HashFile(dest)
		if err == nil && current == g.hasher.HashBytes([]byte(text)) {
			return false, nil
		}
	}

	if err := g.fs.AtomicWrite(dest, []byte(text), 0644); err != nil {
		return false, fmt.Errorf("failed to write manifest: %w", err)
	}
	return true, nil
}
