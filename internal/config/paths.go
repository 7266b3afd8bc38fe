// Package config manages the filesystem locations and runtime settings of
// an admin build.
//
// Paths are derived from the project root: the installed base layer and
// plugin packages live under node_modules/, overrides under admin/ and
// extensions/, and the merged tree is materialized into the cache
// directory the bundler compiles from.
package config

import (
	"os"
	"path/filepath"
)

// Paths contains the fixed filesystem locations for one project.
type Paths struct {
	// Root is the project root directory.
	Root string

	// NodeModules is the installed package directory.
	NodeModules string

	// BaseLayer is the root of the base admin framework package.
	BaseLayer string

	// AdminOverride is the project-level override directory (may not exist).
	AdminOverride string

	// Extensions is the per-plugin override directory (may not exist).
	Extensions string

	// Cache is the merged tree root the bundler compiles from.
	Cache string

	// BuildOutput is where production bundles are emitted.
	BuildOutput string
}

// BasePackage is the npm package providing the base admin framework layer.
const BasePackage = "strapi-admin"

// ProjectPaths returns the paths for the given project root.
// The cache location can be overridden with STRAPI_ADMIN_CACHE_DIR.
func ProjectPaths(root string) *Paths {
	cache := os.Getenv("STRAPI_ADMIN_CACHE_DIR")
	if cache == "" {
		cache = filepath.Join(root, ".cache")
	}

	return &Paths{
		Root:          root,
		NodeModules:   filepath.Join(root, "node_modules"),
		BaseLayer:     filepath.Join(root, "node_modules", BasePackage),
		AdminOverride: filepath.Join(root, "admin"),
		Extensions:    filepath.Join(root, "extensions"),
		Cache:         cache,
		BuildOutput:   filepath.Join(root, "build"),
	}
}

// MergedAdmin is the destination of the base layer (and the project-level
// override) inside the merged tree.
func (p *Paths) MergedAdmin() string {
	return filepath.Join(p.Cache, "admin")
}

// MergedPlugins is the destination root for plugin layers inside the
// merged tree.
func (p *Paths) MergedPlugins() string {
	return filepath.Join(p.Cache, "plugins")
}

// PluginDest is the namespaced destination for one plugin's layer.
func (p *Paths) PluginDest(name string) string {
	return filepath.Join(p.MergedPlugins(), name)
}

// ManifestPath is the fixed destination of the generated plugin manifest.
func (p *Paths) ManifestPath() string {
	return filepath.Join(p.Cache, "admin", "src", "plugins.js")
}

// EntryPoint is the bundler entry file inside the merged tree.
func (p *Paths) EntryPoint() string {
	return filepath.Join(p.Cache, "admin", "src", "app.js")
}

// PackageRoot is the installed root of a declared dependency.
func (p *Paths) PackageRoot(name string) string {
	return filepath.Join(p.NodeModules, name)
}

// ExtensionAdmin is the per-plugin override source for a short name.
func (p *Paths) ExtensionAdmin(shortName string) string {
	return filepath.Join(p.Extensions, shortName, "admin")
}
