// Package layers resolves the precedence-ordered source layers of an
// admin build.
//
// A build merges four layer classes, lowest precedence first: the base
// framework package, one layer per active plugin, the project-level
// override directory, and per-plugin extension override directories.
// Resolution is pure lookup (existence checks only) and is recomputed at
// the start of every full materialization.
package layers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/idreaminteractive/strapi/internal/config"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/npm"
)

// ErrConfiguration indicates the project cannot be built at all: missing
// or unparseable package manifest, or a missing base layer.
var ErrConfiguration = errors.New("invalid project configuration")

// PluginPrefix marks a dependency as an admin plugin.
const PluginPrefix = "strapi-plugin-"

// AdminEntryRelPath is where a plugin's admin entry module lives relative
// to its package root. A plugin without it does not participate in the
// build.
const AdminEntryRelPath = "admin/src/index.js"

// Layer kinds, in ascending precedence.
const (
	KindBase              = "base"
	KindPlugin            = "plugin"
	KindProjectOverride   = "project_override"
	KindExtensionOverride = "extension_override"
)

// Layer is one ranked source of files contributing to the merged tree.
type Layer struct {
	// Kind classifies the layer.
	Kind string

	// Name identifies the layer (package name for base/plugin layers,
	// plugin name for extension overrides, "admin" for the project one).
	Name string

	// Root is the absolute source root of the layer.
	Root string

	// Rank is the precedence; higher wins on path collision.
	Rank int
}

// Plugin is a recognized plugin dependency.
type Plugin struct {
	// Name is the full dependency name (e.g. "strapi-plugin-users").
	Name string

	// ShortName is Name with the plugin prefix stripped.
	ShortName string

	// Root is the installed package root.
	Root string

	// HasAdmin reports whether the admin entry module exists; only such
	// plugins participate in the build.
	HasAdmin bool

	// IsOverridden reports whether an extension override directory exists
	// for this plugin in the project.
	IsOverridden bool
}

// Watch root kinds.
const (
	WatchProject   = "project"
	WatchExtension = "extension"
)

// WatchRoot is an override source location the live sync watcher
// subscribes to, tagged with its destination mapping and fallback source
// so no path pattern matching is needed per event.
type WatchRoot struct {
	// Kind is WatchProject or WatchExtension.
	Kind string

	// Source is the watched directory.
	Source string

	// Dest is the merged-tree directory Source maps onto.
	Dest string

	// Fallback is the next-lower layer directory used to restore content
	// after an override is deleted.
	Fallback string

	// PluginName is set for extension roots.
	PluginName string
}

// DestFor maps a path inside Source to its merged-tree destination.
func (w *WatchRoot) DestFor(path string) (string, error) {
	rel, err := filepath.Rel(w.Source, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is not under watch root %q", path, w.Source)
	}
	return filepath.Join(w.Dest, rel), nil
}

// FallbackFor maps a path inside Source to the lower-layer source that
// would have produced the destination before the override existed.
func (w *WatchRoot) FallbackFor(path string) (string, error) {
	rel, err := filepath.Rel(w.Source, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is not under watch root %q", path, w.Source)
	}
	return filepath.Join(w.Fallback, rel), nil
}

// Resolution is the outcome of resolving a project's layers.
type Resolution struct {
	// Paths are the project's fixed locations.
	Paths *config.Paths

	// Layers is the full layer list in ascending precedence.
	Layers []Layer

	// Plugins lists recognized plugins in declaration order, including
	// inactive ones (for status display).
	Plugins []Plugin

	// WatchRoots are the override locations to watch in dev mode, for
	// roots that exist at resolution time.
	WatchRoots []WatchRoot
}

// ActivePlugins returns the plugins that participate in the build, in
// declaration order.
func (r *Resolution) ActivePlugins() []Plugin {
	var active []Plugin
	for _, p := range r.Plugins {
		if p.HasAdmin {
			active = append(active, p)
		}
	}
	return active
}

// Resolver discovers a project's layers and plugin set.
type Resolver struct {
	fs     fsops.FS
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(fs fsops.FS, logger *zap.Logger) *Resolver {
	return &Resolver{fs: fs, logger: logger}
}

// Resolve enumerates the active layers and plugin set for a project.
// A missing package manifest is a configuration error; a missing
// individual plugin package is logged and the plugin excluded.
func (r *Resolver) Resolve(projectRoot string) (*Resolution, error) {
	paths := config.ProjectPaths(projectRoot)

	manifest, err := npm.ReadManifest(r.fs, projectRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	res := &Resolution{Paths: paths}

	rank := 0
	res.Layers = append(res.Layers, Layer{
		Kind: KindBase,
		Name: config.BasePackage,
		Root: paths.BaseLayer,
		Rank: rank,
	})

	// Plugin discovery: declared dependency names filtered by prefix,
	// intersected with filesystem existence. Declaration order is kept;
	// it governs manifest key collisions the same way materialization
	// order governs file collisions.
	for _, dep := range manifest.Dependencies {
		if !strings.HasPrefix(dep.Name, PluginPrefix) {
			continue
		}

		// Dependency names are joined into node_modules and merged-tree
		// paths; a name with separators or traversal segments must never
		// reach a join.
		if err := r.fs.ValidateIdentifier(dep.Name); err != nil {
			r.logger.Warn("invalid plugin dependency name, skipping",
				zap.String("plugin", dep.Name),
				zap.Error(err))
			continue
		}

		root := paths.PackageRoot(dep.Name)
		exists, err := r.fs.Exists(root)
		if err != nil {
			return nil, fmt.Errorf("failed to check plugin root %s: %w", root, err)
		}
		if !exists {
			r.logger.Warn("plugin package not installed, skipping",
				zap.String("plugin", dep.Name))
			continue
		}

		plugin := Plugin{
			Name:      dep.Name,
			ShortName: strings.TrimPrefix(dep.Name, PluginPrefix),
			Root:      root,
		}

		hasAdmin, err := r.fs.Exists(filepath.Join(root, filepath.FromSlash(AdminEntryRelPath)))
		if err != nil {
			return nil, fmt.Errorf("failed to check admin entry for %s: %w", dep.Name, err)
		}
		plugin.HasAdmin = hasAdmin

		overridden, err := r.fs.Exists(paths.ExtensionAdmin(plugin.ShortName))
		if err != nil {
			return nil, fmt.Errorf("failed to check extension override for %s: %w", dep.Name, err)
		}
		plugin.IsOverridden = overridden

		if plugin.HasAdmin {
			rank++
			res.Layers = append(res.Layers, Layer{
				Kind: KindPlugin,
				Name: plugin.Name,
				Root: root,
				Rank: rank,
			})
		}

		res.Plugins = append(res.Plugins, plugin)
	}

	// Project-level override layer, above all plugin layers.
	hasAdminOverride, err := r.fs.Exists(paths.AdminOverride)
	if err != nil {
		return nil, fmt.Errorf("failed to check admin override: %w", err)
	}
	if hasAdminOverride {
		rank++
		res.Layers = append(res.Layers, Layer{
			Kind: KindProjectOverride,
			Name: "admin",
			Root: paths.AdminOverride,
			Rank: rank,
		})
		res.WatchRoots = append(res.WatchRoots, WatchRoot{
			Kind:     WatchProject,
			Source:   paths.AdminOverride,
			Dest:     paths.MergedAdmin(),
			Fallback: filepath.Join(paths.BaseLayer, "admin"),
		})
	}

	// Extension override layers, one per overridden active plugin.
	for _, p := range res.Plugins {
		if !p.HasAdmin || !p.IsOverridden {
			continue
		}
		rank++
		source := paths.ExtensionAdmin(p.ShortName)
		res.Layers = append(res.Layers, Layer{
			Kind: KindExtensionOverride,
			Name: p.Name,
			Root: source,
			Rank: rank,
		})
		res.WatchRoots = append(res.WatchRoots, WatchRoot{
			Kind:       WatchExtension,
			Source:     source,
			Dest:       filepath.Join(paths.PluginDest(p.Name), "admin"),
			Fallback:   filepath.Join(p.Root, "admin"),
			PluginName: p.Name,
		})
	}

	return res, nil
}
