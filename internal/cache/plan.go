package cache

import (
	"path/filepath"

	"github.com/idreaminteractive/strapi/internal/layers"
)

// Operation is a single copy from a layer source into the merged tree.
type Operation struct {
	// Source is the absolute source path.
	Source string

	// Dest is the absolute destination path inside the merged tree.
	Dest string

	// Layer names the contributing layer, for logging.
	Layer string

	// Optional marks operations whose missing source or copy failure is
	// logged and skipped rather than aborting the build.
	Optional bool
}

// Step is a group of operations at one precedence level. Operations
// within a step run concurrently; steps run strictly in order, so a later
// step always wins a cross-step path collision.
type Step struct {
	// Name identifies the step for logging.
	Name string

	// Ops are the copy operations of this step.
	Ops []Operation
}

// Plan is the ordered list of copy steps for one materialization, built
// from a layer resolution before any filesystem mutation happens.
type Plan struct {
	Steps []Step
}

// Operations returns all operations across steps, in execution order.
func (p *Plan) Operations() []Operation {
	var ops []Operation
	for _, s := range p.Steps {
		ops = append(ops, s.Ops...)
	}
	return ops
}

// BuildPlan computes the copy steps for a resolution, in ascending layer
// precedence: base, plugin layers, project override, extension overrides.
// The manifest is generated between the plugin and override steps by the
// materializer, not planned as a copy.
func BuildPlan(res *layers.Resolution) *Plan {
	paths := res.Paths
	plan := &Plan{}

	plan.Steps = append(plan.Steps, Step{
		Name: "base",
		Ops: []Operation{{
			Source: paths.BaseLayer,
			Dest:   paths.Cache,
			Layer:  layers.KindBase,
		}},
	})

	var pluginOps []Operation
	for _, p := range res.ActivePlugins() {
		dest := paths.PluginDest(p.Name)
		pluginOps = append(pluginOps,
			Operation{
				Source:   filepath.Join(p.Root, "admin"),
				Dest:     filepath.Join(dest, "admin"),
				Layer:    p.Name,
				Optional: true,
			},
			Operation{
				Source:   filepath.Join(p.Root, "config", "layout.js"),
				Dest:     filepath.Join(dest, "config", "layout.js"),
				Layer:    p.Name,
				Optional: true,
			},
			Operation{
				Source:   filepath.Join(p.Root, "package.json"),
				Dest:     filepath.Join(dest, "package.json"),
				Layer:    p.Name,
				Optional: true,
			},
		)
	}
	plan.Steps = append(plan.Steps, Step{Name: "plugins", Ops: pluginOps})

	var projectOps []Operation
	var extensionOps []Operation
	for _, l := range res.Layers {
		switch l.Kind {
		case layers.KindProjectOverride:
			projectOps = append(projectOps, Operation{
				Source:   l.Root,
				Dest:     paths.MergedAdmin(),
				Layer:    layers.KindProjectOverride,
				Optional: true,
			})
		case layers.KindExtensionOverride:
			extensionOps = append(extensionOps, Operation{
				Source:   l.Root,
				Dest:     filepath.Join(paths.PluginDest(l.Name), "admin"),
				Layer:    l.Name,
				Optional: true,
			})
		}
	}
	plan.Steps = append(plan.Steps, Step{Name: "project-override", Ops: projectOps})
	plan.Steps = append(plan.Steps, Step{Name: "extension-overrides", Ops: extensionOps})

	return plan
}
