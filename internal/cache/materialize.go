// Package cache materializes the merged tree an admin bundle is compiled
// from.
//
// Materialization is a full, idempotent rebuild: the destination is
// emptied, every layer is copied in ascending precedence order, and the
// plugin manifest is generated. Copies within one precedence step fan out
// concurrently; the materializer waits for each step to complete before
// starting the next so cross-step collisions always resolve to the higher
// layer.
package cache

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/idreaminteractive/strapi/internal/clock"
	"github.com/idreaminteractive/strapi/internal/config"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/layers"
	"github.com/idreaminteractive/strapi/internal/manifest"
)

// Tree is a handle to a materialized merged tree.
type Tree struct {
	// MergedRoot is the merged tree root directory.
	MergedRoot string

	// Resolution is the layer resolution the tree was built from.
	Resolution *layers.Resolution
}

// Materializer performs full builds of the merged tree.
type Materializer struct {
	fs        fsops.FS
	resolver  *layers.Resolver
	generator *manifest.Generator
	clock     clock.Clock
	logger    *zap.Logger
}

// NewMaterializer creates a Materializer.
func NewMaterializer(fs fsops.FS, resolver *layers.Resolver, generator *manifest.Generator, clk clock.Clock, logger *zap.Logger) *Materializer {
	return &Materializer{
		fs:        fs,
		resolver:  resolver,
		generator: generator,
		clock:     clk,
		logger:    logger,
	}
}

// Materialize rebuilds the merged tree for a project from scratch.
// Safe to call repeatedly: for unchanged inputs the resulting tree
// contents are identical. A missing base layer aborts the build; a
// missing individual plugin subtree is logged and skipped.
func (m *Materializer) Materialize(ctx context.Context, projectRoot string, rt *config.Runtime) (*Tree, error) {
	start := m.clock.Now()

	res, err := m.resolver.Resolve(projectRoot)
	if err != nil {
		return nil, err
	}
	paths := res.Paths

	baseExists, err := m.fs.Exists(paths.BaseLayer)
	if err != nil {
		return nil, fmt.Errorf("failed to check base layer: %w", err)
	}
	if !baseExists {
		return nil, fmt.Errorf("%w: base layer %s is not installed", layers.ErrConfiguration, paths.BaseLayer)
	}

	if err := m.fs.EmptyDir(paths.Cache); err != nil {
		return nil, fmt.Errorf("failed to reset merged tree: %w", err)
	}

	plan := BuildPlan(res)
	for _, step := range plan.Steps {
		if err := m.executeStep(ctx, step); err != nil {
			return nil, err
		}

		// The manifest sits between the plugin layers and the override
		// layers in precedence: an override may legitimately shadow it.
		if step.Name == "plugins" {
			text := manifest.Generate(res.ActivePlugins(), rt)
			if _, err := m.generator.Write(paths, text); err != nil {
				return nil, err
			}
		}
	}

	m.logger.Info("merged tree materialized",
		zap.String("root", paths.Cache),
		zap.Int("layers", len(res.Layers)),
		zap.Int("plugins", len(res.ActivePlugins())),
		zap.Duration("took", m.clock.Now().Sub(start)))

	return &Tree{MergedRoot: paths.Cache, Resolution: res}, nil
}

// executeStep runs one step's copies concurrently and waits for all of
// them to finish. Optional operation failures are logged and skipped;
// required ones abort the build.
func (m *Materializer) executeStep(ctx context.Context, step Step) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, op := range step.Ops {
		op := op
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			exists, err := m.fs.Exists(op.Source)
			if err != nil {
				return fmt.Errorf("failed to check %s: %w", op.Source, err)
			}
			if !exists {
				if op.Optional {
					m.logger.Debug("layer source missing, skipping",
						zap.String("layer", op.Layer),
						zap.String("source", op.Source))
					return nil
				}
				return fmt.Errorf("layer source %s does not exist", op.Source)
			}

			if err := m.fs.Copy(op.Source, op.Dest); err != nil {
				if op.Optional {
					m.logger.Warn("layer copy failed, skipping",
						zap.String("layer", op.Layer),
						zap.String("source", op.Source),
						zap.Error(err))
					return nil
				}
				return fmt.Errorf("failed to copy %s layer: %w", op.Layer, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("materialize step %s: %w", step.Name, err)
	}
	return nil
}
