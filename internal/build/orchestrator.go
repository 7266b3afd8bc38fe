// Package build orchestrates full admin builds and dev sessions.
//
// It is the API surface called by the CLI: materialize the merged tree,
// hand the entry point to the external bundler, and in development mode
// run the dev server and the live sync watcher side by side.
package build

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/idreaminteractive/strapi/internal/bundler"
	"github.com/idreaminteractive/strapi/internal/cache"
	"github.com/idreaminteractive/strapi/internal/clock"
	"github.com/idreaminteractive/strapi/internal/config"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/layers"
	"github.com/idreaminteractive/strapi/internal/manifest"
	"github.com/idreaminteractive/strapi/internal/watcher"
)

// ErrCompile indicates the bundler reported one or more errors. Only the
// first error message is carried; the rest are suppressed as redundant.
var ErrCompile = errors.New("compilation failed")

// Result summarizes a completed one-shot build.
type Result struct {
	// Warnings are the bundler's warnings, if any.
	Warnings []string

	// OutputPath is where the bundle was emitted.
	OutputPath string

	// Plugins is the number of active plugins in the build.
	Plugins int

	// Duration is the total wall time of the build.
	Duration time.Duration
}

// Orchestrator drives builds and dev sessions.
type Orchestrator struct {
	fs           fsops.FS
	resolver     *layers.Resolver
	generator    *manifest.Generator
	materializer *cache.Materializer
	bundler      bundler.Bundler
	devServer    *bundler.DevServer
	clock        clock.Clock
	logger       *zap.Logger
}

// New creates an Orchestrator with the given dependencies.
func New(
	fs fsops.FS,
	resolver *layers.Resolver,
	generator *manifest.Generator,
	materializer *cache.Materializer,
	b bundler.Bundler,
	devServer *bundler.DevServer,
	clk clock.Clock,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		fs:           fs,
		resolver:     resolver,
		generator:    generator,
		materializer: materializer,
		bundler:      b,
		devServer:    devServer,
		clock:        clk,
		logger:       logger,
	}
}

// BuildOnce materializes the merged tree and compiles it once.
// Materialization must complete before the bundler starts. A bundler
// result with errors fails the build with only the first message.
func (o *Orchestrator) BuildOnce(ctx context.Context, projectRoot string, rt *config.Runtime) (*Result, error) {
	start := o.clock.Now()

	tree, err := o.materializer.Materialize(ctx, projectRoot, rt)
	if err != nil {
		return nil, err
	}
	paths := tree.Resolution.Paths

	compiled, err := o.bundler.Compile(ctx, o.compileConfig(tree, rt))
	if err != nil {
		return nil, fmt.Errorf("bundler invocation failed: %w", err)
	}
	if len(compiled.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrCompile, compiled.Errors[0])
	}

	return &Result{
		Warnings:   compiled.Warnings,
		OutputPath: paths.BuildOutput,
		Plugins:    len(tree.Resolution.ActivePlugins()),
		Duration:   o.clock.Now().Sub(start),
	}, nil
}

// Watch materializes the merged tree, compiles it, then runs the dev
// server and the live sync watcher concurrently until the context is
// cancelled. A compile that merely reports errors does not end the
// session; the first error is logged and the watcher keeps syncing.
func (o *Orchestrator) Watch(ctx context.Context, projectRoot string, rt *config.Runtime) error {
	tree, err := o.materializer.Materialize(ctx, projectRoot, rt)
	if err != nil {
		return err
	}
	paths := tree.Resolution.Paths

	compiled, err := o.bundler.Compile(ctx, o.compileConfig(tree, rt))
	if err != nil {
		return fmt.Errorf("bundler invocation failed: %w", err)
	}
	if len(compiled.Errors) > 0 {
		o.logger.Warn("initial compile reported errors",
			zap.String("first", compiled.Errors[0]),
			zap.Int("suppressed", len(compiled.Errors)-1))
	}

	w := watcher.New(o.fs, o.resolver, o.generator, o.clock, o.logger)
	if err := w.Start(ctx, projectRoot, tree.Resolution, rt); err != nil {
		return fmt.Errorf("failed to start live sync watcher: %w", err)
	}
	defer w.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := net.JoinHostPort(rt.Host, strconv.Itoa(rt.Port))
		return o.devServer.Serve(ctx, addr, paths.BuildOutput, "index.html")
	})

	return g.Wait()
}

// compileConfig maps a materialized tree and runtime settings onto the
// bundler boundary.
func (o *Orchestrator) compileConfig(tree *cache.Tree, rt *config.Runtime) bundler.Config {
	paths := tree.Resolution.Paths
	return bundler.Config{
		EntryPath:  paths.EntryPoint(),
		OutputPath: paths.BuildOutput,
		Mode:       rt.Mode,
		PublicPath: rt.PublicPath,
		Defines: map[string]string{
			"process.env.NODE_ENV":           fmt.Sprintf("%q", rt.Mode),
			"process.env.STRAPI_BACKEND_URL": fmt.Sprintf("%q", rt.BackendURL),
		},
	}
}
