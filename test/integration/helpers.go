package integration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/idreaminteractive/strapi/internal/build"
	"github.com/idreaminteractive/strapi/internal/bundler"
	"github.com/idreaminteractive/strapi/internal/cache"
	"github.com/idreaminteractive/strapi/internal/clock"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/hash"
	"github.com/idreaminteractive/strapi/internal/layers"
	"github.com/idreaminteractive/strapi/internal/manifest"
	"github.com/idreaminteractive/strapi/internal/watcher"
)

// fixture is an on-disk project used to exercise the full pipeline.
type fixture struct {
	t    *testing.T
	Root string
}

// newFixture creates a project with a base admin layer and a valid
// package manifest declaring the given plugin dependencies in order.
func newFixture(t *testing.T, pluginNames ...string) *fixture {
	t.Helper()
	f := &fixture{t: t, Root: t.TempDir()}

	deps := ""
	for i, name := range pluginNames {
		if i > 0 {
			deps += ", "
		}
		deps += `"` + name + `": "3.0.0"`
	}
	f.Write("package.json", `{"name": "app", "dependencies": {`+deps+`}}`)
	f.Write("node_modules/strapi-admin/admin/src/app.js", "// app entry\n")
	f.Write("node_modules/strapi-admin/admin/src/layout.js", "// base layout\n")
	return f
}

// InstallPlugin creates an installed plugin package. withEntry controls
// whether the plugin carries an admin entry module.
func (f *fixture) InstallPlugin(name string, withEntry bool) {
	f.t.Helper()
	pkg := "node_modules/" + name
	f.Write(pkg+"/package.json", `{"name": "`+name+`"}`)
	if withEntry {
		f.Write(pkg+"/admin/src/index.js", "// "+name+" entry\n")
	}
}

// Write creates a file at a slash-separated path relative to the project
// root, creating parents as needed.
func (f *fixture) Write(rel, content string) {
	f.t.Helper()
	path := f.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		f.t.Fatalf("Failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		f.t.Fatalf("Failed to write %s: %v", rel, err)
	}
}

// Remove deletes a path relative to the project root.
func (f *fixture) Remove(rel string) {
	f.t.Helper()
	if err := os.RemoveAll(f.Path(rel)); err != nil {
		f.t.Fatalf("Failed to remove %s: %v", rel, err)
	}
}

// Read returns the content of a path relative to the project root.
func (f *fixture) Read(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(f.Path(rel))
	if err != nil {
		f.t.Fatalf("Failed to read %s: %v", rel, err)
	}
	return string(data)
}

// Exists reports whether a path relative to the project root exists.
func (f *fixture) Exists(rel string) bool {
	_, err := os.Lstat(f.Path(rel))
	return err == nil
}

// Path resolves a slash-separated relative path against the project root.
func (f *fixture) Path(rel string) string {
	return filepath.Join(f.Root, filepath.FromSlash(rel))
}

// stack bundles real implementations of the whole pipeline.
type stack struct {
	FS           fsops.FS
	Resolver     *layers.Resolver
	Generator    *manifest.Generator
	Materializer *cache.Materializer
	Watcher      *watcher.Watcher
}

func newStack() *stack {
	fs := fsops.NewRealFS()
	logger := zap.NewNop()
	clk := &clock.RealClock{}
	resolver := layers.NewResolver(fs, logger)
	generator := manifest.NewGenerator(fs, hash.NewSHA256Hasher())
	return &stack{
		FS:           fs,
		Resolver:     resolver,
		Generator:    generator,
		Materializer: cache.NewMaterializer(fs, resolver, generator, clk, logger),
		Watcher:      watcher.New(fs, resolver, generator, clk, logger),
	}
}

// Orchestrator wires the stack into a build orchestrator around the
// given bundler.
func (s *stack) Orchestrator(b bundler.Bundler) *build.Orchestrator {
	logger := zap.NewNop()
	clk := &clock.RealClock{}
	return build.New(s.FS, s.Resolver, s.Generator, s.Materializer, b, bundler.NewDevServer(logger), clk, logger)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
