package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/idreaminteractive/strapi/internal/config"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/hash"
	"github.com/idreaminteractive/strapi/internal/layers"
)

func devRuntime() *config.Runtime {
	return &config.Runtime{
		Mode:       config.ModeDevelopment,
		BackendURL: "/",
		Languages:  []string{"en", "fr"},
	}
}

func somePlugins() []layers.Plugin {
	return []layers.Plugin{
		{Name: "strapi-plugin-users", ShortName: "users", HasAdmin: true},
		{Name: "strapi-plugin-upload", ShortName: "upload", HasAdmin: true},
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	first := Generate(somePlugins(), devRuntime())
	second := Generate(somePlugins(), devRuntime())

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Generate is not deterministic (-first +second):\n%s", diff)
	}
}

func TestGenerate_Content(t *testing.T) {
	text := Generate(somePlugins(), devRuntime())

	for _, want := range []string{
		`"users": require('../../plugins/strapi-plugin-users/admin/src').default`,
		`"upload": require('../../plugins/strapi-plugin-upload/admin/src').default`,
		`mode: "development"`,
		`backendURL: resolveBackendURL("/")`,
		`languages: ["en", "fr"]`,
		`window.localStorage.getItem('strapi-admin-language')`,
		`window.navigator.language`,
		"module.exports = { appConfig, plugins };",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated manifest missing %q:\n%s", want, text)
		}
	}

	// Export order follows resolver order.
	if strings.Index(text, `"users"`) > strings.Index(text, `"upload"`) {
		t.Error("plugin exports out of resolver order")
	}
}

func TestGenerate_ShortNameCollision(t *testing.T) {
	// Two plugins with the same short name: the later-declared entry wins.
	plugins := []layers.Plugin{
		{Name: "strapi-plugin-users", ShortName: "users", HasAdmin: true},
		{Name: "strapi-plugin-upload", ShortName: "upload", HasAdmin: true},
		{Name: "other-scope-users", ShortName: "users", HasAdmin: true},
	}

	text := Generate(plugins, devRuntime())

	if strings.Contains(text, "plugins/strapi-plugin-users/") {
		t.Error("earlier colliding plugin entry should be overwritten")
	}
	if !strings.Contains(text, `"users": require('../../plugins/other-scope-users/admin/src').default`) {
		t.Errorf("later-declared plugin should win the manifest key:\n%s", text)
	}
	if strings.Count(text, `"users":`) != 1 {
		t.Error("colliding short name should appear exactly once")
	}
}

func TestGenerate_EscapesKeys(t *testing.T) {
	plugins := []layers.Plugin{
		{Name: `strapi-plugin-we"ird`, ShortName: `we"ird`, HasAdmin: true},
	}

	text := Generate(plugins, devRuntime())
	if !strings.Contains(text, `"we\"ird":`) {
		t.Errorf("short name not escaped as a mapping key:\n%s", text)
	}
}

func TestGenerator_Write(t *testing.T) {
	fs := fsops.NewRealFS()
	g := NewGenerator(fs, hash.NewSHA256Hasher())

	root := t.TempDir()
	t.Setenv("STRAPI_ADMIN_CACHE_DIR", filepath.Join(root, ".cache"))
	paths := config.ProjectPaths(root)

	text := Generate(somePlugins(), devRuntime())

	changed, err := g.Write(paths, text)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !changed {
		t.Error("first write should report a change")
	}

	onDisk, err := os.ReadFile(paths.ManifestPath())
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	if string(onDisk) != text {
		t.Error("manifest on disk does not match generated text")
	}

	// Rewriting identical content is a no-op.
	changed, err = g.Write(paths, text)
	if err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	if changed {
		t.Error("identical rewrite should be skipped")
	}

	// Different content is written.
	other := Generate(nil, devRuntime())
	changed, err = g.Write(paths, other)
	if err != nil {
		t.Fatalf("third Write failed: %v", err)
	}
	if !changed {
		t.Error("changed content should be written")
	}
}
