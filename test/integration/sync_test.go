package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/idreaminteractive/strapi/internal/config"
)

// startSession materializes the tree and starts the live sync watcher.
func startSession(t *testing.T, f *fixture, s *stack) {
	t.Helper()
	rt, err := config.DefaultRuntime(config.ModeDevelopment)
	if err != nil {
		t.Fatalf("DefaultRuntime() error = %v", err)
	}

	ctx := context.Background()
	tree, err := s.Materializer.Materialize(ctx, f.Root, rt)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if err := s.Watcher.Start(ctx, f.Root, tree.Resolution, rt); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(s.Watcher.Stop)
}

func TestSync_OverrideEditReachesMergedTree(t *testing.T) {
	f := newFixture(t, "strapi-plugin-users")
	f.InstallPlugin("strapi-plugin-users", true)
	f.Write("admin/src/layout.js", "// v1\n")

	s := newStack()
	startSession(t, f, s)

	f.Write("admin/src/layout.js", "// v2\n")
	waitFor(t, "edited override to sync", func() bool {
		return f.Read(".cache/admin/src/layout.js") == "// v2\n"
	})

	// A brand new override file syncs too.
	f.Write("admin/src/new-page.js", "// new page\n")
	waitFor(t, "created override to sync", func() bool {
		return f.Exists(".cache/admin/src/new-page.js")
	})
}

func TestSync_DeletedExtensionOverrideRestoresPluginFile(t *testing.T) {
	f := newFixture(t, "strapi-plugin-users")
	f.InstallPlugin("strapi-plugin-users", true)
	f.Write("node_modules/strapi-plugin-users/admin/src/menu.js", "// plugin menu\n")
	f.Write("extensions/users/admin/src/menu.js", "// extended menu\n")

	s := newStack()
	startSession(t, f, s)

	merged := ".cache/plugins/strapi-plugin-users/admin/src/menu.js"
	if got := f.Read(merged); got != "// extended menu\n" {
		t.Fatalf("override should win initially, got %q", got)
	}

	f.Remove("extensions/users/admin/src/menu.js")
	waitFor(t, "plugin content to be restored", func() bool {
		return f.Exists(merged) && f.Read(merged) == "// plugin menu\n"
	})
}

func TestSync_DeletedOverrideWithoutFallbackIsRemoved(t *testing.T) {
	f := newFixture(t, "strapi-plugin-users")
	f.InstallPlugin("strapi-plugin-users", true)
	f.Write("admin/src/only-here.js", "// project only\n")

	s := newStack()
	startSession(t, f, s)

	f.Remove("admin/src/only-here.js")
	waitFor(t, "unbacked override to disappear", func() bool {
		return !f.Exists(".cache/admin/src/only-here.js")
	})
}

func TestSync_PluginGoneFromManifestAfterEntryPointDeleted(t *testing.T) {
	f := newFixture(t, "strapi-plugin-users", "strapi-plugin-email")
	f.InstallPlugin("strapi-plugin-users", true)
	f.InstallPlugin("strapi-plugin-email", true)
	f.Write("extensions/users/admin/src/index.js", "// override entry\n")

	s := newStack()
	startSession(t, f, s)

	manifestRel := ".cache/admin/src/plugins.js"
	if got := f.Read(manifestRel); !strings.Contains(got, `"users":`) {
		t.Fatalf("manifest should list the active plugin:\n%s", got)
	}

	// Dropping both the installed entry point and its override makes the
	// plugin inactive. The override deletion touches the merged entry
	// point, which triggers a manifest regeneration with the recomputed
	// plugin set.
	f.Remove("node_modules/strapi-plugin-users/admin/src/index.js")
	f.Remove("extensions/users/admin/src/index.js")

	waitFor(t, "manifest to drop the inactive plugin", func() bool {
		text := f.Read(manifestRel)
		return !strings.Contains(text, `"users":`) && strings.Contains(text, `"email":`)
	})
}
