package config

import (
	"path/filepath"
	"testing"
)

func TestProjectPaths(t *testing.T) {
	p := ProjectPaths("/work/app")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"node modules", p.NodeModules, "/work/app/node_modules"},
		{"base layer", p.BaseLayer, "/work/app/node_modules/strapi-admin"},
		{"admin override", p.AdminOverride, "/work/app/admin"},
		{"extensions", p.Extensions, "/work/app/extensions"},
		{"cache", p.Cache, "/work/app/.cache"},
		{"merged admin", p.MergedAdmin(), "/work/app/.cache/admin"},
		{"merged plugins", p.MergedPlugins(), "/work/app/.cache/plugins"},
		{"plugin dest", p.PluginDest("strapi-plugin-users"), "/work/app/.cache/plugins/strapi-plugin-users"},
		{"manifest", p.ManifestPath(), "/work/app/.cache/admin/src/plugins.js"},
		{"entry point", p.EntryPoint(), "/work/app/.cache/admin/src/app.js"},
		{"package root", p.PackageRoot("strapi-plugin-upload"), "/work/app/node_modules/strapi-plugin-upload"},
		{"extension admin", p.ExtensionAdmin("users"), "/work/app/extensions/users/admin"},
		{"build output", p.BuildOutput, "/work/app/build"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if filepath.ToSlash(tt.got) != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestProjectPaths_CacheOverride(t *testing.T) {
	t.Setenv("STRAPI_ADMIN_CACHE_DIR", "/tmp/admin-cache")

	p := ProjectPaths("/work/app")
	if p.Cache != "/tmp/admin-cache" {
		t.Errorf("Cache = %q, want env override", p.Cache)
	}
	if filepath.ToSlash(p.ManifestPath()) != "/tmp/admin-cache/admin/src/plugins.js" {
		t.Errorf("ManifestPath = %q, want under override", p.ManifestPath())
	}
}

func TestDefaultRuntime(t *testing.T) {
	t.Run("development defaults", func(t *testing.T) {
		rt, err := DefaultRuntime(ModeDevelopment)
		if err != nil {
			t.Fatalf("DefaultRuntime failed: %v", err)
		}
		if rt.BackendURL != "/" {
			t.Errorf("BackendURL = %q, want %q", rt.BackendURL, "/")
		}
		if len(rt.Languages) != 1 || rt.Languages[0] != "en" {
			t.Errorf("Languages = %v, want [en]", rt.Languages)
		}
		if rt.Port != 4000 {
			t.Errorf("Port = %d, want 4000", rt.Port)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		if _, err := DefaultRuntime("staging"); err == nil {
			t.Error("DefaultRuntime should reject unknown modes")
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("STRAPI_BACKEND_URL", "https://api.example.com")
		t.Setenv("STRAPI_ADMIN_LANGUAGES", "en, fr ,de")
		t.Setenv("STRAPI_ADMIN_PORT", "1337")

		rt, err := DefaultRuntime(ModeProduction)
		if err != nil {
			t.Fatalf("DefaultRuntime failed: %v", err)
		}
		if rt.BackendURL != "https://api.example.com" {
			t.Errorf("BackendURL = %q, want env override", rt.BackendURL)
		}
		want := []string{"en", "fr", "de"}
		if len(rt.Languages) != len(want) {
			t.Fatalf("Languages = %v, want %v", rt.Languages, want)
		}
		for i := range want {
			if rt.Languages[i] != want[i] {
				t.Errorf("Languages[%d] = %q, want %q", i, rt.Languages[i], want[i])
			}
		}
		if rt.Port != 1337 {
			t.Errorf("Port = %d, want 1337", rt.Port)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		t.Setenv("STRAPI_ADMIN_PORT", "not-a-port")
		if _, err := DefaultRuntime(ModeDevelopment); err == nil {
			t.Error("DefaultRuntime should reject a non-numeric port")
		}
	})
}
