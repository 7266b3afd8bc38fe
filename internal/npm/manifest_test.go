package npm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/idreaminteractive/strapi/internal/fsops"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write package.json: %v", err)
	}
}

func TestReadManifest(t *testing.T) {
	fs := fsops.NewRealFS()

	t.Run("preserves dependency declaration order", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, `{
			"name": "my-project",
			"dependencies": {
				"strapi-plugin-users": "3.0.0",
				"lodash": "^4.17.0",
				"strapi-plugin-upload": "3.0.0",
				"strapi-plugin-aaa": "1.0.0"
			}
		}`)

		manifest, err := ReadManifest(fs, dir)
		if err != nil {
			t.Fatalf("ReadManifest failed: %v", err)
		}

		if manifest.Name != "my-project" {
			t.Errorf("Name = %q, want %q", manifest.Name, "my-project")
		}

		want := []string{"strapi-plugin-users", "lodash", "strapi-plugin-upload", "strapi-plugin-aaa"}
		if len(manifest.Dependencies) != len(want) {
			t.Fatalf("got %d dependencies, want %d", len(manifest.Dependencies), len(want))
		}
		for i, name := range want {
			if manifest.Dependencies[i].Name != name {
				t.Errorf("Dependencies[%d].Name = %q, want %q", i, manifest.Dependencies[i].Name, name)
			}
		}
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := ReadManifest(fs, t.TempDir())
		if !errors.Is(err, ErrManifestNotFound) {
			t.Errorf("error = %v, want ErrManifestNotFound", err)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, `{ not json`)

		_, err := ReadManifest(fs, dir)
		if !errors.Is(err, ErrManifestInvalid) {
			t.Errorf("error = %v, want ErrManifestInvalid", err)
		}
	})

	t.Run("no dependencies key", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, `{"name": "bare"}`)

		manifest, err := ReadManifest(fs, dir)
		if err != nil {
			t.Fatalf("ReadManifest failed: %v", err)
		}
		if len(manifest.Dependencies) != 0 {
			t.Errorf("got %d dependencies, want 0", len(manifest.Dependencies))
		}
	})

	t.Run("non-object dependencies", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, `{"dependencies": ["strapi-plugin-users"]}`)

		_, err := ReadManifest(fs, dir)
		if !errors.Is(err, ErrManifestInvalid) {
			t.Errorf("error = %v, want ErrManifestInvalid", err)
		}
	})

	t.Run("non-string version", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, `{"dependencies": {"strapi-plugin-users": 3}}`)

		_, err := ReadManifest(fs, dir)
		if !errors.Is(err, ErrManifestInvalid) {
			t.Errorf("error = %v, want ErrManifestInvalid", err)
		}
	})
}
