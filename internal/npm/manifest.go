// Package npm reads the project's package manifest.
//
// Only the dependency name set is consulted by the build; version specs
// are carried along for display. Declaration order of the dependencies
// object is preserved because it determines plugin precedence downstream,
// and encoding/json maps would lose it.
package npm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/idreaminteractive/strapi/internal/fsops"
)

var (
	// ErrManifestNotFound indicates the project has no package.json.
	ErrManifestNotFound = errors.New("package.json not found")

	// ErrManifestInvalid indicates package.json could not be parsed.
	ErrManifestInvalid = errors.New("package.json is not valid JSON")
)

// Dependency is a single declared dependency.
type Dependency struct {
	// Name is the package name as declared.
	Name string

	// Version is the declared version spec (opaque to the build).
	Version string
}

// PackageJSON is the subset of the package manifest the build consults.
type PackageJSON struct {
	// Name is the project name.
	Name string

	// Dependencies lists declared dependencies in declaration order.
	Dependencies []Dependency
}

// ReadManifest reads and parses <projectRoot>/package.json.
func ReadManifest(fs fsops.FS, projectRoot string) (*PackageJSON, error) {
	path := filepath.Join(projectRoot, "package.json")

	exists, err := fs.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to check package.json: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package.json: %w", err)
	}

	return parseManifest(data)
}

// parseManifest extracts the name and ordered dependency list from raw
// package.json bytes.
func parseManifest(data []byte) (*PackageJSON, error) {
	// Validate the document as a whole first so a malformed file is
	// reported as such rather than as a missing key.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	manifest := &PackageJSON{}
	if raw, ok := probe["name"]; ok {
		if err := json.Unmarshal(raw, &manifest.Name); err != nil {
			return nil, fmt.Errorf("%w: name: %v", ErrManifestInvalid, err)
		}
	}

	raw, ok := probe["dependencies"]
	if !ok {
		// No dependencies key is a valid manifest with no plugins.
		return manifest, nil
	}

	deps, err := parseOrderedDependencies(raw)
	if err != nil {
		return nil, err
	}
	manifest.Dependencies = deps
	return manifest, nil
}

// parseOrderedDependencies walks the dependencies object token by token so
// the declaration order survives parsing.
func parseOrderedDependencies(raw json.RawMessage) ([]Dependency, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: dependencies: %v", ErrManifestInvalid, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: dependencies must be an object", ErrManifestInvalid)
	}

	var deps []Dependency
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: dependencies: %v", ErrManifestInvalid, err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: dependencies: unexpected key %v", ErrManifestInvalid, keyTok)
		}

		var version string
		if err := dec.Decode(&version); err != nil {
			return nil, fmt.Errorf("%w: dependency %q: version must be a string", ErrManifestInvalid, name)
		}

		deps = append(deps, Dependency{Name: name, Version: version})
	}

	return deps, nil
}
