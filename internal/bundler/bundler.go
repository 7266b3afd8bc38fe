// Package bundler is the boundary to the external bundler and its dev
// server.
//
// The build core hands the bundler a fixed entry file inside the merged
// tree and consumes nothing beyond the {errors, warnings} result shape.
package bundler

import (
	"context"
)

// Config is the compilation request handed to the bundler.
type Config struct {
	// EntryPath is the entry file inside the merged tree.
	EntryPath string `json:"entryPath"`

	// OutputPath is where the bundle is emitted.
	OutputPath string `json:"outputPath"`

	// Mode is "development" or "production".
	Mode string `json:"mode"`

	// PublicPath is the URL prefix the bundle will be served under.
	PublicPath string `json:"publicPath"`

	// Defines are constants injected as globals into the compiled bundle.
	Defines map[string]string `json:"defines,omitempty"`
}

// Result is the bundler's outcome. Zero errors means success.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Bundler compiles a merged tree into a bundle.
type Bundler interface {
	Compile(ctx context.Context, cfg Config) (*Result, error)
}

// FakeBundler returns a scripted result, for tests.
type FakeBundler struct {
	// Result is returned from every Compile call.
	Result Result

	// Err aborts Compile before producing a result.
	Err error

	// Calls records the configs Compile was invoked with.
	Calls []Config
}

// Compile records the call and returns the scripted result.
func (f *FakeBundler) Compile(_ context.Context, cfg Config) (*Result, error) {
	f.Calls = append(f.Calls, cfg)
	if f.Err != nil {
		return nil, f.Err
	}
	result := f.Result
	return &result, nil
}
