package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/idreaminteractive/strapi/internal/build"
	"github.com/idreaminteractive/strapi/internal/bundler"
	"github.com/idreaminteractive/strapi/internal/cache"
	"github.com/idreaminteractive/strapi/internal/clock"
	"github.com/idreaminteractive/strapi/internal/config"
	"github.com/idreaminteractive/strapi/internal/fsops"
	"github.com/idreaminteractive/strapi/internal/hash"
	"github.com/idreaminteractive/strapi/internal/layers"
	"github.com/idreaminteractive/strapi/internal/manifest"
)

// bundlerEnvVar overrides the external bundler command. The value is
// split on whitespace; the first token is the command, the rest are
// leading arguments.
const bundlerEnvVar = "STRAPI_ADMIN_BUNDLER"

const defaultBundlerCommand = "strapi-admin-bundler"

// newOrchestrator creates a build orchestrator with real implementations
// of all dependencies.
func newOrchestrator(mode string) (*build.Orchestrator, error) {
	logger, err := newLogger(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	fs := fsops.NewRealFS()
	hasher := hash.NewSHA256Hasher()
	clk := &clock.RealClock{}
	resolver := layers.NewResolver(fs, logger)
	generator := manifest.NewGenerator(fs, hasher)
	materializer := cache.NewMaterializer(fs, resolver, generator, clk, logger)

	command, args := bundlerCommand()
	execBundler := bundler.NewExecBundler(logger, command, args...)
	devServer := bundler.NewDevServer(logger)

	return build.New(fs, resolver, generator, materializer, execBundler, devServer, clk, logger), nil
}

// newLogger creates a zap logger tuned to the build mode: terse console
// output for production builds, verbose output for dev sessions.
func newLogger(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == config.ModeDevelopment {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return cfg.Build()
}

// bundlerCommand resolves the external bundler invocation.
func bundlerCommand() (string, []string) {
	raw := strings.TrimSpace(os.Getenv(bundlerEnvVar))
	if raw == "" {
		return defaultBundlerCommand, nil
	}
	parts := strings.Fields(raw)
	return parts[0], parts[1:]
}

// projectRoot resolves the project directory for a command: the --dir
// flag when set, the working directory otherwise.
func projectRoot(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return cwd, nil
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
