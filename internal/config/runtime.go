package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Runtime holds the settings injected into the generated bootstrap and
// used by the dev server.
type Runtime struct {
	// Mode is "development" or "production".
	Mode string

	// BackendURL is the API backend the admin talks to. A root-relative
	// value (leading "/") is resolved against the current origin by the
	// generated bootstrap.
	BackendURL string

	// Languages is the list of enabled admin locales.
	Languages []string

	// Host and Port are the dev server bind address.
	Host string
	Port int

	// PublicPath is the URL prefix the bundle is served under.
	PublicPath string
}

// Environment values for Runtime.Mode.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// DefaultRuntime returns the runtime settings for the given mode.
// Settings can be overridden with environment variables:
//   - STRAPI_BACKEND_URL: backend API location
//   - STRAPI_ADMIN_LANGUAGES: comma-separated locale list
//   - STRAPI_ADMIN_HOST, STRAPI_ADMIN_PORT: dev server bind address
func DefaultRuntime(mode string) (*Runtime, error) {
	if mode != ModeDevelopment && mode != ModeProduction {
		return nil, fmt.Errorf("unknown environment %q (want %s or %s)", mode, ModeDevelopment, ModeProduction)
	}

	rt := &Runtime{
		Mode:       mode,
		BackendURL: "/",
		Languages:  []string{"en"},
		Host:       "localhost",
		Port:       4000,
		PublicPath: "/admin/",
	}

	if v := os.Getenv("STRAPI_BACKEND_URL"); v != "" {
		rt.BackendURL = v
	}
	if v := os.Getenv("STRAPI_ADMIN_LANGUAGES"); v != "" {
		var langs []string
		for _, lang := range strings.Split(v, ",") {
			lang = strings.TrimSpace(lang)
			if lang != "" {
				langs = append(langs, lang)
			}
		}
		if len(langs) > 0 {
			rt.Languages = langs
		}
	}
	if v := os.Getenv("STRAPI_ADMIN_HOST"); v != "" {
		rt.Host = v
	}
	if v := os.Getenv("STRAPI_ADMIN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STRAPI_ADMIN_PORT %q: %w", v, err)
		}
		rt.Port = port
	}

	return rt, nil
}
