// Package config loads application configuration: built-in defaults, then an
// optional YAML file, then GREENHOUSE_* environment variables, each layer
// overriding the previous one.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/verdantlab/greenhouse/internal/envelope"
)

// envPrefix is the namespace for environment overrides, e.g.
// GREENHOUSE_PROFILE=dev or GREENHOUSE_RUNNER_COMMAND=Rscript.
const envPrefix = "GREENHOUSE_"

// Runner configures how primitives are executed.
type Runner struct {
	Command []string `koanf:"command"`
}

// Log configures the application logger.
type Log struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// Config is the resolved application configuration.
type Config struct {
	Profile     string `koanf:"profile"`
	ProjectRoot string `koanf:"project_root"`
	OutputDir   string `koanf:"output_dir"`
	EnvelopeDir string `koanf:"envelope_dir"`
	MethodsDir  string `koanf:"methods_dir"`
	TypesPath   string `koanf:"types_path"`
	LogsDir     string `koanf:"logs_dir"`
	Runner      Runner `koanf:"runner"`
	Log         Log    `koanf:"log"`
}

var defaults = map[string]any{
	"profile":        "full",
	"project_root":   ".",
	"output_dir":     "output",
	"envelope_dir":   "output/envelopes",
	"methods_dir":    "methods",
	"types_path":     "types.yml",
	"logs_dir":       "logs",
	"runner.command": []string{"Rscript", "--vanilla"},
	"log.level":      "info",
	"log.format":     "text",
}

// Load resolves configuration. path may be empty, in which case only
// defaults and environment overrides apply; a named file that does not exist
// is an error rather than a silent fallback.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if _, err := envelope.ParseProfile(cfg.Profile); err != nil {
		return nil, err
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q (valid: text, json)", cfg.Log.Format)
	}
	if len(cfg.Runner.Command) == 0 {
		return nil, fmt.Errorf("runner.command must not be empty")
	}

	return &cfg, nil
}

// envKeyMapper turns GREENHOUSE_ENVELOPE_DIR into envelope_dir and
// GREENHOUSE_LOG_LEVEL into log.level. Only the last underscore before a
// known nested section becomes a separator, so flat snake_case keys survive.
func envKeyMapper(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	for _, section := range []string{"runner", "log"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}
