package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by the loader.
// Nested keys are separated by a double underscore:
// LEAPCOMPLETE_SOURCES__SHOP__HOST sets sources.shop.host.
const EnvPrefix = "LEAPCOMPLETE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"leapcomplete.yaml", "leapcomplete.yml"}

// flagKeys maps command-line flags to config keys.
// Flags missing from the map are not configuration.
var flagKeys = map[string]string{
	"source":          "source",
	"max-suggestions": "completion.max_suggestions",
	"capacity":        "expansion.capacity",
	"log-level":       "log_level",
	"log-format":      "log_format",
	"output":          "output",
	"watch":           "watch",
	"addr":            "serve.addr",
	"session-secret":  "serve.session_secret",
}

// FlagKey returns the config key a command-line flag sets.
func FlagKey(flag string) (string, bool) {
	key, ok := flagKeys[flag]
	return key, ok
}

// Defaults returns the default value of every key that has one.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"completion.max_suggestions": DefaultMaxSuggestions,
		"expansion.capacity":         DefaultCapacity,
		"log_level":                  DefaultLogLevel,
		"log_format":                 DefaultLogFormat,
		"output":                     DefaultOutput,
		"watch":                      false,
		"serve.addr":                 DefaultAddr,
	}
}

// EnvVar returns the environment variable that sets a config key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configIn returns the config file in dir, if any.
func configIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configIn(dir); found != "" {
			return found
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// findConfigFile finds the config file to use.
// Priority: explicit path > search upward from CWD
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findConfigUpward(cwd)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables
	// Transform: LEAPCOMPLETE_SOURCES__SHOP__HOST -> sources.shop.host
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct. Include and exclude patterns may
	// arrive from the environment as a comma separated string.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	for id, sc := range cfg.Sources {
		expandSourceEnvVars(&sc)
		if sc.IsFileBased() && configFileUsed != "" && !filepath.IsAbs(sc.Database) {
			sc.Database = filepath.Join(filepath.Dir(configFileUsed), sc.Database)
		}
		cfg.Sources[id] = sc
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandSourceEnvVars expands environment variables in connection fields.
func expandSourceEnvVars(sc *SourceConfig) {
	sc.Host = expandEnvVars(sc.Host)
	sc.User = expandEnvVars(sc.User)
	sc.Password = expandEnvVars(sc.Password)
	sc.Database = expandEnvVars(sc.Database)
	sc.URL = expandEnvVars(sc.URL)
	sc.Token = expandEnvVars(sc.Token)
	sc.DatasourceID = expandEnvVars(sc.DatasourceID)
}
