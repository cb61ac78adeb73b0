package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/llmcall/internal/checkpoint"
	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/provider"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// ErrNoCredentials is returned by Validate when neither directly integrated
// provider has a key.
var ErrNoCredentials = errors.New("no provider credentials configured: set OPENAI_API_KEY or GOOGLE_GEMINI_TOKEN")

// configNames are the file names probed in every config directory, lowest
// priority first.
var configNames = []string{"llmcall.yaml", "llmcall.yml", "llmcall.json", "llmcall.jsonc"}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/llmcall/)
// 2. Project config (<directory>/ and <directory>/.llmcall/)
// 3. LLMCALL_CONFIG file
// 4. LLMCALL_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return
		}
		if err := loadConfigFile(path, config, baseDir); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logging.Component("config").Warn().Err(err).Str("path", path).Msg("skipping config file")
			}
			return
		}
		loaded[absPath] = true
	}

	// 1. Global config
	globalPath := GetConfigDir()
	for _, name := range configNames {
		loadOnce(filepath.Join(globalPath, name), globalPath)
	}

	// 2. Project config
	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".llmcall")
		for _, name := range configNames {
			loadOnce(filepath.Join(directory, name), directory)
		}
		for _, name := range configNames {
			loadOnce(filepath.Join(projectConfigDir, name), projectConfigDir)
		}
	}

	// 3. LLMCALL_CONFIG file override; an explicit file must load.
	if configPath := os.Getenv("LLMCALL_CONFIG"); configPath != "" {
		if err := loadConfigFile(configPath, config, filepath.Dir(configPath)); err != nil {
			return nil, fmt.Errorf("failed to load LLMCALL_CONFIG: %w", err)
		}
	}

	// 4. LLMCALL_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("LLMCALL_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		data := interpolate(jsonc.ToJSON([]byte(configContent)), directory)
		if err := json.Unmarshal(data, &inlineConfig); err != nil {
			return nil, fmt.Errorf("failed to parse LLMCALL_CONFIG_CONTENT: %w", err)
		}
		mergeConfig(config, &inlineConfig)
	}

	// 5. Environment variables (highest priority)
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadConfigFile loads a single JSON, JSONC or YAML file with interpolation
// support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data, err = toJSON(path, data)
	if err != nil {
		return err
	}

	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// toJSON converts file contents to plain JSON. YAML goes through a generic
// document so interpolation works the same for every format.
func toJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if doc == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(doc)
	default:
		return jsonc.ToJSON(data), nil
	}
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return jsonEscape(os.Getenv(varName))
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}
		return jsonEscape(strings.TrimRight(string(content), "\r\n"))
	})

	return []byte(str)
}

// jsonEscape escapes s for use inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

// mergeConfig merges source config into target. Scalar fields override when
// set, tool switches merge by name, other nested sections are replaced as a
// whole.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}

	if source.Tokens.OpenAIAPIKey != "" {
		target.Tokens.OpenAIAPIKey = source.Tokens.OpenAIAPIKey
	}
	if source.Tokens.GoogleGeminiToken != "" {
		target.Tokens.GoogleGeminiToken = source.Tokens.GoogleGeminiToken
	}
	if source.Tokens.OpenRouterAPIKey != "" {
		target.Tokens.OpenRouterAPIKey = source.Tokens.OpenRouterAPIKey
	}

	if source.Model != "" {
		target.Model = source.Model
	}
	if source.Fallback != nil {
		target.Fallback = source.Fallback
	}
	if source.MaxRetries != nil {
		target.MaxRetries = source.MaxRetries
	}
	if source.ModelConfig != nil {
		target.ModelConfig = source.ModelConfig
	}
	if len(source.Tools) > 0 {
		if target.Tools == nil {
			target.Tools = make(map[string]bool, len(source.Tools))
		}
		for name, enabled := range source.Tools {
			target.Tools[name] = enabled
		}
	}
	if source.Memory != nil {
		target.Memory = source.Memory
	}
	if source.Transcription != nil {
		target.Transcription = source.Transcription
	}
	if source.Server != nil {
		target.Server = source.Server
	}
	if source.Telemetry != nil {
		target.Telemetry = source.Telemetry
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) error {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.Tokens.OpenAIAPIKey = key
	}
	if key := firstEnv("GOOGLE_GEMINI_TOKEN", "GOOGLE_API_KEY"); key != "" {
		config.Tokens.GoogleGeminiToken = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		config.Tokens.OpenRouterAPIKey = key
	}

	if model := os.Getenv("LLMCALL_MODEL"); model != "" {
		config.Model = model
	}

	if fallback, ok := os.LookupEnv("LLMCALL_FALLBACK_MODELS"); ok {
		config.Fallback = splitList(fallback)
	}

	if retries := os.Getenv("LLMCALL_MAX_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil {
			return fmt.Errorf("invalid LLMCALL_MAX_RETRIES %q: %w", retries, err)
		}
		config.MaxRetries = &n
	}

	if dsn, ok := os.LookupEnv("LLMCALL_MEMORY"); ok {
		mc, err := checkpoint.ParseDSN(dsn)
		if err != nil {
			return fmt.Errorf("invalid LLMCALL_MEMORY: %w", err)
		}
		config.Memory = mc
	}

	if port := os.Getenv("LLMCALL_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid LLMCALL_PORT %q: %w", port, err)
		}
		if config.Server == nil {
			config.Server = &types.ServerConfig{}
		}
		config.Server.Port = n
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		if config.Telemetry == nil {
			config.Telemetry = &types.TelemetryConfig{}
		}
		config.Telemetry.Enabled = true
		config.Telemetry.Endpoint = endpoint
	}

	return nil
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// splitList splits a comma separated list, dropping blanks. An empty input
// yields an empty, non-nil slice.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports configuration problems that make the process unusable.
// Every problem is returned, joined.
func Validate(config *types.Config) error {
	var errs []error

	if config.Tokens.OpenAIAPIKey == "" && config.Tokens.GoogleGeminiToken == "" {
		errs = append(errs, ErrNoCredentials)
	}

	if config.Model != "" {
		if _, err := provider.ParseModelName(config.Model); err != nil {
			errs = append(errs, fmt.Errorf("model: %w", err))
		}
	}
	for i, name := range config.Fallback {
		if _, err := provider.ParseModelName(name); err != nil {
			errs = append(errs, fmt.Errorf("aiModelsFallback[%d]: %w", i, err))
		}
	}

	if config.MaxRetries != nil && *config.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("maxRetries must not be negative, got %d", *config.MaxRetries))
	}

	if _, err := checkpoint.FromMemoryConfig(config.Memory); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file. Files ending in .yaml or .yml are
// written as YAML, everything else as JSON.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// GetConfigDir returns the config directory to use.
// Prefers LLMCALL_CONFIG_DIR, then the XDG location.
func GetConfigDir() string {
	if dir := os.Getenv("LLMCALL_CONFIG_DIR"); dir != "" {
		return dir
	}
	return GetPaths().Config
}
