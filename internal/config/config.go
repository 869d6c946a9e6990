package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override file settings,
// e.g. SHAPEBOT_DISCORD_TOKEN or SHAPEBOT_RELAY_URL.
const EnvPrefix = "SHAPEBOT_"

// Config is the root configuration for shapebot.
type Config struct {
	General GeneralConfig `json:"general" yaml:"general"`
	Discord DiscordConfig `json:"discord" yaml:"discord"`
	Trigger TriggerConfig `json:"trigger" yaml:"trigger"`
	Relay   RelayConfig   `json:"relay" yaml:"relay"`
	Gemini  GeminiConfig  `json:"gemini" yaml:"gemini"`
	Tools   ToolsConfig   `json:"tools" yaml:"tools"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel" yaml:"logLevel" env:"LOG_LEVEL"` // debug | info | warn | error
	MaxConcurrentMessages int    `json:"maxConcurrentMessages" yaml:"maxConcurrentMessages"`
	BusBufferSize         int    `json:"busBufferSize" yaml:"busBufferSize"`
	ErrorReply            string `json:"errorReply" yaml:"errorReply"` // sent when the relay fails
}

type DiscordConfig struct {
	Token            string `json:"token" yaml:"token" env:"DISCORD_TOKEN"`
	GuildID          string `json:"guildId,omitempty" yaml:"guildId,omitempty" env:"DISCORD_GUILD_ID"` // optional: restrict to one guild
	RegisterCommands bool   `json:"registerCommands" yaml:"registerCommands"`
}

// TriggerConfig controls when the bot answers a message.
type TriggerConfig struct {
	CommandPrefix       string  `json:"commandPrefix" yaml:"commandPrefix"`
	EnablePassive       bool    `json:"enablePassive" yaml:"enablePassive" env:"ENABLE_PASSIVE"`
	PassiveProbability  float64 `json:"passiveProbability" yaml:"passiveProbability"`
	HistoryWindow       int     `json:"historyWindow" yaml:"historyWindow"`
	AttributionTemplate string  `json:"attributionTemplate" yaml:"attributionTemplate"` // fmt template: name, text
}

type RelayConfig struct {
	URL            string `json:"url" yaml:"url" env:"RELAY_URL"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type GeminiConfig struct {
	APIKey         string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" env:"GEMINI_API_KEY"`
	Model          string `json:"model" yaml:"model"`
	BaseURL        string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	// Classifier calls are throttled to stay inside the API quota.
	RequestsPerMinute int `json:"requestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int `json:"burst" yaml:"burst"`
}

type ToolsConfig struct {
	Image ImageToolConfig `json:"image" yaml:"image"`
	Code  CodeToolConfig  `json:"code" yaml:"code"`
}

type ImageToolConfig struct {
	URL            string `json:"url" yaml:"url" env:"IMAGE_TOOL_URL"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type CodeToolConfig struct {
	MaxFileBytes int `json:"maxFileBytes" yaml:"maxFileBytes"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath" yaml:"dbPath" env:"DB_PATH"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.shapebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shapebot"
	}
	return filepath.Join(home, ".shapebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a JSON or YAML (by extension) config file on top of Defaults,
// expands ${VAR} references, applies SHAPEBOT_* overrides and validates.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	return resolve(path, data)
}

// LoadRaw reads the config file as written: no ${VAR} expansion, no
// environment overrides, no validation. Use it to edit and save a file
// without leaking environment values into it.
func LoadRaw(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	cfg := Defaults()
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Update sets one dot path in the file at path. The raw file contents are
// edited, so placeholders survive; the result is validated the way Load
// would see it before anything is written.
func Update(path, key, value string) error {
	path = ExpandPath(path)

	raw, err := LoadRaw(path)
	if err != nil {
		return err
	}
	if err := SetByPath(raw, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	data, err := encode(path, raw)
	if err != nil {
		return err
	}
	if _, err := resolve(path, data); err != nil {
		return err
	}
	return write(path, data)
}

func resolve(path string, data []byte) (*Config, error) {
	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	var err error
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return nil
}

func encode(path string, cfg *Config) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("cannot marshal config: %w", err)
	}
	return data, nil
}

func write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ApplyEnv overrides cfg with SHAPEBOT_* environment variables. Unset
// variables leave the current values alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without default is left as written.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg as JSON, or YAML when path ends in .yaml/.yml.
func Save(path string, cfg *Config) error {
	data, err := encode(path, cfg)
	if err != nil {
		return err
	}
	return write(path, data)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if strings.TrimSpace(cfg.General.ErrorReply) == "" {
		errs = append(errs, "general.errorReply must not be empty")
	}

	if strings.TrimSpace(cfg.Trigger.CommandPrefix) == "" {
		errs = append(errs, "trigger.commandPrefix must not be empty")
	}
	if cfg.Trigger.PassiveProbability < 0 || cfg.Trigger.PassiveProbability > 1 {
		errs = append(errs, "trigger.passiveProbability must be between 0 and 1")
	}
	// Discord caps a history fetch at 100 messages.
	if cfg.Trigger.HistoryWindow < 1 || cfg.Trigger.HistoryWindow > 100 {
		errs = append(errs, "trigger.historyWindow must be between 1 and 100")
	}
	if n, ok := countStringVerbs(cfg.Trigger.AttributionTemplate); !ok || n != 2 {
		errs = append(errs, "trigger.attributionTemplate must contain exactly two %s verbs (name, text) and no other verbs")
	}

	if cfg.Relay.TimeoutSeconds < 1 {
		errs = append(errs, "relay.timeoutSeconds must be >= 1")
	}
	if cfg.Gemini.TimeoutSeconds < 1 {
		errs = append(errs, "gemini.timeoutSeconds must be >= 1")
	}
	if cfg.Gemini.RequestsPerMinute < 1 {
		errs = append(errs, "gemini.requestsPerMinute must be >= 1")
	}
	if cfg.Gemini.Burst < 1 {
		errs = append(errs, "gemini.burst must be >= 1")
	}
	if cfg.Gemini.Model == "" {
		errs = append(errs, "gemini.model must not be empty")
	}
	if cfg.Tools.Image.TimeoutSeconds < 1 {
		errs = append(errs, "tools.image.timeoutSeconds must be >= 1")
	}
	if cfg.Tools.Code.MaxFileBytes < 1 {
		errs = append(errs, "tools.code.maxFileBytes must be >= 1")
	}
	if cfg.Store.DBPath == "" {
		errs = append(errs, "store.dbPath must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// countStringVerbs counts %s verbs in a format string. ok is false when any
// other verb, flag or a dangling % appears; %% is a literal.
func countStringVerbs(format string) (n int, ok bool) {
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 >= len(format) {
			return n, false
		}
		switch format[i+1] {
		case '%':
		case 's':
			n++
		default:
			return n, false
		}
		i++
	}
	return n, true
}

// CheckRuntime verifies the settings the `run` command cannot start without.
// Values still holding an unexpanded ${VAR} count as missing.
func CheckRuntime(cfg *Config) error {
	var missing []string
	check := func(path, v string) {
		if v == "" || envVarPattern.MatchString(v) {
			missing = append(missing, path)
		}
	}
	check("discord.token", cfg.Discord.Token)
	check("relay.url", cfg.Relay.URL)
	if cfg.Trigger.EnablePassive {
		check("gemini.apiKey", cfg.Gemini.APIKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
