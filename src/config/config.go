// Package config resolves service settings. Each key is looked up in the
// database settings table, then the environment, then the YAML config file,
// then a built-in default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhenghchen/calhacks2025/src/ai/core"
)

// ErrMissingCredential means a required secret is not configured.
var ErrMissingCredential = errors.New("config: missing required credential")

const (
	TransportCommand   = "command"
	TransportInProcess = "inprocess"
)

// Source supplies stored settings by name.
type Source interface {
	Get(name string) string
}

// Config is everything the service needs at construction time.
type Config struct {
	ModelAPIKey    string
	SearchAPIKey   string
	SearchEngineID string
	PerCallTimeout time.Duration
	MaxToolRounds  int

	Provider             string
	Model                string
	VerificationModel    string
	VerificationDeadline time.Duration
	ModelRetries         int

	ToolTransport string
	ToolCommand   string
	ToolArgs      []string

	HTTPListen         string
	AllowedOrigins     []string
	MaxTranscriptBytes int
	RateLimit          int
	RateWindow         time.Duration

	MySQLDSN       string
	RedisURL       string
	SearchCacheTTL time.Duration

	LogLevel string
}

// Loader holds the lookup chain.
type Loader struct {
	settings Source
	env      func(string) string
	file     map[string]string
}

// NewLoader builds a loader. settings may be nil; env defaults to os.Getenv;
// file is the path of an optional YAML file.
func NewLoader(settings Source, env func(string) string, file string) (*Loader, error) {
	if env == nil {
		env = os.Getenv
	}
	values, err := readFile(file)
	if err != nil {
		return nil, err
	}
	return &Loader{settings: settings, env: env, file: values}, nil
}

// Load resolves a Config using the process environment and the file named
// by CONFIG_FILE.
func Load(settings Source) (Config, error) {
	l, err := NewLoader(settings, os.Getenv, os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return l.Load(), nil
}

// GetSetting retrieves a setting with env, file and default fallbacks.
func (l *Loader) GetSetting(name, envKey, defaultValue string) string {
	var val string
	if l.settings != nil {
		val = strings.TrimSpace(l.settings.Get(name))
	}
	if val == "" && envKey != "" {
		val = strings.TrimSpace(l.env(envKey))
	}
	if val == "" {
		val = l.file[name]
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func (l *Loader) getInt(name, envKey string, def int) int {
	raw := l.GetSetting(name, envKey, "")
	if val, err := strconv.Atoi(raw); err == nil && val > 0 {
		return val
	}
	return def
}

// getDuration accepts Go durations ("90s") or bare seconds ("90").
func (l *Loader) getDuration(name, envKey string, def time.Duration) time.Duration {
	raw := l.GetSetting(name, envKey, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

// Load resolves every key.
func (l *Loader) Load() Config {
	provider := strings.ToLower(l.GetSetting("ai_provider", "AI_PROVIDER", "anthropic"))
	return Config{
		ModelAPIKey:    l.GetSetting("model_api_key", "ANTHROPIC_API_KEY", ""),
		SearchAPIKey:   l.GetSetting("search_api_key", "GOOGLE_SEARCH_API_KEY", ""),
		SearchEngineID: l.GetSetting("search_engine_id", "GOOGLE_SEARCH_ENGINE_ID", ""),
		PerCallTimeout: l.getDuration("per_call_timeout", "PER_CALL_TIMEOUT", 60*time.Second),
		MaxToolRounds:  l.getInt("max_tool_rounds", "MAX_TOOL_ROUNDS", 8),

		Provider:             provider,
		Model:                core.ResolveModelName(provider, l.GetSetting("ai_model", "AI_MODEL", "")),
		VerificationModel:    l.GetSetting("verification_model", "VERIFICATION_MODEL", core.DefaultModelForProvider("sonnet4")),
		VerificationDeadline: l.getDuration("verification_deadline", "VERIFICATION_DEADLINE", 4*time.Minute),
		ModelRetries:         l.getInt("model_retries", "MODEL_RETRIES", 1),

		ToolTransport: strings.ToLower(l.GetSetting("tool_transport", "TOOL_TRANSPORT", TransportCommand)),
		ToolCommand:   l.GetSetting("tool_command", "TOOL_COMMAND", "search-tool"),
		ToolArgs:      strings.Fields(l.GetSetting("tool_args", "TOOL_ARGS", "")),

		HTTPListen:         l.GetSetting("http_listen", "HTTP_LISTEN", ":8080"),
		AllowedOrigins:     parseCSV(l.GetSetting("allowed_origins", "ALLOWED_ORIGINS", "http://localhost:3000")),
		MaxTranscriptBytes: l.getInt("max_transcript_bytes", "MAX_TRANSCRIPT_BYTES", 200<<10),
		RateLimit:          l.getInt("rate_limit", "RATE_LIMIT", 10),
		RateWindow:         l.getDuration("rate_window", "RATE_WINDOW", time.Minute),

		MySQLDSN:       l.GetSetting("mysql_dsn", "MYSQL_DSN", ""),
		RedisURL:       l.GetSetting("redis_url", "REDIS_URL", ""),
		SearchCacheTTL: l.getDuration("search_cache_ttl", "SEARCH_CACHE_TTL", time.Hour),

		LogLevel: l.GetSetting("log_level", "LOG_LEVEL", "info"),
	}
}

// Validate fails fast before any evaluation starts.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ModelAPIKey) == "" {
		return fmt.Errorf("%w: model_api_key (ANTHROPIC_API_KEY)", ErrMissingCredential)
	}
	switch c.ToolTransport {
	case TransportCommand:
		if strings.TrimSpace(c.ToolCommand) == "" {
			return errors.New("config: tool_command is required for the command transport")
		}
	case TransportInProcess:
	default:
		return fmt.Errorf("config: unknown tool_transport %q", c.ToolTransport)
	}
	if c.MaxToolRounds <= 0 {
		return errors.New("config: max_tool_rounds must be positive")
	}
	if c.PerCallTimeout <= 0 || c.VerificationDeadline <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	return nil
}

// SearchEnv is the environment handed to a tool provider subprocess.
func (c Config) SearchEnv() []string {
	env := []string{
		"GOOGLE_SEARCH_API_KEY=" + c.SearchAPIKey,
		"GOOGLE_SEARCH_ENGINE_ID=" + c.SearchEngineID,
		"LOG_LEVEL=" + c.LogLevel,
		"SEARCH_CACHE_TTL=" + c.SearchCacheTTL.String(),
	}
	if c.RedisURL != "" {
		env = append(env, "REDIS_URL="+c.RedisURL)
	}
	return env
}

func parseCSV(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
