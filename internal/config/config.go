package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Database Database `mapstructure:"database"`
	Facts    Facts    `mapstructure:"facts"`
	Server   Server   `mapstructure:"server"`
	PostHog  PostHog  `mapstructure:"posthog"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Timeout           string  `mapstructure:"timeout"`
	MaxTokens         int32   `mapstructure:"max_tokens"`
	Temperature       float32 `mapstructure:"temperature"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

// Database selects and configures the storage backend
type Database struct {
	Driver           string `mapstructure:"driver"` // postgres, sqlite or memory
	ConnectionString string `mapstructure:"connection_string"`
	SQLitePath       string `mapstructure:"sqlite_path"`
}

// Facts holds fact pipeline configuration
type Facts struct {
	MaxArticles        int    `mapstructure:"max_articles"` // 0 means no cap
	StaleAfter         string `mapstructure:"stale_after"`
	RefreshInterval    string `mapstructure:"refresh_interval"`
	RunOnStart         bool   `mapstructure:"run_on_start"`
	BackfillMaxBatches int    `mapstructure:"backfill_max_batches"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AdminAPIKey     string        `mapstructure:"admin_api_key"`
	CORS            CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin configuration for the front-end
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PostHog holds product analytics configuration
type PostHog struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsfacts")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".newsfacts")

	viper.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("ai.gemini.timeout", "90s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.2)
	viper.SetDefault("ai.gemini.requests_per_minute", 10)

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.sqlite_path", "")

	viper.SetDefault("facts.max_articles", 0)
	viper.SetDefault("facts.stale_after", "4h")
	viper.SetDefault("facts.refresh_interval", "2h")
	viper.SetDefault("facts.run_on_start", false)
	viper.SetDefault("facts.backfill_max_batches", 0)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "180s")
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("server.cors.enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	viper.SetDefault("posthog.enabled", false)
	viper.SetDefault("posthog.host", "https://app.posthog.com")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("database.connection_string", []string{
		"DATABASE_URL",
		"NEWSFACTS_DATABASE_URL",
	})

	bindEnvKeys("server.admin_api_key", []string{
		"ADMIN_API_KEY",
	})

	bindEnvKeys("posthog.api_key", []string{
		"POSTHOG_API_KEY",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"NEWSFACTS_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Database.SQLitePath != "" {
		config.Database.SQLitePath = expandPath(config.Database.SQLitePath)
	}

	durations := map[string]string{
		"ai.gemini.timeout":      config.AI.Gemini.Timeout,
		"facts.stale_after":      config.Facts.StaleAfter,
		"facts.refresh_interval": config.Facts.RefreshInterval,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures the configuration is internally consistent. A missing Gemini key is
// not an error here: extraction reports it per call and reads keep working.
func validateConfig(config *Config) error {
	var errors []string

	switch config.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		errors = append(errors, fmt.Sprintf("Unknown database driver: %s. Supported: postgres, sqlite, memory", config.Database.Driver))
	}

	if config.Facts.MaxArticles < 0 {
		errors = append(errors, "facts.max_articles must be >= 0")
	}
	if config.Facts.BackfillMaxBatches < 0 {
		errors = append(errors, "facts.backfill_max_batches must be >= 0")
	}
	if config.AI.Gemini.RequestsPerMinute < 0 {
		errors = append(errors, "ai.gemini.requests_per_minute must be >= 0")
	}

	switch strings.ToLower(config.Logging.Format) {
	case "", "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: json, text", config.Logging.Format))
	}

	if config.PostHog.Enabled && config.PostHog.APIKey == "" {
		errors = append(errors, "PostHog is enabled but no API key is set. Set POSTHOG_API_KEY")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// GeminiTimeout returns the per-call timeout for AI requests.
func (g GeminiConfig) GeminiTimeout() time.Duration {
	return parseDurationOr(g.Timeout, 90*time.Second)
}

// StaleAfterDuration returns the cache freshness threshold.
func (f Facts) StaleAfterDuration() time.Duration {
	return parseDurationOr(f.StaleAfter, 4*time.Hour)
}

// RefreshIntervalDuration returns the scheduled refresh interval.
func (f Facts) RefreshIntervalDuration() time.Duration {
	return parseDurationOr(f.RefreshInterval, 2*time.Hour)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetApp() App           { return Get().App }
func GetAI() AI             { return Get().AI }
func GetDatabase() Database { return Get().Database }
func GetFacts() Facts       { return Get().Facts }
func GetServer() Server     { return Get().Server }
func GetPostHog() PostHog   { return Get().PostHog }
func GetLogging() Logging   { return Get().Logging }

func GetGeminiAPIKey() string { return Get().AI.Gemini.APIKey }
func GetGeminiModel() string  { return Get().AI.Gemini.Model }
func IsDebugMode() bool       { return Get().App.Debug }

// HasGeminiKey returns true if a usable Gemini API key is configured
func HasGeminiKey() bool {
	return isValidAPIKey(GetGeminiAPIKey())
}

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
