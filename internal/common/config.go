package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "HARMONIA_"

// Storage backends
const (
	StorageTypeMongo  = "mongo"
	StorageTypeBadger = "badger"
)

// Completion strategies
const (
	PollingStrategyStore     = "store"
	PollingStrategyExecution = "execution"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Workflow    WorkflowConfig  `toml:"workflow"`
	Polling     PollingConfig   `toml:"polling"`
	Sessions    SessionsConfig  `toml:"sessions"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port     int    `toml:"port" validate:"min=1,max=65535"`
	Host     string `toml:"host"`
	PagesDir string `toml:"pages_dir"` // Optional directory whose pages override the embedded ones
}

type StorageConfig struct {
	Type   string       `toml:"type" validate:"oneof=mongo badger"` // Document store backend for schemas and keymaps
	Mongo  MongoConfig  `toml:"mongo"`
	Badger BadgerConfig `toml:"badger"`
}

// MongoConfig is the document store the workflow engine writes to
type MongoConfig struct {
	ConnectionString   string `toml:"connection_string"`    // MONGODB_CONNECTION_STRING
	Database           string `toml:"database"`             // MONGODB_DATABASE_NAME
	SchemaCollection   string `toml:"schema_collection"`    // Collection holding schema documents (default: "Data")
	KeyMapCollection   string `toml:"keymap_collection"`    // Collection holding keymap documents (default: "KeyMaps")
	ConnectTimeout     string `toml:"connect_timeout"`      // e.g. "10s"
	ServerSelectionTTL string `toml:"server_selection_ttl"` // e.g. "10s"
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	InMemory       bool   `toml:"in_memory"`        // Run without touching disk (tests, demos)
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup
}

// WorkflowConfig describes the external workflow engine endpoints
type WorkflowConfig struct {
	TriggerURL      string `toml:"trigger_url"`      // N8N_WEBHOOK_URL
	FinalURL        string `toml:"final_url"`        // N8N_FINAL_WEBHOOK_URL
	APIURL          string `toml:"api_url"`          // N8N_API_URL, executions API base
	APIKey          string `toml:"api_key"`          // N8N_API_KEY
	WorkflowID      string `toml:"workflow_id"`      // WORKFLOW_ID
	DispatchTimeout string `toml:"dispatch_timeout"` // Trigger POST timeout (default: "240s")
	FinalTimeout    string `toml:"final_timeout"`    // Final workflow POST timeout (default: "240s")
	APITimeout      string `toml:"api_timeout"`      // Executions API request timeout (default: "30s")
	RateLimit       string `toml:"rate_limit"`       // Minimum spacing between executions API calls (default: "1s")
}

// PollingConfig controls completion detection
type PollingConfig struct {
	Strategy              string `toml:"strategy" validate:"oneof=store execution"` // "store" or "execution"
	Interval              string `toml:"interval"`                                  // Tick interval (default: "10s")
	Timeout               string `toml:"timeout"`                                   // Overall bound, "0" = unbounded (default)
	ErrorRefetchDelay     string `toml:"error_refetch_delay"`                       // Wait before reading the "_err" schema (default: "10s")
	LegacyExecutionOffset bool   `toml:"legacy_execution_offset"`                   // Guess execution ids from the latest id when the trigger returns none
}

// SessionsConfig controls retention of operator sessions
type SessionsConfig struct {
	Retention       string `toml:"retention"`        // Sessions idle longer than this are removed (default: "24h")
	CleanupSchedule string `toml:"cleanup_schedule"` // Cron schedule for the cleaner (default: "*/30 * * * *")
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`                                             // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                        // Time format for logs (default: "15:04:05")
}

// WebSocketConfig contains configuration for the event stream
type WebSocketConfig struct {
	AllowedEvents []string `toml:"allowed_events"` // Empty list allows all events
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: StorageTypeMongo,
			Mongo: MongoConfig{
				SchemaCollection:   "Data",
				KeyMapCollection:   "KeyMaps",
				ConnectTimeout:     "10s",
				ServerSelectionTTL: "10s",
			},
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Workflow: WorkflowConfig{
			DispatchTimeout: "240s", // Engine acceptance can be slow
			FinalTimeout:    "240s",
			APITimeout:      "30s",
			RateLimit:       "1s",
		},
		Polling: PollingConfig{
			Strategy:          PollingStrategyStore,
			Interval:          "10s",
			Timeout:           "0",
			ErrorRefetchDelay: "10s",
		},
		Sessions: SessionsConfig{
			Retention:       "24h",
			CleanupSchedule: "*/30 * * * *",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> files -> .env -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env values never override variables already set in the process
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// The legacy deployment variable names are read first so HARMONIA_* wins.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv(EnvPrefix + "ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv(EnvPrefix + "SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv(EnvPrefix + "SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage
	if storageType := os.Getenv(EnvPrefix + "STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	setFromEnv(&config.Storage.Mongo.ConnectionString, "MONGODB_CONNECTION_STRING", EnvPrefix+"MONGO_CONNECTION_STRING")
	setFromEnv(&config.Storage.Mongo.Database, "MONGODB_DATABASE_NAME", EnvPrefix+"MONGO_DATABASE")
	setFromEnv(&config.Storage.Mongo.SchemaCollection, EnvPrefix+"MONGO_SCHEMA_COLLECTION")
	setFromEnv(&config.Storage.Mongo.KeyMapCollection, EnvPrefix+"MONGO_KEYMAP_COLLECTION")
	setFromEnv(&config.Storage.Badger.Path, EnvPrefix+"BADGER_PATH")

	// Workflow engine
	setFromEnv(&config.Workflow.TriggerURL, "N8N_WEBHOOK_URL", EnvPrefix+"WORKFLOW_TRIGGER_URL")
	setFromEnv(&config.Workflow.FinalURL, "N8N_FINAL_WEBHOOK_URL", EnvPrefix+"WORKFLOW_FINAL_URL")
	setFromEnv(&config.Workflow.APIURL, "N8N_API_URL", EnvPrefix+"WORKFLOW_API_URL")
	setFromEnv(&config.Workflow.APIKey, "N8N_API_KEY", EnvPrefix+"WORKFLOW_API_KEY")
	setFromEnv(&config.Workflow.WorkflowID, "WORKFLOW_ID", EnvPrefix+"WORKFLOW_ID")
	setFromEnv(&config.Workflow.DispatchTimeout, EnvPrefix+"WORKFLOW_DISPATCH_TIMEOUT")

	// Polling
	setFromEnv(&config.Polling.Strategy, EnvPrefix+"POLLING_STRATEGY")
	setFromEnv(&config.Polling.Interval, EnvPrefix+"POLLING_INTERVAL")
	setFromEnv(&config.Polling.Timeout, EnvPrefix+"POLLING_TIMEOUT")
	setFromEnv(&config.Polling.ErrorRefetchDelay, EnvPrefix+"POLLING_ERROR_REFETCH_DELAY")
	if offset := os.Getenv(EnvPrefix + "POLLING_LEGACY_EXECUTION_OFFSET"); offset != "" {
		if b, err := strconv.ParseBool(offset); err == nil {
			config.Polling.LegacyExecutionOffset = b
		}
	}

	// Sessions
	setFromEnv(&config.Sessions.Retention, EnvPrefix+"SESSIONS_RETENTION")
	setFromEnv(&config.Sessions.CleanupSchedule, EnvPrefix+"SESSIONS_CLEANUP_SCHEDULE")

	// Logging
	setFromEnv(&config.Logging.Level, EnvPrefix+"LOG_LEVEL")
	if output := os.Getenv(EnvPrefix + "LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// setFromEnv assigns the last non-empty variable among names
func setFromEnv(target *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*target = v
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks field constraints and the settings the selected strategy needs
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Storage.Type == StorageTypeMongo {
		if c.Storage.Mongo.ConnectionString == "" {
			return fmt.Errorf("storage.mongo.connection_string is required for the mongo backend")
		}
		if c.Storage.Mongo.Database == "" {
			return fmt.Errorf("storage.mongo.database is required for the mongo backend")
		}
	}

	if c.Workflow.TriggerURL == "" {
		return fmt.Errorf("workflow.trigger_url is required")
	}

	if c.Polling.Strategy == PollingStrategyExecution && (c.Workflow.APIURL == "" || c.Workflow.APIKey == "" || c.Workflow.WorkflowID == "") {
		return fmt.Errorf("execution polling requires workflow.api_url, workflow.api_key and workflow.workflow_id")
	}

	for name, value := range map[string]string{
		"polling.interval":            c.Polling.Interval,
		"polling.timeout":             c.Polling.Timeout,
		"polling.error_refetch_delay": c.Polling.ErrorRefetchDelay,
		"workflow.dispatch_timeout":   c.Workflow.DispatchTimeout,
		"sessions.retention":          c.Sessions.Retention,
	} {
		if value == "" || value == "0" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, value, err)
		}
	}

	if c.Sessions.CleanupSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Sessions.CleanupSchedule); err != nil {
			return fmt.Errorf("sessions.cleanup_schedule: invalid cron expression: %w", err)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDuration parses a duration string, returning fallback when empty or invalid.
// "0" is a valid value and yields zero.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if value == "0" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
