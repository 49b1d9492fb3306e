// config.go: settings struct and functions to load and save the Africa Research Base configuration.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Debug   bool   // true to enable debug mode
	Listen  string // address and port to listen on, e.g. ":8080"
	BaseURL string // public base URL of this instance
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite
	Path    string // path to the database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings groups the database backends.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// AISettings contains settings for the generative AI analysis client.
type AISettings struct {
	Enabled bool   // false skips AI analysis entirely and uses the heuristic scorer
	APIKey  string // Anthropic API key
	Model   string // model identifier
	Timeout int    // request timeout in seconds
}

// ObjectStoreSettings contains settings for the S3-compatible file store.
type ObjectStoreSettings struct {
	Endpoint       string // host:port of the object store
	PublicEndpoint string // public endpoint used in generated URLs, falls back to Endpoint
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// ChainSettings contains settings for the optional Solana registration hook.
type ChainSettings struct {
	Enabled    bool
	RPCURL     string // Solana RPC endpoint
	ProgramID  string // on-chain program id, base58
	AdminKey   string // base58-encoded admin private key
	Commitment string // confirmation commitment level
}

// EventsSettings contains settings for the optional AMQP event publisher.
type EventsSettings struct {
	Enabled  bool
	URL      string // amqp:// connection URL
	Exchange string
}

// SecuritySettings contains authentication settings.
type SecuritySettings struct {
	JWTSecret     string // HS256 signing secret for session tokens
	TokenTTLHours int    // session token lifetime
}

// RateLimitSettings contains per-client rate limiting settings.
type RateLimitSettings struct {
	Enabled bool
	RPS     float64 // sustained requests per second per client
	Burst   int     // burst size per client
}

// LogSettings contains file logging settings.
type LogSettings struct {
	Path       string // directory for rotated log files
	MaxSizeMB  int    // max size of a log file before rotation
	MaxBackups int    // number of rotated files to keep
	MaxAgeDays int    // max age of rotated files
}

// Settings contains all application settings.
type Settings struct {
	Debug     bool // true to enable debug level logging
	Version   string
	BuildDate string

	WebServer   WebServerSettings
	Output      OutputSettings
	AI          AISettings
	ObjectStore ObjectStoreSettings
	Chain       ChainSettings
	Events      EventsSettings
	Security    SecuritySettings
	RateLimit   RateLimitSettings
	Log         LogSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into the global settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// .env files override nothing set in the real environment
	_ = godotenv.Load()

	initViper()

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets up configuration file discovery, defaults and env overrides.
func initViper() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths := configDirs()
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("ARB")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults plus env vars apply
			log.Println("No config file found, using defaults and environment")
		} else {
			log.Printf("Error reading config file: %v", err)
		}
	}
}

// configDirs returns the list of directories searched for config.yaml.
func configDirs() []string {
	dirs := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(configDir, "arb"))
	}
	dirs = append(dirs, "/etc/arb")
	return dirs
}

// Setting returns the global settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current global settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings writes the current settings to the config file used by viper.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	if settingsInstance == nil {
		return errors.New("settings not loaded")
	}

	out, err := yaml.Marshal(settingsInstance)
	if err != nil {
		return fmt.Errorf("error marshaling settings to yaml: %w", err)
	}

	path := viper.ConfigFileUsed()
	if path == "" {
		path = "config.yaml"
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}
