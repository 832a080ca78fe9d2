// Package conf loads and validates the companyfix configuration.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogSettings controls the main application log file.
type LogSettings struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxsizemb"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAgeDays int    `yaml:"maxagedays"`
}

// SQLiteSettings holds the SQLite backend configuration.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings holds the MySQL backend configuration.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// OutputSettings selects the document store backend.
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// CacheSettings bounds the reference-record read-through cache.
type CacheSettings struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// MigrationSettings tunes the batch engine.
type MigrationSettings struct {
	PageSize         int           `yaml:"pagesize"`
	Throttle         time.Duration `yaml:"throttle"`
	DryRun           bool          `yaml:"dryrun"`
	MinOwnerIDLength int           `yaml:"minowneridlength"`
	AuditLogSize     int           `yaml:"auditlogsize"`
	Cache            CacheSettings `yaml:"cache"`
}

// ProgressSettings tunes the independent completion poller.
type ProgressSettings struct {
	SampleLimit  int           `yaml:"samplelimit"`
	PollInterval time.Duration `yaml:"pollinterval"`
}

// HTTPSettings configures the operator API server.
type HTTPSettings struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// JobSettings describes one backfill job: which collection to repair, which
// collection holds the candidate owner records, and which fields carry the
// identifiers. Field and collection names are configuration, never engine
// constants.
type JobSettings struct {
	Title               string   `yaml:"title"`
	Collection          string   `yaml:"collection"`
	ReferenceCollection string   `yaml:"referencecollection"`
	OwnerField          string   `yaml:"ownerfield"`
	CandidatesField     string   `yaml:"candidatesfield"`
	ReferenceOwnerField string   `yaml:"referenceownerfield"`
	OrderBy             string   `yaml:"orderby"`
	DependsOn           []string `yaml:"dependson"`
}

// Settings is the root configuration struct.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string      `yaml:"name"`
		Log  LogSettings `yaml:"log"`
	} `yaml:"main"`

	Output    OutputSettings         `yaml:"output"`
	Migration MigrationSettings      `yaml:"migration"`
	Progress  ProgressSettings       `yaml:"progress"`
	HTTP      HTTPSettings           `yaml:"http"`
	Sentry    SentrySettings         `yaml:"sentry"`
	Jobs      map[string]JobSettings `yaml:"jobs"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings
// instance and remembers it as the global instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	settingsMutex.RLock()
	s := settingsInstance
	settingsMutex.RUnlock()
	if s != nil {
		return s
	}
	s, err := Load()
	if err != nil {
		return nil
	}
	return s
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("COMPANYFIX")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults plus env cover the CLI case.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the config file search paths in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "companyfix"))
	}
	return paths, nil
}
