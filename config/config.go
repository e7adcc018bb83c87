package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/icodeforyou/somenergia-go/logging"
)

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

type AppConfigSomEnergia struct {
	BaseURL string        `mapstructure:"base_url"`
	Tariff  string        `mapstructure:"tariff"`   // e.g. "2.0TD", "3.0TD"
	GeoZone string        `mapstructure:"geo_zone"` // "PENINSULA", "BALEARES", "CANARIAS"
	Timeout time.Duration `mapstructure:"timeout"`  // Bound for a single API request
}

type AppConfigStore struct {
	Backend    string `mapstructure:"backend"` // "csv" or "sqlite"
	Dir        string `mapstructure:"dir"`
	FilePrefix string `mapstructure:"file_prefix"`
	// How many days of stored series to keep, unset keeps everything
	RetentionDays *int `mapstructure:"retention_days"`
}

func (s AppConfigStore) GetRetentionDays() int {
	if s.RetentionDays == nil {
		return 0
	}
	return *s.RetentionDays
}

type AppConfigSchedule struct {
	RunAt         string `mapstructure:"run_at"`         // Cron spec for the price update in daemon mode
	MaintenanceAt string `mapstructure:"maintenance_at"` // Cron spec for purging and backups
}

type AppConfigDatabase struct {
	// SQLite database file, the database is not used when empty
	Path string
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) Enabled() bool {
	return d.Path != ""
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

type AppConfigMqtt struct {
	// Broker host, notifications are disabled when empty
	Host     string
	Port     int16
	Username string
	Password string
	Topic    string
	ClientId string `mapstructure:"client_id"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	SomEnergia AppConfigSomEnergia `mapstructure:"somenergia"`
	Timezone   string              `mapstructure:"timezone"`
	Store      AppConfigStore      `mapstructure:"store"`
	Schedule   AppConfigSchedule   `mapstructure:"schedule"`
	Database   AppConfigDatabase   `mapstructure:"database"`
	Mqtt       AppConfigMqtt       `mapstructure:"mqtt"`
	Logging    AppConfigLogging    `mapstructure:"logging"`
}

var defaults = map[string]any{
	"somenergia.base_url": "https://api.somenergia.coop",
	"somenergia.tariff":   "2.0TD",
	"somenergia.geo_zone": "PENINSULA",
	"somenergia.timeout":  "30s",

	"timezone": "Europe/Madrid",

	"store.backend":     BackendCSV,
	"store.dir":         ".",
	"store.file_prefix": "prices_somenergia",

	"schedule.run_at":         "15 21 * * *",
	"schedule.maintenance_at": "30 2 * * *",

	"database.path": "",

	"mqtt.host":      "",
	"mqtt.port":      1883,
	"mqtt.username":  "",
	"mqtt.password":  "",
	"mqtt.topic":     "somenergia/prices",
	"mqtt.client_id": "somenergia-go",
}

// Load reads the config file at path, or config/config.yaml when path is
// empty. Only an explicitly given file has to exist. Environment variables
// (and a .env file) override the file, e.g. SOMENERGIA_TARIFF or STORE_DIR.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c AppConfig

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	return &c, nil
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.SomEnergia.Tariff == "" {
		errs = append(errs, errors.New("somenergia.tariff is required"))
	}
	if c.SomEnergia.GeoZone == "" {
		errs = append(errs, errors.New("somenergia.geo_zone is required"))
	}
	if c.SomEnergia.Timeout <= 0 {
		errs = append(errs, errors.New("somenergia.timeout must be positive"))
	}
	switch strings.ToLower(c.Store.Backend) {
	case BackendCSV:
	case BackendSQLite:
		if !c.Database.Enabled() {
			errs = append(errs, errors.New("store.backend sqlite requires database.path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	return errors.Join(errs...)
}
