package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up next to the extension.
const FileName = "killindicator.cfg.json"

// ReconcileConfig holds the timing knobs of the reconciliation engine.
type ReconcileConfig struct {
	Window         time.Duration
	SkewTolerance  time.Duration
	MarkerLifetime time.Duration
	MineGearIDs    []uint32
	OutboxLimit    int
	Debug          bool
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings. An empty Path keeps the
// database in memory and dumps it to OutputDir when the session ends.
type SQLiteConfig struct {
	Path          string
	OutputDir     string
	FlushInterval time.Duration
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// APIConfig holds the feed server endpoint used by the websocket backend
// and by exported feed uploads.
type APIConfig struct {
	ServerURL string
	APIKey    string
	Upload    bool
}

// StorageConfig selects and configures the kill feed backend.
type StorageConfig struct {
	Type     string
	Memory   MemoryConfig
	SQLite   SQLiteConfig
	Postgres DBConfig
	API      APIConfig
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds the delay metrics sink settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// GraylogConfig holds GELF forwarding settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers every default. Load calls it; callers that run
// without a file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./kilogs")
	viper.SetDefault("debug", false)

	viper.SetDefault("reconcile.windowMs", 1000)
	viper.SetDefault("reconcile.skewToleranceMs", 0)
	viper.SetDefault("reconcile.outboxLimit", 512)
	viper.SetDefault("markers.lifetimeMs", 3000)
	viper.SetDefault("mines.gearIds", []int{125})

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./killfeeds")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.outputDir", "./killfeeds")
	viper.SetDefault("storage.sqlite.flushInterval", "5s")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "killindicator")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "killindicator")
	viper.SetDefault("influx.bucket", "kill_indicators")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "killindicator")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func millis(key string) time.Duration {
	return time.Duration(viper.GetInt64(key)) * time.Millisecond
}

// GetReconcileConfig returns the reconciliation settings.
func GetReconcileConfig() ReconcileConfig {
	var gear []uint32
	for _, id := range viper.GetIntSlice("mines.gearIds") {
		if id >= 0 {
			gear = append(gear, uint32(id))
		}
	}
	return ReconcileConfig{
		Window:         millis("reconcile.windowMs"),
		SkewTolerance:  millis("reconcile.skewToleranceMs"),
		MarkerLifetime: millis("markers.lifetimeMs"),
		MineGearIDs:    gear,
		OutboxLimit:    viper.GetInt("reconcile.outboxLimit"),
		Debug:          viper.GetBool("debug"),
	}
}

// GetStorageConfig returns the kill feed storage settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:          viper.GetString("storage.sqlite.path"),
			OutputDir:     viper.GetString("storage.sqlite.outputDir"),
			FlushInterval: viper.GetDuration("storage.sqlite.flushInterval"),
		},
		Postgres: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		API: APIConfig{
			ServerURL: viper.GetString("api.serverUrl"),
			APIKey:    viper.GetString("api.apiKey"),
			Upload:    viper.GetBool("api.upload"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF forwarding settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
