package config

import (
	"errors"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader handles setting up viper, loading configuration from files, and broadcasting configuration changes.
type Loader struct {
	*viper.Viper
	changes chan<- Config
}

func NewLoader(changes chan<- Config) *Loader {
	// Optional .env overrides, mostly for development.
	if errDotEnv := godotenv.Load(); errDotEnv != nil {
		slog.Debug("No .env file loaded", slog.String("error", errDotEnv.Error()))
	}

	loader := Loader{changes: changes, Viper: viper.New()}
	loader.SetDefault("master_address", DefaultMasterAddress)
	loader.SetDefault("master_timeout_ms", 5000)
	loader.SetDefault("master_attempts", 3)
	loader.SetDefault("master_retry_delay_ms", 1000)
	loader.SetDefault("query_timeout_ms", 3000)
	loader.SetDefault("query_attempts", 2)
	loader.SetDefault("query_retry_delay_ms", 500)
	loader.SetDefault("max_concurrent", 30)
	loader.SetDefault("query_interval_ms", 5)
	loader.SetDefault("offline_threshold", 3)
	loader.SetDefault("manual_servers", []string{})
	loader.SetDefault("favorites", []string{})
	loader.SetDefault("geoip_path", "")
	loader.SetDefault("country_api_url", "")
	loader.SetDefault("db_path", Path(DefaultDBName))
	loader.SetDefault("log_level", "info")
	loader.SetConfigName(DefaultConfigName)
	loader.SetConfigType("yaml")
	loader.SetEnvPrefix(EnvPrefix)
	loader.AddConfigPath(Path(""))
	loader.AddConfigPath(".")
	loader.AutomaticEnv()
	loader.WatchConfig()
	loader.OnConfigChange(loader.onConfigChange)

	return &loader
}

func (cl *Loader) Path() string {
	return cl.ConfigFileUsed()
}

func (cl *Loader) onConfigChange(in fsnotify.Event) {
	if in.Op != fsnotify.Write && in.Op != fsnotify.Rename {
		return
	}

	slog.Debug("External config reload triggered")
	config, err := cl.Read()
	if err != nil {
		slog.Error("Error reading config", slog.String("error", err.Error()))

		return
	}

	cl.changes <- config
}

func (cl *Loader) Write(config Config) error {
	cl.Set("master_address", config.MasterAddress)
	cl.Set("master_timeout_ms", config.MasterTimeoutMs)
	cl.Set("master_attempts", config.MasterAttempts)
	cl.Set("master_retry_delay_ms", config.MasterRetryDelayMs)
	cl.Set("query_timeout_ms", config.QueryTimeoutMs)
	cl.Set("query_attempts", config.QueryAttempts)
	cl.Set("query_retry_delay_ms", config.QueryRetryDelayMs)
	cl.Set("max_concurrent", config.MaxConcurrent)
	cl.Set("query_interval_ms", config.QueryIntervalMs)
	cl.Set("offline_threshold", config.OfflineThreshold)
	cl.Set("manual_servers", config.ManualServers)
	cl.Set("favorites", config.Favorites)
	cl.Set("geoip_path", config.GeoIPPath)
	cl.Set("country_api_url", config.CountryAPIURL)
	cl.Set("db_path", config.DBPath)
	cl.Set("log_level", config.LogLevel)

	if err := cl.WriteConfig(); err != nil {
		return errors.Join(err, errConfigWrite)
	}

	return nil
}

func (cl *Loader) Read() (Config, error) {
	if err := cl.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return Config{}, errors.Join(err, errConfigRead)
		}
	}

	var config Config
	if err := cl.Unmarshal(&config); err != nil {
		return Config{}, errors.Join(err, errConfigRead)
	}

	return config, nil
}
