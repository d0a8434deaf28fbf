package config

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path"
	"time"

	"github.com/adrg/xdg"
)

var (
	errConfigWrite = errors.New("failed to write config file")
	errConfigRead  = errors.New("failed to read config file")
	errLoggerInit  = errors.New("failed to initialize logger")
)

const (
	ConfigDirName     = "zanlist"
	DefaultConfigName = "zanlist"
	DefaultDBName     = "zanlist.db"
	DefaultLogName    = "zanlist.log"
	EnvPrefix         = "zanlist"

	DefaultMasterAddress = "master.zandronum.com:15300"
)

type Config struct {
	MasterAddress string `mapstructure:"master_address"`
	// Timeouts and retry policy, all in milliseconds for the
	// *_ms fields.
	MasterTimeoutMs    int `mapstructure:"master_timeout_ms"`
	MasterAttempts     int `mapstructure:"master_attempts"`
	MasterRetryDelayMs int `mapstructure:"master_retry_delay_ms"`
	QueryTimeoutMs     int `mapstructure:"query_timeout_ms"`
	QueryAttempts      int `mapstructure:"query_attempts"`
	QueryRetryDelayMs  int `mapstructure:"query_retry_delay_ms"`
	// MaxConcurrent bounds in-flight server queries, 0 = unbounded.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// QueryIntervalMs is the minimum delay between dispatching new
	// queries.
	QueryIntervalMs  int `mapstructure:"query_interval_ms"`
	OfflineThreshold int `mapstructure:"offline_threshold"`
	// ManualServers and Favorites are host:port strings; invalid
	// entries are dropped on read with a log line.
	ManualServers []string `mapstructure:"manual_servers"`
	Favorites     []string `mapstructure:"favorites"`
	// GeoIPPath points to an optional MaxMind country database. When
	// empty the web lookup fallback is used instead.
	GeoIPPath     string `mapstructure:"geoip_path"`
	CountryAPIURL string `mapstructure:"country_api_url"`
	DBPath        string `mapstructure:"db_path"`
	LogLevel      string `mapstructure:"log_level"`
}

func (c Config) MasterTimeout() time.Duration {
	return time.Duration(c.MasterTimeoutMs) * time.Millisecond
}

func (c Config) MasterRetryDelay() time.Duration {
	return time.Duration(c.MasterRetryDelayMs) * time.Millisecond
}

func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMs) * time.Millisecond
}

func (c Config) QueryRetryDelay() time.Duration {
	return time.Duration(c.QueryRetryDelayMs) * time.Millisecond
}

func (c Config) QueryInterval() time.Duration {
	return time.Duration(c.QueryIntervalMs) * time.Millisecond
}

// ManualEndpoints parses the configured manual servers, dropping
// unparseable entries.
func (c Config) ManualEndpoints() []netip.AddrPort {
	return parseEndpoints(c.ManualServers)
}

// FavoriteEndpoints parses the configured favorites.
func (c Config) FavoriteEndpoints() []netip.AddrPort {
	return parseEndpoints(c.Favorites)
}

func parseEndpoints(entries []string) []netip.AddrPort {
	var endpoints []netip.AddrPort
	for _, entry := range entries {
		endpoint, errParse := netip.ParseAddrPort(entry)
		if errParse != nil {
			slog.Warn("Dropping unparseable server address", slog.String("address", entry))

			continue
		}
		endpoints = append(endpoints, endpoint)
	}

	return endpoints
}

func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Path generates a path pointing to the filename under this apps defined $XDG_CONFIG_HOME.
func Path(name string) string {
	fullPath, errFullPath := xdg.ConfigFile(path.Join(ConfigDirName, name))
	if errFullPath != nil {
		panic(errFullPath)
	}

	return fullPath
}

// LoggerInit sets up the slog global handler to write to a log file.
func LoggerInit(logPath string, level slog.Level) (io.Closer, error) {
	logFile, errLogFile := os.Create(path.Join(xdg.ConfigHome, ConfigDirName, logPath))
	if errLogFile != nil {
		return nil, errors.Join(errLogFile, errLoggerInit)
	}

	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}))

	slog.SetDefault(logger)

	return logFile, nil
}
