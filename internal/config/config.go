package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// PlaceholderAPIKey is the sample value shipped in example env files. It is
// treated the same as an empty key.
const PlaceholderAPIKey = "your-api-key-here"

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// StaticDir is the absolute path to the directory served at /static/.
	// Set via STATIC_DIR (relative paths are resolved against the process working directory at startup).
	StaticDir string

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	OpenWeatherAPIKey         string
	OpenWeatherAPIURL         string
	OpenWeatherTimeout        time.Duration
	OpenWeatherBreakerTimeout time.Duration

	// MQTTBroker empty disables the MQTT record subscriber.
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

// OpenWeatherConfigured reports whether a usable provider key is set.
func (c Config) OpenWeatherConfigured() bool {
	return c.OpenWeatherAPIKey != "" && c.OpenWeatherAPIKey != PlaceholderAPIKey
}

// MQTTEnabled reports whether a broker was configured.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadFromEnv reads the configuration from the environment. All invalid
// variables are reported together.
func LoadFromEnv() (Config, error) {
	var errs *multierror.Error

	appEnv := envOr("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		errs = multierror.Append(errs, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv))
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	staticDir := envOr("STATIC_DIR", "static")
	if abs, err := filepath.Abs(staticDir); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("STATIC_DIR %q: %w", staticDir, err))
	} else {
		staticDir = abs
	}

	maxOpenConns, err := parseInt("DB_MAX_OPEN_CONNS", "1")
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	maxIdleConns, err := parseInt("DB_MAX_IDLE_CONNS", "1")
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	connMaxLifetime, err := parseDuration("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	logSQL, err := parseBool("DB_LOG_SQL", "false")
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	apiURL := strings.TrimRight(envOr("OPENWEATHER_API_URL", "https://api.openweathermap.org/data/2.5"), "/")
	apiTimeout, err := parseDuration("OPENWEATHER_TIMEOUT", "10s")
	if err == nil && apiTimeout <= 0 {
		err = fmt.Errorf("invalid OPENWEATHER_TIMEOUT %q: must be > 0", os.Getenv("OPENWEATHER_TIMEOUT"))
	}
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	breakerTimeout, err := parseDuration("OPENWEATHER_BREAKER_TIMEOUT", "30s")
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	mqttPort, err := parseInt("MQTT_PORT", "1883")
	if err == nil && (mqttPort <= 0 || mqttPort > 65535) {
		err = fmt.Errorf("invalid MQTT_PORT %d: must be 1-65535", mqttPort)
	}
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:                    appEnv,
		LogLevel:                  level,
		HTTPAddr:                  envOr("HTTP_ADDR", ":8080"),
		StaticDir:                 staticDir,
		Driver:                    envOr("DB_DRIVER", "sqlite3"),
		DSN:                       strings.TrimSpace(os.Getenv("DB_DSN")),
		Path:                      envOr("SQLITE_PATH", "data/weathervision.db"),
		MaxOpenConns:              maxOpenConns,
		MaxIdleConns:              maxIdleConns,
		ConnMaxLifetime:           connMaxLifetime,
		LogSQL:                    logSQL,
		OpenWeatherAPIKey:         strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		OpenWeatherAPIURL:         apiURL,
		OpenWeatherTimeout:        apiTimeout,
		OpenWeatherBreakerTimeout: breakerTimeout,
		MQTTBroker:                strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:                  mqttPort,
		MQTTClientID:              envOr("MQTT_CLIENT_ID", "weathervision-server"),
		MQTTTopic:                 envOr("MQTT_TOPIC", "weathervision/records"),
	}, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func parseInt(key, def string) (int, error) {
	s := envOr(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOr(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseBool(key, def string) (bool, error) {
	s := envOr(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
