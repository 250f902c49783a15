package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

const (
	DefaultAPIBaseURL   = "http://api.openweathermap.org/"
	DefaultLatitude     = 40.44433
	DefaultLongitude    = -79.94481
	DefaultPollInterval = 10 * time.Minute
	DefaultMQTTPort     = 8883
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	WeatherAppID string
	APIBaseURL   string
	Latitude     float64
	Longitude    float64
	PollInterval time.Duration

	MQTTHost  string
	MQTTPort  int
	MQTTUser  string
	MQTTToken string
	MQTTTLS   bool
}

// LogValue keeps credentials out of log output.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("app_env", c.AppEnv),
		slog.String("log_level", c.LogLevel.String()),
		slog.String("api_base_url", c.APIBaseURL),
		slog.Float64("latitude", c.Latitude),
		slog.Float64("longitude", c.Longitude),
		slog.Duration("poll_interval", c.PollInterval),
		slog.String("mqtt_host", c.MQTTHost),
		slog.Int("mqtt_port", c.MQTTPort),
		slog.String("mqtt_user", c.MQTTUser),
		slog.Bool("mqtt_tls", c.MQTTTLS),
	)
}

// Load reads the device config file at path. Keys live in the [DEFAULT]
// section (or before any section header); each key can be overridden by the
// environment variable with the upper-cased key name.
func Load(path string) (Config, error) {
	cfg, err := LoadFromEnv()
	if err != nil {
		return Config{}, err
	}

	file, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true, IgnoreInlineComment: true}, path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	src := source{section: file.Section("")}

	cfg.WeatherAppID = src.get("weather_app_id")
	cfg.MQTTHost = src.get("mqtt_host")
	cfg.MQTTUser = src.get("mqtt_user")
	cfg.MQTTToken = src.get("mqtt_token")

	var missing []string
	for _, req := range []struct{ key, val string }{
		{"weather_app_id", cfg.WeatherAppID},
		{"mqtt_host", cfg.MQTTHost},
		{"mqtt_user", cfg.MQTTUser},
		{"mqtt_token", cfg.MQTTToken},
	} {
		if req.val == "" {
			missing = append(missing, req.key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required keys: %s", strings.Join(missing, ", "))
	}

	cfg.APIBaseURL = src.getDefault("api_base_url", DefaultAPIBaseURL)
	if !strings.HasSuffix(cfg.APIBaseURL, "/") {
		cfg.APIBaseURL += "/"
	}

	portStr := src.getDefault("mqtt_port", strconv.Itoa(DefaultMQTTPort))
	cfg.MQTTPort, err = strconv.Atoi(portStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid mqtt_port %q: %w", portStr, err)
	}
	if cfg.MQTTPort <= 0 || cfg.MQTTPort > 65535 {
		return Config{}, fmt.Errorf("config: mqtt_port out of range: %d", cfg.MQTTPort)
	}

	tlsStr := src.getDefault("mqtt_tls", "true")
	cfg.MQTTTLS, err = strconv.ParseBool(tlsStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid mqtt_tls %q: %w", tlsStr, err)
	}

	latStr := src.getDefault("latitude", strconv.FormatFloat(DefaultLatitude, 'f', -1, 64))
	cfg.Latitude, err = strconv.ParseFloat(latStr, 64)
	if err != nil || cfg.Latitude < -90 || cfg.Latitude > 90 {
		return Config{}, fmt.Errorf("config: invalid latitude %q", latStr)
	}
	lonStr := src.getDefault("longitude", strconv.FormatFloat(DefaultLongitude, 'f', -1, 64))
	cfg.Longitude, err = strconv.ParseFloat(lonStr, 64)
	if err != nil || cfg.Longitude < -180 || cfg.Longitude > 180 {
		return Config{}, fmt.Errorf("config: invalid longitude %q", lonStr)
	}

	intervalStr := src.getDefault("poll_interval", DefaultPollInterval.String())
	cfg.PollInterval, err = time.ParseDuration(intervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid poll_interval %q: %w", intervalStr, err)
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("config: poll_interval must be positive, got %v", cfg.PollInterval)
	}

	return cfg, nil
}

// LoadFromEnv reads the process-level settings shared by every run mode.
func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:   appEnv,
		LogLevel: level,
	}, nil
}

type source struct {
	section *ini.Section
}

func (s source) get(key string) string {
	if v := strings.TrimSpace(os.Getenv(strings.ToUpper(key))); v != "" {
		return v
	}
	if s.section == nil || !s.section.HasKey(key) {
		return ""
	}
	return strings.TrimSpace(s.section.Key(key).String())
}

func (s source) getDefault(key, def string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return def
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
