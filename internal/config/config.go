package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config lists the tunable parameters for the beacon telemetry server.
type Config struct {
	HTTPPort     int
	DatabasePath string
	LogLevel     string
	WebDir       string

	TTL           time.Duration
	DisplayOffset time.Duration

	TxPower          float64
	PathLossExponent float64

	SmoothingEnabled bool
	ProcessNoise     float64
	MeasurementNoise float64
	MaxStep          float64

	UptimeInterval time.Duration
	ReportHour     int
	ReportMinute   int

	MQTTBroker   string
	MQTTTopics   []string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	MDNSEnabled bool
}

const (
	defaultHTTPPort           = 8080
	defaultDatabasePath       = "data/beaconwatch.db"
	defaultLogLevel           = "info"
	defaultWebDir             = "web"
	defaultTTLSeconds         = 360
	defaultDisplayOffsetHours = 13
	defaultTxPower            = -59.0
	defaultPathLossExponent   = 2.0
	defaultProcessNoise       = 0.3
	defaultMeasurementNoise   = 9.0
	defaultMaxStep            = 3.0
	defaultUptimeSeconds      = 60
	defaultReportHour         = 22
	defaultReportMinute       = 0
	defaultMQTTTopic          = "flespi/message/gw/devices/+"

	envPrefix = "BEACONWATCH_"
)

// Load derives configuration values from environment variables, falling back to defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:         defaultHTTPPort,
		DatabasePath:     defaultDatabasePath,
		LogLevel:         defaultLogLevel,
		WebDir:           defaultWebDir,
		TTL:              defaultTTLSeconds * time.Second,
		DisplayOffset:    defaultDisplayOffsetHours * time.Hour,
		TxPower:          defaultTxPower,
		PathLossExponent: defaultPathLossExponent,
		ProcessNoise:     defaultProcessNoise,
		MeasurementNoise: defaultMeasurementNoise,
		MaxStep:          defaultMaxStep,
		UptimeInterval:   defaultUptimeSeconds * time.Second,
		ReportHour:       defaultReportHour,
		ReportMinute:     defaultReportMinute,
		MQTTTopics:       []string{defaultMQTTTopic},
	}

	var err error

	if cfg.HTTPPort, err = intVar("HTTP_PORT", cfg.HTTPPort); err != nil {
		return Config{}, err
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return Config{}, fmt.Errorf("invalid %sHTTP_PORT: %d out of range", envPrefix, cfg.HTTPPort)
	}

	cfg.DatabasePath = stringVar("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = stringVar("LOG_LEVEL", cfg.LogLevel)
	cfg.WebDir = stringVar("WEB_DIR", cfg.WebDir)

	ttl, err := intVar("TTL_SECONDS", defaultTTLSeconds)
	if err != nil {
		return Config{}, err
	}
	if ttl <= 0 {
		return Config{}, fmt.Errorf("invalid %sTTL_SECONDS: must be positive", envPrefix)
	}
	cfg.TTL = time.Duration(ttl) * time.Second

	offset, err := intVar("DISPLAY_OFFSET_HOURS", defaultDisplayOffsetHours)
	if err != nil {
		return Config{}, err
	}
	cfg.DisplayOffset = time.Duration(offset) * time.Hour

	if cfg.TxPower, err = floatVar("TX_POWER", cfg.TxPower); err != nil {
		return Config{}, err
	}
	if cfg.PathLossExponent, err = floatVar("PATH_LOSS_N", cfg.PathLossExponent); err != nil {
		return Config{}, err
	}
	if cfg.SmoothingEnabled, err = boolVar("SMOOTHING_ENABLED", false); err != nil {
		return Config{}, err
	}
	if cfg.ProcessNoise, err = floatVar("SMOOTHER_PROCESS_NOISE", cfg.ProcessNoise); err != nil {
		return Config{}, err
	}
	if cfg.MeasurementNoise, err = floatVar("SMOOTHER_MEASUREMENT_NOISE", cfg.MeasurementNoise); err != nil {
		return Config{}, err
	}
	if cfg.MaxStep, err = floatVar("SMOOTHER_MAX_STEP", cfg.MaxStep); err != nil {
		return Config{}, err
	}

	uptime, err := intVar("UPTIME_INTERVAL_SECONDS", defaultUptimeSeconds)
	if err != nil {
		return Config{}, err
	}
	if uptime <= 0 {
		return Config{}, fmt.Errorf("invalid %sUPTIME_INTERVAL_SECONDS: must be positive", envPrefix)
	}
	cfg.UptimeInterval = time.Duration(uptime) * time.Second

	if cfg.ReportHour, err = intVar("REPORT_HOUR", cfg.ReportHour); err != nil {
		return Config{}, err
	}
	if cfg.ReportHour < 0 || cfg.ReportHour > 23 {
		return Config{}, fmt.Errorf("invalid %sREPORT_HOUR: %d", envPrefix, cfg.ReportHour)
	}
	if cfg.ReportMinute, err = intVar("REPORT_MINUTE", cfg.ReportMinute); err != nil {
		return Config{}, err
	}
	if cfg.ReportMinute < 0 || cfg.ReportMinute > 59 {
		return Config{}, fmt.Errorf("invalid %sREPORT_MINUTE: %d", envPrefix, cfg.ReportMinute)
	}

	cfg.MQTTBroker = stringVar("MQTT_BROKER", "")
	if v := os.Getenv(envPrefix + "MQTT_TOPICS"); v != "" {
		cfg.MQTTTopics = splitList(v)
	}
	cfg.MQTTClientID = stringVar("MQTT_CLIENT_ID", "")
	cfg.MQTTUsername = stringVar("MQTT_USERNAME", "")
	cfg.MQTTPassword = stringVar("MQTT_PASSWORD", "")

	if cfg.MDNSEnabled, err = boolVar("MDNS_ENABLED", false); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func stringVar(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func intVar(key string, fallback int) (int, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func floatVar(key string, fallback float64) (float64, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return f, nil
}

func boolVar(key string, fallback bool) (bool, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
