package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModePush = "push"
	ModePull = "pull"

	SourceRandom = "random"
	SourceBME280 = "bme280"
	SourceMQTT   = "mqtt"
	SourceBLE    = "ble"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	StationID string
	// Mode selects how displays receive measurements: "push" hands them the
	// measurement, "pull" notifies them and they read it back from the station.
	Mode   string
	Source string

	ReadingInterval time.Duration
	// ReadingCycles stops the reading loop after that many cycles; 0 runs until signalled.
	ReadingCycles int
	// DetachForecastAfter removes the forecast display after that many cycles; 0 keeps it.
	DetachForecastAfter int
	ExtendedReadings    bool
	BME280Address       uint16
	// BLECompanyID filters sensor advertisements by manufacturer company id.
	BLECompanyID uint16

	// HTTPAddr enables the read-only HTTP view when set.
	HTTPAddr string

	// SQLitePath or DBDSN enable the reading archive when set.
	DBDriver          string
	DBDSN             string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// MQTTBroker enables telemetry publishing (and the mqtt source) when set.
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

// ArchiveEnabled reports whether readings should be stored in SQLite.
func (c Config) ArchiveEnabled() bool {
	return c.SQLitePath != "" || c.DBDSN != ""
}

func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	stationID := env("STATION_ID", "home")

	mode := strings.ToLower(env("STATION_MODE", ModePush))
	switch mode {
	case ModePush, ModePull:
	default:
		return Config{}, fmt.Errorf("invalid STATION_MODE %q (allowed: push, pull)", mode)
	}

	src := strings.ToLower(env("READING_SOURCE", SourceRandom))
	switch src {
	case SourceRandom, SourceBME280, SourceMQTT, SourceBLE:
	default:
		return Config{}, fmt.Errorf("invalid READING_SOURCE %q (allowed: random, bme280, mqtt, ble)", src)
	}

	intervalStr := env("READING_INTERVAL", "1s")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid READING_INTERVAL %q: %w", intervalStr, err)
	}
	if interval <= 0 {
		return Config{}, fmt.Errorf("READING_INTERVAL must be positive, got %v", interval)
	}

	cycles, err := nonNegativeInt("READING_CYCLES", "6")
	if err != nil {
		return Config{}, err
	}
	detachAfter, err := nonNegativeInt("DETACH_FORECAST_AFTER", "3")
	if err != nil {
		return Config{}, err
	}

	extendedStr := env("EXTENDED_READINGS", "false")
	extended, err := strconv.ParseBool(extendedStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid EXTENDED_READINGS %q: %w", extendedStr, err)
	}

	bme280AddressStr := env("BME280_ADDRESS", "0x76")
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}

	bleCompanyIDStr := env("BLE_COMPANY_ID", "0xFFFF")
	bleCompanyID, err := strconv.ParseUint(bleCompanyIDStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BLE_COMPANY_ID %q: %w", bleCompanyIDStr, err)
	}

	maxOpenConnsStr := env("DB_MAX_OPEN_CONNS", "1")
	maxOpenConns, err := strconv.Atoi(maxOpenConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %q: %w", maxOpenConnsStr, err)
	}
	maxIdleConnsStr := env("DB_MAX_IDLE_CONNS", "1")
	maxIdleConns, err := strconv.Atoi(maxIdleConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_IDLE_CONNS %q: %w", maxIdleConnsStr, err)
	}
	connMaxLifetimeStr := env("DB_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	mqttPortStr := env("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	mqttBroker := env("MQTT_BROKER", "")
	if src == SourceMQTT && mqttBroker == "" {
		return Config{}, fmt.Errorf("READING_SOURCE=mqtt requires MQTT_BROKER")
	}

	return Config{
		AppEnv:              appEnv,
		LogLevel:            level,
		StationID:           stationID,
		Mode:                mode,
		Source:              src,
		ReadingInterval:     interval,
		ReadingCycles:       cycles,
		DetachForecastAfter: detachAfter,
		ExtendedReadings:    extended,
		BME280Address:       uint16(bme280Address),
		BLECompanyID:        uint16(bleCompanyID),
		HTTPAddr:            env("HTTP_ADDR", ""),
		DBDriver:            env("DB_DRIVER", "sqlite3"),
		DBDSN:               env("DB_DSN", ""),
		SQLitePath:          env("SQLITE_PATH", ""),
		DBMaxOpenConns:      maxOpenConns,
		DBMaxIdleConns:      maxIdleConns,
		DBConnMaxLifetime:   connMaxLifetime,
		MQTTBroker:          mqttBroker,
		MQTTPort:            mqttPort,
		MQTTClientID:        env("MQTT_CLIENT_ID", ""),
		MQTTTopic:           env("MQTT_TOPIC", "stations/+/telemetry"),
	}, nil
}

// env returns the trimmed value of key, or def when it is unset or blank.
func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func nonNegativeInt(key, def string) (int, error) {
	s := env(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, n)
	}
	return n, nil
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
