package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Source     SourceConfig     `yaml:"source"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	DelayWatch DelayWatchConfig `yaml:"delaywatch"`
}

type LogConfig struct {
	Environment string `yaml:"environment"` // "production" -> JSON
	Level       string `yaml:"level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	AlertsScannedTopicName string `yaml:"alerts_scanned_topic_name"`
}

func (c KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

func (c KafkaConfig) Topic() string {
	if c.AlertsScannedTopicName == "" {
		return "alerts.scanned"
	}
	return c.AlertsScannedTopicName
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SourceConfig описывает REST-бэкенд со списком посылок.
type SourceConfig struct {
	Mode              string `yaml:"mode"` // "rest" | "fake"
	BaseURL           string `yaml:"base_url"`
	PackagesPath      string `yaml:"packages_path"`
	APIToken          string `yaml:"api_token"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	TimestampLocation string `yaml:"timestamp_location"` // IANA name, default UTC
	FakePackages      int    `yaml:"fake_packages"`
}

type AlertsConfig struct {
	ThresholdHours float64 `yaml:"threshold_hours"`
	MediumHours    float64 `yaml:"medium_hours"`
	HighHours      float64 `yaml:"high_hours"`
	CriticalHours  float64 `yaml:"critical_hours"`

	// Переопределения таблицы прогресса: event_type -> percent.
	ProgressOverrides map[string]int `yaml:"progress_overrides"`
}

type DelayWatchConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	SnapshotTTLSeconds int    `yaml:"snapshot_ttl_seconds"`

	// Flat allow-list of operators allowed to resolve alerts. Empty means anyone.
	Admins  []string `yaml:"admins"`
	APIKeys []string `yaml:"api_keys"`

	WorkerHTTPAddr               string `yaml:"worker_http_addr"`
	WorkerRefreshIntervalSeconds int    `yaml:"worker_refresh_interval_seconds"`
	WorkerRateLimitPerMinute     int    `yaml:"worker_rate_limit_per_minute"`

	// Backoff after consecutive failed refreshes. Defaults: 5/15/30/60 seconds.
	WorkerBackoff1Seconds int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds int `yaml:"worker_backoff_4_seconds"`
}

func (c DelayWatchConfig) SnapshotTTL() time.Duration {
	if c.SnapshotTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.SnapshotTTLSeconds) * time.Second
}

func (c DelayWatchConfig) RefreshInterval() time.Duration {
	if c.WorkerRefreshIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.WorkerRefreshIntervalSeconds) * time.Second
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
