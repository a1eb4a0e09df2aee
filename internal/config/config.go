package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"salon/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Booking    BookingConfig    `yaml:"booking"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Tracing    TracingConfig    `yaml:"tracing"`
	// CatalogPath указывает на YAML с начальным каталогом услуг
	CatalogPath string `yaml:"catalog_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
	JWT          JWTConfig      `yaml:"jwt"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

// JWTConfig describes bearer tokens issued by the identity provider.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ScheduleConfig struct {
	Slots           []string `yaml:"slots"`
	DefaultDuration int      `yaml:"default_duration"`
	Timezone        string   `yaml:"timezone"`
	// ClosedWeekdays 0 = воскресенье; пустой список значит без выходных
	ClosedWeekdays  []int    `yaml:"closed_weekdays"`
}

type BookingConfig struct {
	DraftTTL          int `yaml:"draft_ttl"`
	RateLimitRequests int `yaml:"rate_limit_requests"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID         string `yaml:"spreadsheet_id"`
}

type KafkaConfig struct {
	// Brokers is a comma separated list; empty disables event forwarding
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if err := c.Schedule.Validate(); err != nil {
		return err
	}

	if c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 && c.API.Auth.JWT.Secret == "" {
		return errors.New("api auth requires api_keys or jwt.secret")
	}

	keys := make(map[string]bool)
	for _, k := range c.API.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if keys[k.Key] {
			return fmt.Errorf("duplicate api key for '%s'", k.Name)
		}
		keys[k.Key] = true
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be within [0,1], got %v", c.Tracing.SampleRatio)
	}

	return nil
}

// Validate checks that the slots parse as HH:MM and follow each other by
// exactly one slot length, that closed weekdays are 0..6 and that the
// timezone is known.
func (s ScheduleConfig) Validate() error {
	if len(s.Slots) == 0 {
		return errors.New("schedule requires at least one slot")
	}
	step := models.SlotMinutes * time.Minute
	var prev time.Time
	for i, slot := range s.Slots {
		t, err := time.Parse(models.SlotLayout, slot)
		if err != nil {
			return fmt.Errorf("invalid schedule slot %q: %w", slot, err)
		}
		if i > 0 && t.Sub(prev) != step {
			return fmt.Errorf("schedule slots must be %s apart: %q after %q", step, slot, s.Slots[i-1])
		}
		prev = t
	}
	for _, d := range s.ClosedWeekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid closed weekday %d: want 0 (Sunday) to 6 (Saturday)", d)
		}
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// Weekdays returns ClosedWeekdays as time.Weekday values.
func (s ScheduleConfig) Weekdays() []time.Weekday {
	out := make([]time.Weekday, 0, len(s.ClosedWeekdays))
	for _, d := range s.ClosedWeekdays {
		out = append(out, time.Weekday(d))
	}
	return out
}

// Location returns the time zone used to match appointments to calendar days.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "salon"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	// Schedule defaults
	if len(c.Schedule.Slots) == 0 {
		c.Schedule.Slots = models.DefaultTimeSlots()
	}
	if c.Schedule.DefaultDuration == 0 {
		c.Schedule.DefaultDuration = models.DefaultServiceDuration
	}
	if c.Schedule.ClosedWeekdays == nil {
		c.Schedule.ClosedWeekdays = []int{int(time.Sunday)}
	}

	// Booking defaults
	if c.Booking.DraftTTL == 0 {
		c.Booking.DraftTTL = models.DefaultDraftTTL
	}
	if c.Booking.RateLimitRequests == 0 {
		c.Booking.RateLimitRequests = models.DraftRateLimitRequests
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = models.DraftRateLimitWindow
	}

	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "salon.appointments"
	}
	if c.Tracing.Enabled && c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}
