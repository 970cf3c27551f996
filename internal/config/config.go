package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"barberbook/internal/models"

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
	Booking    BookingConfig    `yaml:"booking"`
	Notify     NotifyConfig     `yaml:"notify"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Bot        BotConfig        `yaml:"bot"`
}

// BotConfig drives the client-facing Telegram booking bot, one business per bot.
type BotConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Token             string `yaml:"token"`
	BusinessID        string `yaml:"business_id"`
	DaysAhead         int    `yaml:"days_ahead"`
	RateLimitMessages int    `yaml:"rate_limit_messages"`
	RateLimitWindow   int    `yaml:"rate_limit_window"`
	Debug             bool   `yaml:"debug"`
}

type BookingConfig struct {
	StepMinutes      int    `yaml:"step_minutes"`
	MaxAdvanceDays   int    `yaml:"max_advance_days"`
	Timezone         string `yaml:"timezone"`
	ReadRetries      int    `yaml:"read_retries"`
	ReadRetryDelayMS int    `yaml:"read_retry_delay_ms"`
	SlotCacheTTL     int    `yaml:"slot_cache_ttl"`
	DraftTTL         int    `yaml:"draft_ttl"`
	// UnmappedProfessionalsOfferAll lets professionals without any service
	// mapping appear for every service.
	UnmappedProfessionalsOfferAll *bool `yaml:"unmapped_professionals_offer_all"`
	ClientRateLimit               int   `yaml:"client_rate_limit"`
	ClientRateWindow              int   `yaml:"client_rate_window"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
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
	RequireClientCert bool   `yaml:"require_client_cert"`
	ClientCAFile      string `yaml:"client_ca_file"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey grants access to the API. A non-empty BusinessID pins the
// key to one tenant.
type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	BusinessID  string   `yaml:"business_id"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
}

type WhatsAppConfig struct {
	BaseURL string `yaml:"base_url"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	URL            string `yaml:"url"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN returns URL when set, otherwise builds one from the discrete fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
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
	GoogleCredentialsFile     string `yaml:"credentials_file"`
	AppointmentsSpreadSheetID string `yaml:"appointments_spreadsheet_id"`
}

type CatalogConfig struct {
	SeedPath string `yaml:"seed_path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
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
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "postgres":
		if c.Database.Postgres.URL == "" && c.Database.Postgres.Host == "" {
			return errors.New("postgres url or host is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Booking.StepMinutes <= 0 || c.Booking.StepMinutes > 24*60 {
		return fmt.Errorf("booking.step_minutes out of range: %d", c.Booking.StepMinutes)
	}
	if c.Booking.MaxAdvanceDays < 0 {
		return errors.New("booking.max_advance_days must not be negative")
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}

	if c.Bot.Enabled && (c.Bot.Token == "" || c.Bot.BusinessID == "") {
		return errors.New("bot.token and bot.business_id are required when the booking bot is enabled")
	}

	if c.Notify.Telegram.Enabled && c.Notify.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram notifications are enabled")
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

// Location returns the business timezone, UTC when unset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OfferAllWhenUnmapped resolves the unmapped professional policy, true by default.
func (b BookingConfig) OfferAllWhenUnmapped() bool {
	return b.UnmappedProfessionalsOfferAll == nil || *b.UnmappedProfessionalsOfferAll
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "barberbook"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
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
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "barberbook.appointments"
	}
	if c.Notify.WhatsApp.BaseURL == "" {
		c.Notify.WhatsApp.BaseURL = "https://wa.me"
	}
	if c.Backup.IntervalHours == 0 {
		c.Backup.IntervalHours = 24
	}

	if c.Bot.DaysAhead == 0 {
		c.Bot.DaysAhead = 7
	}
	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = 30
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = 60
	}

	// Booking defaults
	if c.Booking.StepMinutes == 0 {
		c.Booking.StepMinutes = models.DefaultSlotStepMinutes
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "UTC"
	}
	if c.Booking.ReadRetries == 0 {
		c.Booking.ReadRetries = 3
	}
	if c.Booking.ReadRetryDelayMS == 0 {
		c.Booking.ReadRetryDelayMS = 50
	}
	if c.Booking.SlotCacheTTL == 0 {
		c.Booking.SlotCacheTTL = models.DefaultSlotCacheTTL
	}
	if c.Booking.DraftTTL == 0 {
		c.Booking.DraftTTL = models.DefaultDraftTTL
	}
	if c.Booking.ClientRateLimit == 0 {
		c.Booking.ClientRateLimit = 5
	}
	if c.Booking.ClientRateWindow == 0 {
		c.Booking.ClientRateWindow = 60
	}
}
