package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string
	Port        string
	BodyLimit   int
	JWTSecret   string

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Escrow   EscrowConfig
	Outbox   OutboxConfig
	Email    EmailConfig
	Uploads  UploadConfig
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver     string
	URL        string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
	MaxConns   int
}

type RedisConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers []string
	// Topics maps an event type to a topic; unmapped events publish to a topic named after the event.
	Topics map[string]string
}

type EscrowConfig struct {
	CoolingOffPeriod time.Duration
	CheckoutHour     int
	Timezone         string
	SweepInterval    time.Duration
	SkipOpenDisputes bool
	LockTTL          time.Duration
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
}

type UploadConfig struct {
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	EvidenceFolder      string
}

type configFile struct {
	Service struct {
		Name      string `yaml:"name"`
		Port      string `yaml:"port"`
		BodyLimit int    `yaml:"body_limit"`
	} `yaml:"service"`
	Database struct {
		Driver     string `yaml:"driver"`
		URL        string `yaml:"url"`
		SQLitePath string `yaml:"sqlite_path"`
		MaxConns   int    `yaml:"max_conns"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string          `yaml:"brokers"`
		Topics  map[string]string `yaml:"topics"`
	} `yaml:"kafka"`
	Escrow struct {
		CoolingOffPeriod string `yaml:"cooling_off_period"`
		CheckoutHour     *int   `yaml:"checkout_hour"`
		Timezone         string `yaml:"timezone"`
		SweepInterval    string `yaml:"sweep_interval"`
		SkipOpenDisputes *bool  `yaml:"skip_open_disputes"`
		LockTTL          string `yaml:"lock_ttl"`
	} `yaml:"escrow"`
	Outbox struct {
		PollInterval string `yaml:"poll_interval"`
		BatchSize    int    `yaml:"batch_size"`
	} `yaml:"outbox"`
	Uploads struct {
		EvidenceFolder string `yaml:"evidence_folder"`
	} `yaml:"uploads"`
}

func Default() Config {
	return Config{
		ServiceName: "stayescrow",
		Port:        "8080",
		BodyLimit:   10 * 1024 * 1024,
		Database: DatabaseConfig{
			Driver:     "postgres",
			SSLMode:    "disable",
			SQLitePath: "stayescrow.db",
			MaxConns:   20,
		},
		Escrow: EscrowConfig{
			CoolingOffPeriod: 48 * time.Hour,
			CheckoutHour:     11,
			Timezone:         "UTC",
			SweepInterval:    5 * time.Minute,
			SkipOpenDisputes: true,
			LockTTL:          30 * time.Second,
		},
		Outbox: OutboxConfig{
			PollInterval: 2 * time.Second,
			BatchSize:    100,
		},
		Email: EmailConfig{
			FromEmail: "onboarding@resend.dev",
		},
		Uploads: UploadConfig{
			EvidenceFolder: "stayescrow/dispute-evidence",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path (if it exists),
// then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Escrow.CoolingOffPeriod < 0 {
		return fmt.Errorf("escrow cooling-off period must not be negative")
	}
	if c.Escrow.CheckoutHour < 0 || c.Escrow.CheckoutHour > 23 {
		return fmt.Errorf("escrow checkout hour must be between 0 and 23, got %d", c.Escrow.CheckoutHour)
	}
	if _, err := time.LoadLocation(c.Escrow.Timezone); err != nil {
		return fmt.Errorf("escrow timezone: %w", err)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// Location returns the calendar used to interpret booking dates.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Escrow.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns DATABASE_URL when set, else a DSN assembled from the individual DB_* settings.
func (d DatabaseConfig) DSN() (string, error) {
	if d.Driver == "sqlite" {
		return d.SQLitePath, nil
	}
	if d.URL != "" {
		return d.URL, nil
	}
	if d.Host == "" || d.User == "" || d.Password == "" || d.Name == "" || d.Port == "" {
		return "", fmt.Errorf("database configuration not provided: either set DATABASE_URL or all of DB_HOST, DB_USER, DB_PASSWORD, DB_NAME, and DB_PORT")
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	), nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.Name != "" {
		cfg.ServiceName = f.Service.Name
	}
	if f.Service.Port != "" {
		cfg.Port = f.Service.Port
	}
	if f.Service.BodyLimit > 0 {
		cfg.BodyLimit = f.Service.BodyLimit
	}
	if f.Database.Driver != "" {
		cfg.Database.Driver = f.Database.Driver
	}
	if f.Database.URL != "" {
		cfg.Database.URL = f.Database.URL
	}
	if f.Database.SQLitePath != "" {
		cfg.Database.SQLitePath = f.Database.SQLitePath
	}
	if f.Database.MaxConns > 0 {
		cfg.Database.MaxConns = f.Database.MaxConns
	}
	if f.Redis.URL != "" {
		cfg.Redis.URL = f.Redis.URL
	}
	if len(f.Kafka.Brokers) > 0 {
		cfg.Kafka.Brokers = trimNonEmpty(f.Kafka.Brokers)
	}
	if len(f.Kafka.Topics) > 0 {
		cfg.Kafka.Topics = f.Kafka.Topics
	}
	if err := parseDuration(f.Escrow.CoolingOffPeriod, &cfg.Escrow.CoolingOffPeriod); err != nil {
		return fmt.Errorf("escrow.cooling_off_period: %w", err)
	}
	if f.Escrow.CheckoutHour != nil {
		cfg.Escrow.CheckoutHour = *f.Escrow.CheckoutHour
	}
	if f.Escrow.Timezone != "" {
		cfg.Escrow.Timezone = f.Escrow.Timezone
	}
	if err := parseDuration(f.Escrow.SweepInterval, &cfg.Escrow.SweepInterval); err != nil {
		return fmt.Errorf("escrow.sweep_interval: %w", err)
	}
	if f.Escrow.SkipOpenDisputes != nil {
		cfg.Escrow.SkipOpenDisputes = *f.Escrow.SkipOpenDisputes
	}
	if err := parseDuration(f.Escrow.LockTTL, &cfg.Escrow.LockTTL); err != nil {
		return fmt.Errorf("escrow.lock_ttl: %w", err)
	}
	if err := parseDuration(f.Outbox.PollInterval, &cfg.Outbox.PollInterval); err != nil {
		return fmt.Errorf("outbox.poll_interval: %w", err)
	}
	if f.Outbox.BatchSize > 0 {
		cfg.Outbox.BatchSize = f.Outbox.BatchSize
	}
	if f.Uploads.EvidenceFolder != "" {
		cfg.Uploads.EvidenceFolder = f.Uploads.EvidenceFolder
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString("SERVICE_NAME", &cfg.ServiceName)
	setString("PORT", &cfg.Port)
	setString("JWT_SECRET", &cfg.JWTSecret)

	setString("DB_DRIVER", &cfg.Database.Driver)
	setString("DATABASE_URL", &cfg.Database.URL)
	setString("DB_HOST", &cfg.Database.Host)
	setString("DB_PORT", &cfg.Database.Port)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_NAME", &cfg.Database.Name)
	setString("DB_SSLMODE", &cfg.Database.SSLMode)
	setString("SQLITE_PATH", &cfg.Database.SQLitePath)

	setString("REDIS_URL", &cfg.Redis.URL)
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = trimNonEmpty(strings.Split(v, ","))
	}

	if v, ok := os.LookupEnv("ESCROW_COOLING_OFF"); ok {
		if err := parseDuration(v, &cfg.Escrow.CoolingOffPeriod); err != nil {
			return fmt.Errorf("ESCROW_COOLING_OFF: %w", err)
		}
	}
	if v, ok := os.LookupEnv("ESCROW_CHECKOUT_HOUR"); ok {
		hour, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ESCROW_CHECKOUT_HOUR: %w", err)
		}
		cfg.Escrow.CheckoutHour = hour
	}
	setString("ESCROW_TIMEZONE", &cfg.Escrow.Timezone)
	if v, ok := os.LookupEnv("ESCROW_SWEEP_INTERVAL"); ok {
		if err := parseDuration(v, &cfg.Escrow.SweepInterval); err != nil {
			return fmt.Errorf("ESCROW_SWEEP_INTERVAL: %w", err)
		}
	}
	if v, ok := os.LookupEnv("ESCROW_SKIP_OPEN_DISPUTES"); ok {
		skip, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ESCROW_SKIP_OPEN_DISPUTES: %w", err)
		}
		cfg.Escrow.SkipOpenDisputes = skip
	}

	setString("RESEND_API_KEY", &cfg.Email.ResendAPIKey)
	setString("FROM_EMAIL", &cfg.Email.FromEmail)
	setString("CLOUDINARY_CLOUD_NAME", &cfg.Uploads.CloudinaryCloudName)
	setString("CLOUDINARY_API_KEY", &cfg.Uploads.CloudinaryAPIKey)
	setString("CLOUDINARY_API_SECRET", &cfg.Uploads.CloudinaryAPISecret)
	return nil
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func parseDuration(raw string, dst *time.Duration) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
