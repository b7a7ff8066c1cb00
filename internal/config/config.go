package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Env           string `mapstructure:"env"`
		LogLevel      string `mapstructure:"logLevel"`
		PublicBaseURL string `mapstructure:"publicBaseURL"`
	} `mapstructure:"app"`
	Server struct {
		Port            string        `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"readTimeout"`
		WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
		CORSOrigins     []string      `mapstructure:"corsOrigins"`
	} `mapstructure:"server"`
	Database struct {
		DSN           string `mapstructure:"dsn"`
		MigrateOnBoot bool   `mapstructure:"migrateOnBoot"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		CacheTTL time.Duration `mapstructure:"cacheTTL"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Telegram struct {
		APIEndpoint string        `mapstructure:"apiEndpoint"`
		Timeout     time.Duration `mapstructure:"timeout"`
		RateLimit   float64       `mapstructure:"rateLimit"`
	} `mapstructure:"telegram"`
	Webhook struct {
		SigningKey string `mapstructure:"signingKey"`
	} `mapstructure:"webhook"`
	Storage struct {
		Bucket          string        `mapstructure:"bucket"`
		Region          string        `mapstructure:"region"`
		Endpoint        string        `mapstructure:"endpoint"`
		AccessKeyID     string        `mapstructure:"accessKeyID"`
		SecretAccessKey string        `mapstructure:"secretAccessKey"`
		UsePathStyle    bool          `mapstructure:"usePathStyle"`
		PresignTTL      time.Duration `mapstructure:"presignTTL"`
		Timeout         time.Duration `mapstructure:"timeout"`
	} `mapstructure:"storage"`
	Stripe struct {
		APIKey        string        `mapstructure:"apiKey"`
		WebhookSecret string        `mapstructure:"webhookSecret"`
		SuccessURL    string        `mapstructure:"successURL"`
		CancelURL     string        `mapstructure:"cancelURL"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"stripe"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
	Notify struct {
		MaxElapsed time.Duration `mapstructure:"maxElapsed"`
	} `mapstructure:"notify"`
	Intake struct {
		DownloadTimeout time.Duration `mapstructure:"downloadTimeout"`
		MaxBytes        int64         `mapstructure:"maxBytes"`
	} `mapstructure:"intake"`
	Sweeper struct {
		ExpirySpec   string `mapstructure:"expirySpec"`
		ReminderSpec string `mapstructure:"reminderSpec"`
		BatchSize    int    `mapstructure:"batchSize"`
	} `mapstructure:"sweeper"`
}

// IsProduction true для APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	var missing []string
	if c.Database.DSN == "" {
		missing = append(missing, "database.dsn")
	}
	if c.Webhook.SigningKey == "" {
		missing = append(missing, "webhook.signingKey")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwtSecret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}
	if c.Storage.PresignTTL > 7*24*time.Hour {
		return errors.New("storage.presignTTL must not exceed 7 days")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("server.shutdownTimeout", 30*time.Second)
	v.SetDefault("database.migrateOnBoot", true)
	v.SetDefault("redis.cacheTTL", 15*time.Minute)
	v.SetDefault("kafka.topic", "subscriber_state_changed")
	v.SetDefault("telegram.apiEndpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("telegram.timeout", 10*time.Second)
	v.SetDefault("telegram.rateLimit", 25.0)
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.presignTTL", 7*24*time.Hour)
	v.SetDefault("storage.timeout", 10*time.Second)
	v.SetDefault("stripe.timeout", 15*time.Second)
	v.SetDefault("notify.maxElapsed", 5*time.Second)
	v.SetDefault("intake.downloadTimeout", 15*time.Second)
	v.SetDefault("intake.maxBytes", int64(10<<20))
	v.SetDefault("sweeper.expirySpec", "@every 10m")
	v.SetDefault("sweeper.reminderSpec", "0 9 * * *")
	v.SetDefault("sweeper.batchSize", 200)
}

// keys, которые viper должен читать из окружения даже без config.yaml
var envKeys = []string{
	"app.env", "app.logLevel", "app.publicBaseURL",
	"server.port", "server.corsOrigins",
	"database.dsn", "database.migrateOnBoot",
	"redis.addr", "redis.password", "redis.db",
	"kafka.brokers", "kafka.topic",
	"telegram.apiEndpoint", "telegram.timeout", "telegram.rateLimit",
	"webhook.signingKey",
	"storage.bucket", "storage.region", "storage.endpoint", "storage.accessKeyID",
	"storage.secretAccessKey", "storage.usePathStyle", "storage.presignTTL",
	"stripe.apiKey", "stripe.webhookSecret", "stripe.successURL", "stripe.cancelURL",
	"auth.jwtSecret",
	"sweeper.expirySpec", "sweeper.reminderSpec",
}

// LoadConfig загружает конфигурацию из .env, config.yaml и переменных окружения.
// Переменные окружения именуются как DATABASE_DSN, STORAGE_ACCESSKEYID и т.п.
func LoadConfig(envPath string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" && envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
