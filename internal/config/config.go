package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingConfig is returned when required environment variables are absent.
var ErrMissingConfig = errors.New("missing required environment variables")

type ServerConfig struct {
	Port string
	Host string
}

func (c ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

type RabbitMQConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
	// ConnectionName is reported to the broker so operators can tell the processes apart.
	ConnectionName string
	PrefetchCount  int
}

type WebhookConfig struct {
	URL         string
	Secret      string
	BearerToken string
	Timeout     time.Duration
	Source      string
	Environment string
}

type CacheConfig struct {
	URL string
	TTL time.Duration
}

type TelegramConfig struct {
	APIURL   string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// ServicioConfig configures the service-offering producer.
type ServicioConfig struct {
	LogLevel      string
	Server        ServerConfig
	Database      DatabaseConfig
	RabbitMQ      RabbitMQConfig
	Webhook       WebhookConfig
	Cache         CacheConfig
	ServicioQueue string
	EventsQueue   string
}

// ComentarioConfig configures the comment producer.
type ComentarioConfig struct {
	LogLevel          string
	Server            ServerConfig
	Database          DatabaseConfig
	RabbitMQ          RabbitMQConfig
	Webhook           WebhookConfig
	Cache             CacheConfig
	ServicioQueue     string
	ValidationTimeout time.Duration
}

// ReceiverConfig configures the webhook receiver and the notification forwarder.
type ReceiverConfig struct {
	LogLevel           string
	Server             ServerConfig
	Database           DatabaseConfig
	RabbitMQ           RabbitMQConfig
	WebhookSecret      string
	NotificationsQueue string
	TemplatesFile      string
	Telegram           TelegramConfig
}

type loader struct {
	missing []string
	invalid []string
}

func (l *loader) required(key string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		l.missing = append(l.missing, key)
	}
	return val
}

func (l *loader) optional(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		l.invalid = append(l.invalid, key)
		return def
	}
	return d
}

func (l *loader) integer(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		l.invalid = append(l.invalid, key)
		return def
	}
	return n
}

func (l *loader) err() error {
	if len(l.missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingConfig, l.missing)
	}
	if len(l.invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", l.invalid)
	}
	return nil
}

func (l *loader) server() ServerConfig {
	return ServerConfig{
		Port: l.required("SERVER_PORT"),
		Host: l.optional("SERVER_HOST", "0.0.0.0"),
	}
}

func (l *loader) database(defaultMigrations string) DatabaseConfig {
	return DatabaseConfig{
		Host:           l.required("DB_HOST"),
		Port:           l.required("DB_PORT"),
		User:           l.required("DB_USER"),
		Password:       l.required("DB_PASSWORD"),
		DBName:         l.required("DB_NAME"),
		SSLMode:        l.optional("DB_SSLMODE", "disable"),
		MigrationsPath: l.optional("MIGRATIONS_PATH", defaultMigrations),
	}
}

func (l *loader) rabbitMQ(connectionName string) RabbitMQConfig {
	cfg := RabbitMQConfig{
		URL:            l.optional("RABBITMQ_URL", ""),
		VHost:          l.optional("RABBITMQ_VHOST", ""),
		ConnectionName: connectionName,
		PrefetchCount:  l.integer("RABBITMQ_PREFETCH", 10),
	}
	// Individual parts are only required when no URL is given
	if cfg.URL == "" {
		cfg.Host = l.required("RABBITMQ_HOST")
		cfg.Port = l.required("RABBITMQ_PORT")
		cfg.User = l.required("RABBITMQ_USER")
		cfg.Password = l.required("RABBITMQ_PASSWORD")
	}
	return cfg
}

func (l *loader) webhook(source string) WebhookConfig {
	return WebhookConfig{
		URL:         l.required("WEBHOOK_URL"),
		Secret:      l.required("WEBHOOK_SECRET"),
		BearerToken: l.optional("WEBHOOK_BEARER_TOKEN", ""),
		Timeout:     l.duration("WEBHOOK_TIMEOUT", 10*time.Second),
		Source:      source,
		Environment: l.optional("ENVIRONMENT", "local"),
	}
}

func (l *loader) cache() CacheConfig {
	return CacheConfig{
		URL: l.optional("CACHE_URL", ""),
		TTL: l.duration("CACHE_TTL", 24*time.Hour),
	}
}

// LoadServicio reads the servicio producer configuration from the environment.
func LoadServicio() (*ServicioConfig, error) {
	loadDotEnv()
	l := &loader{}
	cfg := &ServicioConfig{
		LogLevel:      l.optional("LOG_LEVEL", "info"),
		Server:        l.server(),
		Database:      l.database("db/migrations/servicio"),
		RabbitMQ:      l.rabbitMQ("servicio-ms"),
		Webhook:       l.webhook("servicio-ms"),
		Cache:         l.cache(),
		ServicioQueue: l.required("RABBITMQ_QUEUE_SERVICIO"),
		EventsQueue:   l.optional("RABBITMQ_EVENTS_QUEUE", "servicio_eventos"),
	}
	if err := l.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadComentario reads the comentario producer configuration from the environment.
func LoadComentario() (*ComentarioConfig, error) {
	loadDotEnv()
	l := &loader{}
	cfg := &ComentarioConfig{
		LogLevel:          l.optional("LOG_LEVEL", "info"),
		Server:            l.server(),
		Database:          l.database("db/migrations/comentario"),
		RabbitMQ:          l.rabbitMQ("comentario-ms"),
		Webhook:           l.webhook("comentario-ms"),
		Cache:             l.cache(),
		ServicioQueue:     l.required("RABBITMQ_QUEUE_SERVICIO"),
		ValidationTimeout: l.duration("VALIDATION_TIMEOUT", 5*time.Second),
	}
	if err := l.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadReceiver reads the receiver configuration from the environment.
func LoadReceiver() (*ReceiverConfig, error) {
	loadDotEnv()
	l := &loader{}
	cfg := &ReceiverConfig{
		LogLevel:           l.optional("LOG_LEVEL", "info"),
		Server:             l.server(),
		Database:           l.database("db/migrations/receiver"),
		RabbitMQ:           l.rabbitMQ("webhook-receiver"),
		WebhookSecret:      l.required("WEBHOOK_SECRET"),
		NotificationsQueue: l.optional("RABBITMQ_QUEUE_NOTIFICACIONES", "webhook_aceptados"),
		TemplatesFile:      l.optional("NOTIFIER_TEMPLATES_FILE", ""),
		Telegram: TelegramConfig{
			APIURL:   l.optional("TELEGRAM_API_URL", "https://api.telegram.org"),
			BotToken: l.required("TELEGRAM_BOT_TOKEN"),
			ChatID:   l.required("TELEGRAM_CHAT_ID"),
			Timeout:  l.duration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
	}
	if err := l.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv seeds the environment from a .env file when one exists.
// Variables already present in the environment win.
func loadDotEnv() {
	_ = godotenv.Load(".env")
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrationURL returns the URL form expected by golang-migrate.
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		c.User, c.Password, c.Host, c.Port, strings.TrimPrefix(c.VHost, "/"))
}
