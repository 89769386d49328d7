// Package config загружает настройки процесса и описание flows.
//
// Настройки читаются из переменных окружения; файл .env в рабочей
// директории, если он есть, загружается до чтения. Описание flows
// читается из YAML или JSON файла и проверяется структурно.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Значения по умолчанию.
const (
	DefaultPort           = 31000
	DefaultStoreDriver    = "memory"
	DefaultRemoteTimeout  = 30 * time.Second
	DefaultRequestTimeout = 60 * time.Second
	DefaultServiceName    = "conduit"
	DefaultMaxBodyBytes   = 10 * 1024 * 1024
)

// ErrInvalidConfig — невалидное значение переменной окружения.
var ErrInvalidConfig = errors.New("invalid config")

// Config — настройки процесса.
type Config struct {
	// DefinitionPath — путь к файлу описания flows (FLOW_DEFINITION).
	DefinitionPath string

	// Port — порт HTTP сервера (FLOW_PORT).
	Port int `validate:"min=1,max=65535"`

	// StoreDriver — хранилище состояний (STORE_DRIVER).
	StoreDriver string `validate:"oneof=memory postgres badger redis"`
	DatabaseURL string
	BadgerPath  string
	RedisURL    string

	// RabbitMQURL — брокер для событий взаимодействий (RABBITMQ_URL).
	// Пусто — события не публикуются.
	RabbitMQURL string

	// GatewayURL — префикс относительных адресов удалённых вызовов (GATEWAY_URL).
	GatewayURL string `validate:"omitempty,url"`

	// TrackerURL, TrackerToken — трекер взаимодействий.
	// Пустой TrackerURL — HTTP трекер не используется.
	TrackerURL   string `validate:"omitempty,url"`
	TrackerToken string

	// AppName — приложение по умолчанию для flows без app (APP_NAME).
	AppName string

	NotifyRetries int     `validate:"min=0"`
	NotifyRate    float64 `validate:"min=0"`

	RemoteTimeout  time.Duration `validate:"min=0"`
	RequestTimeout time.Duration `validate:"min=0"`

	// MaxBodyBytes — предел тела входящего запроса и ответа удалённого вызова (MAX_BODY_BYTES).
	MaxBodyBytes int64 `validate:"min=0"`

	OTelEndpoint string
	OTelService  string

	// StrictMasking — отсутствие функции маскирования для формата стадии
	// считается ошибкой загрузки, а не предупреждением.
	StrictMasking bool
}

// Load читает настройки из окружения.
func Load() (*Config, error) {
	// .env необязателен.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	r := &envReader{}
	cfg := &Config{
		DefinitionPath: os.Getenv("FLOW_DEFINITION"),
		Port:           r.int("FLOW_PORT", DefaultPort),
		StoreDriver:    r.str("STORE_DRIVER", DefaultStoreDriver),
		DatabaseURL:    os.Getenv("DB_URL"),
		BadgerPath:     os.Getenv("BADGER_PATH"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		GatewayURL:     os.Getenv("GATEWAY_URL"),
		TrackerURL:     os.Getenv("TRACKER_URL"),
		TrackerToken:   os.Getenv("TRACKER_TOKEN"),
		AppName:        os.Getenv("APP_NAME"),
		NotifyRetries:  r.int("NOTIFY_RETRIES", 0),
		NotifyRate:     r.float("NOTIFY_RATE", 0),
		RemoteTimeout:  r.duration("REMOTE_TIMEOUT", DefaultRemoteTimeout),
		RequestTimeout: r.duration("REQUEST_TIMEOUT", DefaultRequestTimeout),
		MaxBodyBytes:   int64(r.int("MAX_BODY_BYTES", DefaultMaxBodyBytes)),
		OTelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OTelService:    r.str("OTEL_SERVICE", DefaultServiceName),
		StrictMasking:  r.bool("STRICT_MASKING", false),
	}
	if r.err != nil {
		return nil, r.err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, describe(err))
	}

	return cfg, nil
}

// Addr возвращает адрес HTTP сервера.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// envReader читает типизированные значения и запоминает первую ошибку.
type envReader struct {
	err error
}

func (r *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

// duration принимает формат time.ParseDuration ("30s") или целое число секунд.
func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *envReader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, value, err)
	}
}

// validate — общий экземпляр валидатора. Безопасен для конкурентного использования.
var validate = validator.New()

// describe переводит ошибки валидатора в одну строку.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		part := fe.Namespace() + ": " + fe.Tag()
		if fe.Param() != "" {
			part += "=" + fe.Param()
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}
