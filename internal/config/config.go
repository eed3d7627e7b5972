// Package config - загрузка и валидация конфигурации Users API
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version задаётся при сборке через -ldflags.
var Version = "dev"

// Логические имена баз данных.
const (
	DBPrimary  = "primary"
	DBExtOrg   = "extorg"
	DBStudents = "students"
)

// DatabaseConfig описывает одну логическую БД: адрес и параметры пула.
type DatabaseConfig struct {
	// Логическое имя (primary, extorg, students).
	Name string
	// URL подключения postgres://.
	URL string
	// Пользователь; если задан, заменяет пользователя из URL.
	User string
	// Пароль; если задан, заменяет пароль из URL.
	Password string

	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration

	// Autosave оборачивает каждый запрос транзакции в savepoint: ошибка
	// одного запроса не прерывает всю транзакцию.
	Autosave bool
	// Применять встроенные миграции при старте.
	Migrate bool
	// Необязательный прямой URL (session mode) для миграций.
	// Пустое значение - используется URL.
	MigrateURL string
}

// ConnURL возвращает URL с подставленными User/Password.
func (d DatabaseConfig) ConnURL() (string, error) {
	return d.withCredentials(d.URL)
}

// MigrationConnURL возвращает MigrateURL (или URL, если он не задан)
// с подставленными User/Password.
func (d DatabaseConfig) MigrationConnURL() (string, error) {
	if d.MigrateURL == "" {
		return d.ConnURL()
	}
	return d.withCredentials(d.MigrateURL)
}

func (d DatabaseConfig) withCredentials(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: invalid database URL: %w", d.Name, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("%s: unsupported URL scheme %q, expected postgres", d.Name, u.Scheme)
	}
	if d.User != "" || d.Password != "" {
		user := u.User.Username()
		pass, _ := u.User.Password()
		if d.User != "" {
			user = d.User
		}
		if d.Password != "" {
			pass = d.Password
		}
		u.User = url.UserPassword(user, pass)
	}
	return u.String(), nil
}

// RedactedURL возвращает URL без пароля - для логов и меток метрик.
func (d DatabaseConfig) RedactedURL() string {
	raw, err := d.ConnURL()
	if err != nil {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Redacted()
}

// Config - все параметры Users API.
type Config struct {
	// --- Сервер ---

	// HTTP порт
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Разрешённые CORS origins
	CORSAllowedOrigins []string
	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- Базы данных ---

	PrimaryDB  DatabaseConfig
	ExtOrgDB   DatabaseConfig
	StudentsDB DatabaseConfig

	// --- Identity provider ---

	// Базовый URL основного GoTrue
	IDPURL string
	// Публичный (anon) API-ключ основного экземпляра
	IDPAPIKey string
	// Базовый URL студенческого GoTrue
	StudentIDPURL string
	// Публичный API-ключ студенческого экземпляра
	StudentIDPAPIKey string
	// Сервисный токен, выдаваемый студентам при внешнем входе
	StudentServiceToken string
	// Таймаут исходящих запросов к IdP
	IDPTimeout time.Duration
	// Дополнительный CA-сертификат (PEM) для запросов к IdP и JWKS
	IDPCACertPath string

	// --- JWT ---

	// URL JWKS (асимметричные ключи). Приоритетнее JWTSecret.
	JWTJWKSURL string
	// Общий секрет HS256
	JWTSecret string
	// Ожидаемый issuer; пустой - без проверки
	JWTIssuer string
	// Ожидаемый audience; пустой - без проверки
	JWTAudience string
	// Допустимое расхождение часов
	JWTLeeway time.Duration
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Значения роли, считающиеся администраторскими
	AdminRoles []string

	// --- Согласование пользователей ---

	// Создавать локального пользователя при первом чтении профиля
	AutoProvision bool

	// --- Кэш справочника статусов тикетов ---

	StatusCacheSize int
	StatusCacheTTL  time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Валидирует обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("UA_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("UA_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("UA_PORT: value %d out of range 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("UA_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("UA_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("UA_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("UA_LOG_FORMAT: invalid value %q, allowed: json, text", cfg.LogFormat)
	}

	cfg.CORSAllowedOrigins = parseCSV(getEnvDefault("UA_CORS_ALLOWED_ORIGINS", "*"))

	cfg.ShutdownTimeout, err = getEnvDuration("UA_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UA_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Базы данных ---
	// Значения по умолчанию под ограничения прокси-мультиплексора:
	// маленькие пулы, короткий idle, ограниченное время жизни.

	cfg.PrimaryDB, err = loadDatabase(DBPrimary, "UA_PRIMARY_DB", 3, 1)
	if err != nil {
		return nil, err
	}
	cfg.PrimaryDB.Migrate = true

	cfg.ExtOrgDB, err = loadDatabase(DBExtOrg, "UA_EXTORG_DB", 2, 0)
	if err != nil {
		return nil, err
	}
	cfg.ExtOrgDB.Migrate, err = getEnvBool("UA_EXTORG_DB_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("UA_EXTORG_DB_MIGRATE: %w", err)
	}

	// Схемой students владеет другая система, здесь она не мигрируется.
	cfg.StudentsDB, err = loadDatabase(DBStudents, "UA_STUDENTS_DB", 2, 0)
	if err != nil {
		return nil, err
	}

	// --- Identity provider ---

	cfg.IDPURL, err = getEnvRequired("UA_IDP_URL")
	if err != nil {
		return nil, err
	}
	cfg.IDPURL = strings.TrimRight(cfg.IDPURL, "/")

	cfg.IDPAPIKey, err = getEnvRequired("UA_IDP_API_KEY")
	if err != nil {
		return nil, err
	}

	// Студенческий экземпляр по умолчанию совпадает с основным.
	cfg.StudentIDPURL = strings.TrimRight(getEnvDefault("UA_STUDENT_IDP_URL", cfg.IDPURL), "/")
	cfg.StudentIDPAPIKey = getEnvDefault("UA_STUDENT_IDP_API_KEY", cfg.IDPAPIKey)

	cfg.StudentServiceToken, err = getEnvRequired("UA_STUDENT_SERVICE_TOKEN")
	if err != nil {
		return nil, err
	}

	cfg.IDPTimeout, err = getEnvDuration("UA_IDP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UA_IDP_TIMEOUT: %w", err)
	}
	cfg.IDPCACertPath = os.Getenv("UA_IDP_CA_CERT_PATH")

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("UA_JWT_JWKS_URL", "")
	cfg.JWTSecret = getEnvDefault("UA_JWT_SECRET", "")
	if cfg.JWTJWKSURL == "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("UA_JWT_JWKS_URL or UA_JWT_SECRET: one of them must be set")
	}

	cfg.JWTIssuer = getEnvDefault("UA_JWT_ISSUER", cfg.IDPURL+"/auth/v1")
	cfg.JWTAudience = getEnvDefault("UA_JWT_AUDIENCE", "")

	cfg.JWTLeeway, err = getEnvDuration("UA_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UA_JWT_LEEWAY: %w", err)
	}

	cfg.JWKSRefreshInterval, err = getEnvDuration("UA_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("UA_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.AdminRoles = parseCSV(strings.ToLower(getEnvDefault("UA_ADMIN_ROLES", "admin")))
	if len(cfg.AdminRoles) == 0 {
		return nil, fmt.Errorf("UA_ADMIN_ROLES: at least one role is required")
	}

	// --- Согласование пользователей ---

	cfg.AutoProvision, err = getEnvBool("UA_AUTO_PROVISION", true)
	if err != nil {
		return nil, fmt.Errorf("UA_AUTO_PROVISION: %w", err)
	}

	// --- Кэш статусов ---

	cfg.StatusCacheSize, err = getEnvInt("UA_STATUS_CACHE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("UA_STATUS_CACHE_SIZE: %w", err)
	}
	if cfg.StatusCacheSize < 1 {
		return nil, fmt.Errorf("UA_STATUS_CACHE_SIZE: value %d must be positive", cfg.StatusCacheSize)
	}

	cfg.StatusCacheTTL, err = getEnvDuration("UA_STATUS_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("UA_STATUS_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("UA_DEPHEALTH_GROUP", "planifika")

	cfg.DephealthCheckInterval, err = getEnvDuration("UA_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UA_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// loadDatabase читает переменные <prefix>_* одной логической БД.
func loadDatabase(name, prefix string, defaultMaxConns, defaultMinConns int) (DatabaseConfig, error) {
	db := DatabaseConfig{Name: name}
	var err error

	db.URL, err = getEnvRequired(prefix + "_URL")
	if err != nil {
		return db, err
	}
	db.User = getEnvDefault(prefix+"_USER", "")
	db.Password = getEnvDefault(prefix+"_PASSWORD", "")
	if _, err := db.ConnURL(); err != nil {
		return db, fmt.Errorf("%s_URL: %w", prefix, err)
	}
	db.MigrateURL = getEnvDefault(prefix+"_MIGRATE_URL", "")
	if _, err := db.MigrationConnURL(); err != nil {
		return db, fmt.Errorf("%s_MIGRATE_URL: %w", prefix, err)
	}

	maxConns, err := getEnvInt(prefix+"_MAX_CONNS", defaultMaxConns)
	if err != nil {
		return db, fmt.Errorf("%s_MAX_CONNS: %w", prefix, err)
	}
	minConns, err := getEnvInt(prefix+"_MIN_CONNS", defaultMinConns)
	if err != nil {
		return db, fmt.Errorf("%s_MIN_CONNS: %w", prefix, err)
	}
	if maxConns < 1 || minConns < 0 || minConns > maxConns {
		return db, fmt.Errorf("%s: invalid pool size min=%d max=%d", prefix, minConns, maxConns)
	}
	db.MaxConns = int32(maxConns)
	db.MinConns = int32(minConns)

	db.MaxConnIdleTime, err = getEnvDuration(prefix+"_MAX_CONN_IDLE_TIME", 60*time.Second)
	if err != nil {
		return db, fmt.Errorf("%s_MAX_CONN_IDLE_TIME: %w", prefix, err)
	}
	db.MaxConnLifetime, err = getEnvDuration(prefix+"_MAX_CONN_LIFETIME", 5*time.Minute)
	if err != nil {
		return db, fmt.Errorf("%s_MAX_CONN_LIFETIME: %w", prefix, err)
	}
	db.ConnectTimeout, err = getEnvDuration(prefix+"_CONNECT_TIMEOUT", 20*time.Second)
	if err != nil {
		return db, fmt.Errorf("%s_CONNECT_TIMEOUT: %w", prefix, err)
	}

	db.Autosave, err = getEnvBool(prefix+"_AUTOSAVE", true)
	if err != nil {
		return db, fmt.Errorf("%s_AUTOSAVE: %w", prefix, err)
	}

	return db, nil
}

// SetupLogger настраивает глобальный slog логгер.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: required environment variable is not set", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %q", val)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid boolean: %q", val)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q (use Go format: 30s, 1h, 15m)", val)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level %q, allowed: debug, info, warn, error", level)
	}
}

// parseCSV разбивает строку по запятым, обрезает пробелы и отбрасывает пустые элементы.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
