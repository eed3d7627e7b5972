// Package database - пулы PostgreSQL (pgxpool), встроенные миграции
// (golang-migrate) и проверка готовности.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Drim-Soft/planifika-users-api/internal/config"
)

//go:embed migrations/primary/*.sql migrations/extorg/*.sql
var migrationsFS embed.FS

// ErrNoMigrations возвращается, если для БД нет встроенных миграций.
var ErrNoMigrations = errors.New("no migrations for database")

// PoolConfig строит конфигурацию pgxpool из параметров БД.
// Запросы идут по simple protocol: без prepared statements и без кэша
// запросов - этого требует прокси с transaction pooling перед БД.
func PoolConfig(db config.DatabaseConfig) (*pgxpool.Config, error) {
	dsn, err := db.ConnURL()
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: parse DSN: %w", db.Name, err)
	}

	poolCfg.MaxConns = db.MaxConns
	poolCfg.MinConns = db.MinConns
	poolCfg.MaxConnIdleTime = db.MaxConnIdleTime
	poolCfg.MaxConnLifetime = db.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = db.ConnectTimeout
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	return poolCfg, nil
}

// Connect создаёт пул одной логической БД и проверяет подключение.
func Connect(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(db)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: create pool: %w", db.Name, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: connect to PostgreSQL: %w", db.Name, err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("database", db.Name),
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.String("db_name", poolCfg.ConnConfig.Database),
		slog.Int("max_conns", int(db.MaxConns)),
		slog.Bool("autosave", db.Autosave),
	)

	return pool, nil
}

// Migrate применяет встроенные миграции указанной БД.
// Миграции есть только у primary и extorg.
func Migrate(db config.DatabaseConfig, logger *slog.Logger) error {
	dir := "migrations/" + db.Name
	if db.Name != config.DBPrimary && db.Name != config.DBExtOrg {
		return fmt.Errorf("%w: %s", ErrNoMigrations, db.Name)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("%s: create migration source: %w", db.Name, err)
	}

	dbURL, err := migrateURL(db)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("%s: init migrations: %w", db.Name, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: apply migrations: %w", db.Name, err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.String("database", db.Name),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// migrateURL переводит URL миграций на схему pgx5://, которую регистрирует
// драйвер pgx golang-migrate. У каждой логической БД своя таблица версий,
// чтобы наборы миграций могли делить один сервер при разработке.
// Simple protocol включается как в PoolConfig. Advisory lock golang-migrate
// требует session-mode подключения - для этого есть MigrateURL.
func migrateURL(db config.DatabaseConfig) (string, error) {
	raw, err := db.MigrationConnURL()
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: parse URL: %w", db.Name, err)
	}
	u.Scheme = "pgx5"
	q := u.Query()
	q.Set("default_query_exec_mode", "simple_protocol")
	q.Set("x-migrations-table", "schema_migrations_"+db.Name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ReadinessChecker проверяет один пул для health endpoint.
// Реализует handlers.ReadinessChecker.
type ReadinessChecker struct {
	name string
	pool *pgxpool.Pool
}

// NewReadinessChecker создаёт проверку готовности для пула.
func NewReadinessChecker(name string, pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{name: name, pool: pool}
}

// Name возвращает имя проверки.
func (c *ReadinessChecker) Name() string {
	return "postgres_" + c.name
}

// CheckReady пингует пул. Возвращает "ok" или "fail" и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL %s unavailable: %v", c.name, err)
	}
	return "ok", "connection active"
}
