// dephealth.go - интеграция topologymetrics SDK для мониторинга
// зависимостей Users API:
//   - три пула PostgreSQL через *sql.DB-адаптеры существующих pgxpool
//     (primary критична, остальные нет)
//   - identity providers по HTTP на /auth/v1/health
//
// SDK экспортирует метрики app_dependency_* на /metrics.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// IDPHealthPath - health endpoint GoTrue.
const IDPHealthPath = "/auth/v1/health"

// PostgresDependency - отслеживаемый пул БД.
type PostgresDependency struct {
	Name     string
	DB       *sql.DB
	URL      string // только для меток, не для подключения
	Critical bool
}

// HTTPDependency - отслеживаемый identity provider.
type HTTPDependency struct {
	Name string
	URL  string
}

// Dependencies - всё, что проверяет DephealthService.
type Dependencies struct {
	Postgres []PostgresDependency
	HTTP     []HTTPDependency
}

// DephealthService - мониторинг зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	names  []string
	logger *slog.Logger
}

// NewDephealthService создаёт мониторинг с метриками в глобальном
// Prometheus registry.
func NewDephealthService(
	serviceID string,
	group string,
	deps Dependencies,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, deps, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт мониторинг с отдельным
// registerer. Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	deps Dependencies,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, deps, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	deps Dependencies,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{dephealth.WithLogger(logger)}
	names := make([]string, 0, len(deps.Postgres)+len(deps.HTTP))

	// pgcheck.New с AddDependency вместо contrib/sqldb: без драйвера MySQL
	// в сборке.
	for _, pg := range deps.Postgres {
		name := DependencyName("postgres", pg.Name)
		names = append(names, name)
		opts = append(opts, dephealth.AddDependency(name, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(pg.DB)),
			dephealth.FromURL(pg.URL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(pg.Critical),
		))
	}

	// Провайдеры не критичны: локальные запросы обслуживаются и без них.
	for _, h := range deps.HTTP {
		name := DependencyName("idp", h.Name)
		names = append(names, name)
		opts = append(opts, dephealth.HTTP(name,
			dephealth.FromURL(h.URL),
			dephealth.WithHTTPHealthPath(IDPHealthPath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(false),
		))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		names:  names,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодические проверки.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен",
		slog.String("dependencies", strings.Join(ds.names, ",")),
	)
	return ds.dh.Start(ctx)
}

// Stop останавливает периодические проверки.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// health возвращает текущее состояние по ключу "dependency:host:port".
func (ds *DephealthService) health() map[string]bool {
	return ds.dh.Health()
}

// DependencyName строит имя зависимости, допустимое для SDK: строчные
// буквы, цифры и одиночные дефисы, начинается с буквы.
func DependencyName(kind, name string) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('-')

	dash := true
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}

	out := strings.TrimRight(b.String(), "-")
	if len(out) > 63 {
		out = strings.TrimRight(out[:63], "-")
	}
	return out
}
