// Точка входа Planifika Users API.
// Загружает конфигурацию, мигрирует и подключает три БД, создаёт клиентов
// identity provider, сервисы и API-обработчики, запускает мониторинг
// зависимостей и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/Drim-Soft/planifika-users-api/internal/api/handlers"
	"github.com/Drim-Soft/planifika-users-api/internal/api/middleware"
	"github.com/Drim-Soft/planifika-users-api/internal/api/openapi"
	"github.com/Drim-Soft/planifika-users-api/internal/config"
	"github.com/Drim-Soft/planifika-users-api/internal/database"
	"github.com/Drim-Soft/planifika-users-api/internal/gotrue"
	"github.com/Drim-Soft/planifika-users-api/internal/repository"
	"github.com/Drim-Soft/planifika-users-api/internal/server"
	"github.com/Drim-Soft/planifika-users-api/internal/service"
)

func main() {
	// 1. Локальный .env для разработки; отсутствие файла - не ошибка.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Ошибка чтения .env", slog.String("error", err.Error()))
	}

	// 2. Конфигурация из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Логирование
	logger := config.SetupLogger(cfg)
	logger.Info("Users API запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Bool("auto_provision", cfg.AutoProvision),
	)

	// 4. Миграции (students не мигрируется)
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg.PrimaryDB, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.ExtOrgDB.Migrate {
		if err := database.Migrate(cfg.ExtOrgDB, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 5. Пулы подключений
	ctx := context.Background()
	primaryPool := mustConnect(ctx, cfg.PrimaryDB, logger)
	defer primaryPool.Close()
	extOrgPool := mustConnect(ctx, cfg.ExtOrgDB, logger)
	defer extOrgPool.Close()
	studentsPool := mustConnect(ctx, cfg.StudentsDB, logger)
	defer studentsPool.Close()

	// 5.1 Адаптеры pgxpool → *sql.DB для topologymetrics: проверки идут
	// через те же пулы и замечают их исчерпание.
	primaryDB := stdlib.OpenDBFromPool(primaryPool)
	defer closeDB(primaryDB)
	extOrgDB := stdlib.OpenDBFromPool(extOrgPool)
	defer closeDB(extOrgDB)
	studentsDB := stdlib.OpenDBFromPool(studentsPool)
	defer closeDB(studentsDB)

	// 6. HTTP-клиент для identity providers и JWKS
	httpClient := &http.Client{Timeout: cfg.IDPTimeout}
	if cfg.IDPCACertPath != "" {
		httpClient, err = buildHTTPClientWithCA(cfg.IDPCACertPath, cfg.IDPTimeout)
		if err != nil {
			logger.Error("Ошибка загрузки CA-сертификата",
				slog.String("path", cfg.IDPCACertPath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.IDPCACertPath))
	}

	// 7. Клиенты GoTrue
	idp := gotrue.New("primary", cfg.IDPURL, cfg.IDPAPIKey, httpClient, logger)
	studentIDP := gotrue.New("students", cfg.StudentIDPURL, cfg.StudentIDPAPIKey, httpClient, logger)
	logger.Info("Клиенты identity provider созданы",
		slog.String("url", cfg.IDPURL),
		slog.String("student_url", cfg.StudentIDPURL),
	)

	// 8. Репозитории
	userRepo := repository.NewUserRepository(primaryPool,
		repository.NewTxRunner(primaryPool, cfg.PrimaryDB.Autosave))
	ticketRepo := repository.NewTicketRepository(extOrgPool,
		repository.NewTxRunner(extOrgPool, cfg.ExtOrgDB.Autosave))
	ticketStatusRepo := repository.NewTicketStatusRepository(extOrgPool)
	staffRepo := repository.NewStaffRepository(extOrgPool)
	studentRepo := repository.NewStudentRepository(studentsPool)

	// 9. Сервисы
	statusCatalog := service.NewStatusCatalog(ticketStatusRepo, cfg.StatusCacheSize, cfg.StatusCacheTTL)
	identitySvc := service.NewIdentityService(
		idp, studentIDP,
		userRepo, studentRepo,
		service.IdentityOptions{
			AutoProvision:       cfg.AutoProvision,
			StudentServiceToken: cfg.StudentServiceToken,
		},
		logger,
	)
	userSvc := service.NewUserService(userRepo, logger)
	ticketSvc := service.NewTicketService(ticketRepo, statusCatalog, staffRepo, logger)

	// 10. Проверки готовности; identity providers только понижают статус до degraded.
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(config.DBPrimary, primaryPool),
		database.NewReadinessChecker(config.DBExtOrg, extOrgPool),
		database.NewReadinessChecker(config.DBStudents, studentsPool),
		handlers.NonCritical(idp),
		handlers.NonCritical(studentIDP),
	)

	// 11. API-обработчик
	apiHandler := handlers.NewAPIHandler(healthHandler, identitySvc, userSvc, ticketSvc, logger)

	// 12. JWT middleware: JWKS, если задан, иначе общий секрет
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTJWKSURL != "" {
		jwtAuth, err = middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.JWTIssuer,
			cfg.JWTAudience,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			httpClient,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		jwtAuth = middleware.NewJWTAuthWithSecret([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTLeeway, logger)
		logger.Info("JWT middleware инициализирован с общим секретом",
			slog.String("issuer", cfg.JWTIssuer),
		)
	}

	// 13. Валидация запросов по OpenAPI
	validator, err := middleware.NewRequestValidator(openapi.Document, logger)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-документа", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. topologymetrics: primary БД критична
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"users-api",
		cfg.DephealthGroup,
		service.Dependencies{
			Postgres: []service.PostgresDependency{
				{Name: config.DBPrimary, DB: primaryDB, URL: cfg.PrimaryDB.RedactedURL(), Critical: true},
				{Name: config.DBExtOrg, DB: extOrgDB, URL: cfg.ExtOrgDB.RedactedURL()},
				{Name: config.DBStudents, DB: studentsDB, URL: cfg.StudentsDB.RedactedURL()},
			},
			HTTP: []service.HTTPDependency{
				{Name: "primary", URL: cfg.IDPURL},
				{Name: "students", URL: cfg.StudentIDPURL},
			},
		},
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, работа без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 15. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth, validator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 16. Фоновые задачи
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Users API остановлен")
}

// mustConnect открывает пул или завершает процесс.
func mustConnect(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) *pgxpool.Pool {
	pool, err := database.Connect(ctx, db, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL",
			slog.String("database", db.Name),
			slog.String("url", db.RedactedURL()),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	return pool
}

func closeDB(db *sql.DB) {
	_ = db.Close()
}

// buildHTTPClientWithCA создаёт HTTP-клиент, доверяющий также
// CA-сертификату из caCertPath.
func buildHTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("no certificates found in " + caCertPath)
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}
