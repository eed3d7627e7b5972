package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Источники создания пользователей.
const (
	sourceSignUp   = "signup"
	sourceProfile  = "profile"
	sourceExternal = "external"
)

var (
	usersProvisionedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ua_users_provisioned_total",
			Help: "Созданные локальные пользователи по источнику",
		},
		[]string{"source"},
	)

	usersRepairedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ua_users_repaired_total",
		Help: "Локальные пользователи, повторно активированные как студенты при внешнем входе",
	})

	orphanProviderAccountsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ua_orphan_provider_accounts_total",
		Help: "Учётные записи у провайдера, созданные при регистрации без сохранённого локального пользователя",
	})

	statusCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ua_status_cache_hits_total",
		Help: "Попадания в кэш справочника статусов тикетов",
	})

	statusCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ua_status_cache_misses_total",
		Help: "Промахи кэша справочника статусов тикетов",
	})
)
