// status_cache.go - LRU-кэш справочника статусов тикетов с TTL
// на hashicorp/golang-lru/v2/expirable.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/repository"
)

// TicketStatusStore - чтение справочника статусов тикетов.
type TicketStatusStore interface {
	GetByID(ctx context.Context, id int) (*model.TicketStatus, error)
	List(ctx context.Context) ([]*model.TicketStatus, error)
}

// StatusCatalog находит статусы тикетов по ID через кэш в памяти.
// Справочник меняется редко; записи истекают через ttl, чтобы
// переименования становились видны.
type StatusCatalog struct {
	store TicketStatusStore
	cache *expirable.LRU[int, *model.TicketStatus]
}

// NewStatusCatalog создаёт справочник.
// maxSize - максимум статусов в кэше, ttl - время их жизни.
func NewStatusCatalog(store TicketStatusStore, maxSize int, ttl time.Duration) *StatusCatalog {
	return &StatusCatalog{
		store: store,
		cache: expirable.NewLRU[int, *model.TicketStatus](maxSize, nil, ttl),
	}
}

// Get возвращает статус по ID. Для неизвестного ID - ErrNotFound.
func (c *StatusCatalog) Get(ctx context.Context, id int) (*model.TicketStatus, error) {
	if s, ok := c.cache.Get(id); ok {
		statusCacheHitsTotal.Inc()
		return s, nil
	}
	statusCacheMissesTotal.Inc()

	s, err := c.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: ticket status %d", ErrNotFound, id)
		}
		return nil, err
	}
	c.cache.Add(id, s)
	return s, nil
}

// Name возвращает имя статуса или "", если его не удалось найти.
func (c *StatusCatalog) Name(ctx context.Context, id int) string {
	s, err := c.Get(ctx, id)
	if err != nil {
		return ""
	}
	return s.Name
}

// List читает весь справочник из хранилища и обновляет кэш.
func (c *StatusCatalog) List(ctx context.Context) ([]*model.TicketStatus, error) {
	statuses, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		c.cache.Add(s.ID, s)
	}
	return statuses, nil
}

// Remember кэширует статус, полученный иначе (например, при создании тикета).
func (c *StatusCatalog) Remember(s *model.TicketStatus) {
	c.cache.Add(s.ID, s)
}

// size возвращает число статусов в кэше.
func (c *StatusCatalog) size() int {
	return c.cache.Len()
}
