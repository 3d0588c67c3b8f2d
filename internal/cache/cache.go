// Package cache реализует сквозной кеш дневных рейтингов с явной границей
// устаревания. Кеш обслуживает только читающие запросы: расчёт призёров
// всегда строит рейтинг заново по хранилищу.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

// Loader загружает рейтинг дня при промахе кеша.
type Loader func(ctx context.Context, dayID int64) ([]model.RankingEntry, error)

type cachedRanking struct {
	entries  []model.RankingEntry
	loadedAt time.Time
}

// RankingCache — сквозной кеш рейтингов по идентификатору дня.
type RankingCache struct {
	mu    sync.Mutex
	byDay map[int64]cachedRanking
	ttl   time.Duration
	load  Loader
	now   func() time.Time
}

// NewRankingCache создаёт кеш с указанной границей устаревания.
func NewRankingCache(load Loader, ttl time.Duration) *RankingCache {
	return &RankingCache{
		byDay: make(map[int64]cachedRanking),
		ttl:   ttl,
		load:  load,
		now:   time.Now,
	}
}

// Get возвращает рейтинг дня, перезагружая его при устаревании записи.
func (c *RankingCache) Get(ctx context.Context, dayID int64) ([]model.RankingEntry, error) {
	c.mu.Lock()
	cached, ok := c.byDay[dayID]
	c.mu.Unlock()

	if ok && c.now().Sub(cached.loadedAt) <= c.ttl {
		return cached.entries, nil
	}

	entries, err := c.load(ctx, dayID)
	if err != nil {
		// Устаревшее значение не подставляется вместо ошибки загрузки:
		// читатель должен видеть сбой, а не тихо старые данные.
		return nil, err
	}

	c.mu.Lock()
	c.byDay[dayID] = cachedRanking{entries: entries, loadedAt: c.now()}
	c.mu.Unlock()

	return entries, nil
}

// Invalidate сбрасывает запись кеша для дня.
func (c *RankingCache) Invalidate(dayID int64) {
	c.mu.Lock()
	delete(c.byDay, dayID)
	c.mu.Unlock()
}
