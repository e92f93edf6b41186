package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/progress"
)

// DefaultTTL applies when neither the caller nor configuration supplies one.
const DefaultTTL = 300 * time.Second

type QuestSource interface {
	FindQuestWithDetails(ctx context.Context, questID uint) (models.QuestSnapshot, bool, error)
	UpdateQuestSteps(ctx context.Context, questID uint, steps []models.Step) error
}

type Recomputer interface {
	Recompute(ctx context.Context, snap *models.QuestSnapshot) (bool, error)
}

// QuestCache is a cache-aside view of quest snapshots. Concurrent misses on
// the same key are not coordinated: each recomputes from source records and
// the last write wins, which is safe because recomputation is idempotent.
type QuestCache struct {
	kv         KV
	quests     QuestSource
	recomputer Recomputer
	defaultTTL time.Duration
	logger     *log.Logger
}

func NewQuestCache(kv KV, quests QuestSource, recomputer Recomputer, defaultTTL time.Duration, logger *log.Logger) *QuestCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QuestCache{kv: kv, quests: quests, recomputer: recomputer, defaultTTL: defaultTTL, logger: logger}
}

func Key(questID uint) string {
	return fmt.Sprintf("quest:%d", questID)
}

// Get returns the cached snapshot, or rebuilds it from the quest store.
// A hit is returned without recomputation and may lag by up to one TTL.
func (c *QuestCache) Get(ctx context.Context, questID uint) (models.QuestSnapshot, error) {
	key := Key(questID)
	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		var snap models.QuestSnapshot
		jerr := json.Unmarshal(raw, &snap)
		if jerr == nil {
			return snap, nil
		}
		c.logger.Printf("[cache] undecodable value at %s, rebuilding: %v", key, jerr)
	case errors.Is(err, ErrCacheMiss):
	default:
		c.logger.Printf("[cache] get %s failed, reading source: %v", key, err)
	}
	return c.load(ctx, questID)
}

func (c *QuestCache) load(ctx context.Context, questID uint) (models.QuestSnapshot, error) {
	snap, ok, err := c.quests.FindQuestWithDetails(ctx, questID)
	if err != nil {
		return models.QuestSnapshot{}, fmt.Errorf("load quest %d: %w", questID, err)
	}
	if !ok {
		return models.QuestSnapshot{}, fmt.Errorf("%w: %d", progress.ErrQuestNotFound, questID)
	}

	changed, err := c.recomputer.Recompute(ctx, &snap)
	if err != nil {
		return models.QuestSnapshot{}, fmt.Errorf("recompute quest %d: %w", questID, err)
	}
	if changed {
		if err := c.quests.UpdateQuestSteps(ctx, questID, snap.Steps); err != nil {
			return models.QuestSnapshot{}, fmt.Errorf("store steps of quest %d: %w", questID, err)
		}
	}

	c.Set(ctx, questID, snap, 0)
	return snap, nil
}

// Set stores snap under quest:{id}. A non-positive ttl means the default;
// entries never live forever. Failures are logged only.
func (c *QuestCache) Set(ctx context.Context, questID uint, snap models.QuestSnapshot, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key := Key(questID)
	b, err := json.Marshal(snap)
	if err != nil {
		c.logger.Printf("[cache] encode %s: %v", key, err)
		return
	}
	if err := c.kv.Set(ctx, key, b, ttl); err != nil {
		c.logger.Printf("[cache] set %s failed: %v", key, err)
	}
}

// Invalidate drops the cached snapshot. Failures are logged only.
func (c *QuestCache) Invalidate(ctx context.Context, questID uint) {
	key := Key(questID)
	if err := c.kv.Del(ctx, key); err != nil {
		c.logger.Printf("[cache] del %s failed: %v", key, err)
	}
}

// Refresh invalidates and immediately repopulates the entry.
func (c *QuestCache) Refresh(ctx context.Context, questID uint) (models.QuestSnapshot, error) {
	c.Invalidate(ctx, questID)
	return c.Get(ctx, questID)
}
