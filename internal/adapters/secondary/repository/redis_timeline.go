package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/domain"
)

// RedisTimeline stocke le feed "following" de chaque utilisateur dans un ZSET.
// Score = created_at en microsecondes, membre = post id. À score égal Redis
// trie les membres lexicographiquement, ce qui donne l'ordre (created_at, id).
type RedisTimeline struct {
	client *redis.Client
	ttl    time.Duration // on ne garde pas l'infini en RAM
	capped int64
}

func NewRedisTimeline(client *redis.Client) *RedisTimeline {
	return &RedisTimeline{
		client: client,
		ttl:    24 * 30 * time.Hour,
		capped: TimelineCap,
	}
}

// TimelineCap : nombre d'entrées gardées par timeline, les plus récentes.
const TimelineCap = 800

func timelineKey(userID string) string {
	return fmt.Sprintf("timeline:%s", userID)
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// AddToTimelines implémente le fan-out massif
func (r *RedisTimeline) AddToTimelines(ctx context.Context, userIDs []string, entry *domain.TimelineEntry) error {
	pipe := r.client.Pipeline()

	for _, uid := range userIDs {
		key := timelineKey(uid)
		pipe.ZAdd(ctx, key, redis.Z{Score: score(entry.CreatedAt), Member: entry.PostID})
		// Capping : on garde les N plus récents
		pipe.ZRemRangeByRank(ctx, key, 0, -(r.capped + 1))
		pipe.Expire(ctx, key, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: add to timelines: %w", err)
	}
	return nil
}

func (r *RedisTimeline) GetTimeline(ctx context.Context, userID string, offset, limit int, anchor *domain.Anchor) ([]string, error) {
	key := timelineKey(userID)

	if anchor == nil {
		// Pagination Redis (inclusive)
		ids, err := r.client.ZRevRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: get timeline: %w", err)
		}
		return ids, nil
	}

	skip, err := r.newerAtAnchor(ctx, key, anchor)
	if err != nil {
		return nil, err
	}

	ids, err := r.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Max:    anchorScore(anchor),
		Min:    "-inf",
		Offset: int64(offset + skip),
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get timeline: %w", err)
	}
	return ids, nil
}

func (r *RedisTimeline) CountTimeline(ctx context.Context, userID string, anchor *domain.Anchor) (int, error) {
	key := timelineKey(userID)

	if anchor == nil {
		n, err := r.client.ZCard(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("redis: count timeline: %w", err)
		}
		return int(n), nil
	}

	skip, err := r.newerAtAnchor(ctx, key, anchor)
	if err != nil {
		return 0, err
	}
	n, err := r.client.ZCount(ctx, key, "-inf", anchorScore(anchor)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: count timeline: %w", err)
	}
	return int(n) - skip, nil
}

// newerAtAnchor compte les membres de même score que l'ancre mais d'id
// supérieur : ils sont au-dessus de l'ancre dans l'ordre du feed.
func (r *RedisTimeline) newerAtAnchor(ctx context.Context, key string, anchor *domain.Anchor) (int, error) {
	s := anchorScore(anchor)
	same, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: s, Max: s}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: anchor ties: %w", err)
	}
	n := 0
	for _, id := range same {
		if id > anchor.PostID {
			n++
		}
	}
	return n, nil
}

func anchorScore(a *domain.Anchor) string {
	return strconv.FormatInt(a.CreatedAt.UnixMicro(), 10)
}
