package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shipmentportal/internal/model"
)

const cacheKey = "dashboard:stats"

type Store interface {
	Stats(ctx context.Context, now time.Time) (*model.DashboardStats, error)
}

type Service struct {
	stats    Store
	rdb      *redis.Client
	cacheTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(stats Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{stats: stats, now: time.Now, logger: logger}
}

// WithCache keeps computed stats in Redis for ttl. Cache errors fall back
// to the database.
func (s *Service) WithCache(rdb *redis.Client, ttl time.Duration) *Service {
	if rdb != nil && ttl > 0 {
		s.rdb = rdb
		s.cacheTTL = ttl
	}
	return s
}

func (s *Service) Stats(ctx context.Context) (*model.DashboardStats, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached model.DashboardStats
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	stats, err := s.stats.Stats(ctx, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if stats.ByStatus == nil {
		stats.ByStatus = map[string]int{}
	}

	if s.rdb != nil {
		raw, _ := json.Marshal(stats)
		if err := s.rdb.Set(ctx, cacheKey, raw, s.cacheTTL).Err(); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}
