package cli

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shipmentportal/config"
	"shipmentportal/internal/mailer"
	"shipmentportal/internal/repository"
	"shipmentportal/internal/service/auth"
	"shipmentportal/internal/worker"
	"shipmentportal/pkg/db"
	"shipmentportal/pkg/mq"
	"shipmentportal/pkg/outbox"
	redisclient "shipmentportal/pkg/redis"
	"shipmentportal/pkg/rbac"
)

var errNoBroker = errors.New("mq.url is not configured")

type liveBackend struct {
	cfg    *config.Config
	log    *zap.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	closer []func()
}

// Open connects to the configured database. Redis, SMTP and the broker are
// only reached by the commands that need them.
func Open(cfg *config.Config, log *zap.Logger) Opener {
	return func(ctx context.Context) (Backend, error) {
		pool, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			return nil, err
		}
		return &liveBackend{cfg: cfg, log: log, pool: pool}, nil
	}
}

func (b *liveBackend) Close() {
	for i := len(b.closer) - 1; i >= 0; i-- {
		b.closer[i]()
	}
	b.pool.Close()
}

func (b *liveBackend) CreateAdmin(ctx context.Context, email, password, fullName, team string) (int64, error) {
	svc := auth.NewService(repository.NewUserRepository(b.pool), b.cfg.JWT.Secret, b.cfg.JWT.TokenTTL, b.log)
	in := auth.RegisterInput{Email: email, Password: password, FullName: fullName, Role: string(rbac.RoleAdmin)}
	if team != "" {
		in.Team = &team
	}
	u, err := svc.Register(ctx, in)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func (b *liveBackend) RunJob(ctx context.Context, job string) error {
	mail, err := mailer.New(b.cfg.SMTP, b.log)
	if err != nil {
		return err
	}
	if b.cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, b.cfg.Redis)
		if err != nil {
			b.log.Warn("Redis unavailable, exception alerts will not be deduplicated", zap.Error(err))
		} else {
			b.rdb = rdb
			b.closer = append(b.closer, func() { _ = rdb.Close() })
		}
	}

	svc := worker.NewNotifier(b.cfg.Notifier, repository.NewNotificationRepository(b.pool, b.log), mail, b.rdb, b.log)
	sched, err := worker.NewScheduler(svc, b.cfg.Notifier, b.log)
	if err != nil {
		return err
	}
	return sched.RunNow(ctx, job)
}

func (b *liveBackend) replayer() (*outbox.ReplayService, error) {
	if b.cfg.MQ.URL == "" {
		return nil, errNoBroker
	}
	publisher, err := mq.NewPublisher(b.cfg.MQ.URL)
	if err != nil {
		return nil, err
	}
	b.closer = append(b.closer, publisher.Close)
	return outbox.NewReplayService(outbox.NewRepository(b.pool), publisher, b.log), nil
}

func (b *liveBackend) ReplayEvent(ctx context.Context, eventID int64) error {
	r, err := b.replayer()
	if err != nil {
		return err
	}
	return r.ReplayEvent(ctx, eventID)
}

func (b *liveBackend) ReplayFailed(ctx context.Context, limit int) (int, error) {
	r, err := b.replayer()
	if err != nil {
		return 0, err
	}
	return r.ReplayFailedEvents(ctx, limit)
}

func (b *liveBackend) RequeueMilestone(ctx context.Context, milestoneID int64) error {
	return repository.NewNotificationRepository(b.pool, b.log).RequeueMilestone(ctx, milestoneID, time.Now().UTC())
}
