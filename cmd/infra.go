package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"pongrt/internal/app/db"
	"pongrt/internal/app/presence"
	"pongrt/internal/app/results"
	"pongrt/internal/app/storage"
	"pongrt/internal/app/users"
	"pongrt/internal/configs"
	"pongrt/internal/pkg/logx"
)

const connectTimeout = 10 * time.Second

// infra holds the optional collaborators. Components whose settings are empty stay disabled.
type infra struct {
	NameStore    presence.NameStore
	NameResolver presence.NameResolver
	Recorder     results.Recorder
	Matches      *db.MatchStore

	redis *redis.Client
	pool  *pgxpool.Pool
	nats  *nats.Conn
}

func connectInfra(ctx context.Context, cfg *configs.AppConfig) (*infra, error) {
	in := &infra{NameStore: presence.NewMemoryNameStore()}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var recorders results.Fanout

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		in.redis = redis.NewClient(opts)
		if err := in.redis.Ping(ctx).Err(); err != nil {
			in.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		in.NameStore = presence.NewRedisNameStore(in.redis, presence.DefaultNameTTL)
		logx.Info("Name cache backed by redis")
	}

	if cfg.UserServiceURL != "" {
		in.NameResolver = users.NewClient(cfg.UserServiceURL)
	}

	if cfg.MatchServiceURL != "" {
		recorders = append(recorders, results.NewHTTPRecorder(cfg.MatchServiceURL))
	}

	if cfg.DatabaseDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.pool = pool
		in.Matches = db.NewMatchStore(pool)
		recorders = append(recorders, results.LedgerRecorder{Store: in.Matches})
	}

	if cfg.S3BucketName != "" {
		store, err := storage.NewS3Store(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3Region:          cfg.S3Region,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			in.Close()
			return nil, err
		}
		recorders = append(recorders, results.ArchiveRecorder{Store: store})
	}

	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL,
			nats.Name("pongrt"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		in.nats = conn
		recorders = append(recorders, results.EventRecorder{Publisher: conn, Subject: results.DefaultSubject})
	}

	if len(recorders) > 0 {
		in.Recorder = recorders
	} else {
		logx.Warn("No match result sink configured; matchmaking results are not recorded")
	}

	return in, nil
}

// Close releases every connection that was opened.
func (in *infra) Close() {
	if in.nats != nil {
		if err := in.nats.Drain(); err != nil {
			logx.Error(err, "Failed to drain nats connection")
		}
	}
	if in.pool != nil {
		in.pool.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			logx.Error(err, "Failed to close redis client")
		}
	}
}
