package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/file-container/internal/conf"
	"github.com/lk2023060901/file-container/internal/container/biz"
	containerdata "github.com/lk2023060901/file-container/internal/container/data"
	"github.com/lk2023060901/file-container/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/file-container/internal/pkg/minio"
	pkgredis "github.com/lk2023060901/file-container/internal/pkg/redis"
	"github.com/lk2023060901/file-container/internal/pkg/workerpool"
	"go.uber.org/zap"
)

type Data struct {
	Redis *pkgredis.Client // nil unless redis.enabled
	MinIO *pkgminio.Client // nil unless storage.backend is minio
	Pool  *workerpool.Pool

	Store *containerdata.JSONStore
	Blobs biz.BlobStore
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	d := &Data{}
	var closers []func()
	cleanup := func() {
		log.Info("cleaning up data resources")
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Data, func(), error) {
		cleanup()
		return nil, nil, err
	}

	pool, err := workerpool.New(&workerpool.Config{
		Size:           config.Storage.Workers,
		ExpiryDuration: 10 * time.Second,
	}, log.Named("workerpool").Logger)
	if err != nil {
		return fail(fmt.Errorf("failed to init worker pool: %w", err))
	}
	d.Pool = pool
	closers = append(closers, func() { pool.Shutdown(5 * time.Second) })

	// Initialize Redis
	if config.Redis.Enabled {
		client, err := initRedis(config, log)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		d.Redis = client
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close redis", zap.Error(err))
			}
		})
	}

	var locker containerdata.Locker = containerdata.NewLocalLocker()
	if config.Lock.Backend == conf.LockRedis {
		locker = containerdata.NewRedisLocker(d.Redis, containerdata.RedisLockerConfig{
			TTL:        config.Lock.TTL,
			MaxRetries: config.Lock.MaxRetries,
			RetryDelay: config.Lock.RetryDelay,
		}, log.Logger)
	}

	store, err := containerdata.NewJSONStore(config.Storage.DataDir, locker, log.Logger)
	if err != nil {
		return fail(err)
	}
	d.Store = store

	switch config.Storage.Backend {
	case conf.StorageMinIO:
		client, err := initMinIO(config, log)
		if err != nil {
			return fail(fmt.Errorf("failed to init minio: %w", err))
		}
		d.MinIO = client
		closers = append(closers, func() { _ = client.Close() })
		d.Blobs = containerdata.NewMinIOBlobStore(client, config.MinIO.Bucket, pool, log.Logger)
	default:
		blobs, err := containerdata.NewLocalBlobStore(config.Storage.UploadsDir)
		if err != nil {
			return fail(err)
		}
		d.Blobs = blobs
	}

	log.Info("data layer initialized",
		zap.String("storage", config.Storage.Backend),
		zap.String("lock", config.Lock.Backend),
		zap.String("data_dir", config.Storage.DataDir))

	return d, cleanup, nil
}

func initRedis(config *conf.Config, log *logger.Logger) (*pkgredis.Client, error) {
	cfg := pkgredis.DefaultConfig()
	cfg.Addr = config.Redis.Addr
	cfg.Username = config.Redis.Username
	cfg.Password = config.Redis.Password
	cfg.DB = config.Redis.DB
	if config.Redis.PoolSize > 0 {
		cfg.PoolSize = config.Redis.PoolSize
	}
	if config.Redis.DialTimeout > 0 {
		cfg.DialTimeout = config.Redis.DialTimeout
	}
	if config.Redis.ReadTimeout > 0 {
		cfg.ReadTimeout = config.Redis.ReadTimeout
	}
	if config.Redis.WriteTimeout > 0 {
		cfg.WriteTimeout = config.Redis.WriteTimeout
	}
	return pkgredis.New(cfg, log.Named("redis"))
}

func initMinIO(config *conf.Config, log *logger.Logger) (*pkgminio.Client, error) {
	client, err := pkgminio.NewClient(&pkgminio.Config{
		Endpoint:        config.MinIO.Endpoint,
		AccessKeyID:     config.MinIO.AccessKey,
		SecretAccessKey: config.MinIO.SecretKey,
		Region:          config.MinIO.Region,
		UseSSL:          config.MinIO.UseSSL,
	}, log.Named("minio").Logger)
	if err != nil {
		return nil, err
	}

	// Create bucket if not exists
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ctx, config.MinIO.Bucket); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
