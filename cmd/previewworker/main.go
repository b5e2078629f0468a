// previewworker drains the Redis preview queue in its own process, so
// preview rasterization can scale independently of the API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/config"
	"github.com/dokstore/dokstore/internal/database"
	"github.com/dokstore/dokstore/internal/document/repository"
	"github.com/dokstore/dokstore/internal/preview"
	"github.com/dokstore/dokstore/internal/storage"
	"github.com/dokstore/dokstore/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.Redis.Host == "" {
		logger.Fatalf("previewworker requires REDIS_HOST (the queue lives in Redis)")
	}
	if cfg.MongoDB.URI == "" {
		logger.Fatalf("previewworker requires MONGODB_URI (workers share the record store)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		logger.Fatalf("cannot connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	store, err := repository.NewMongoStore(client, cfg.MongoDB.Database)
	if err != nil {
		logger.Fatalf("failed to initialize mongo store: %v", err)
	}

	var blobs storage.BlobStore
	if cfg.MinIO.Endpoint != "" {
		blobs, err = storage.NewMinIOStorage(&storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			logger.Fatalf("failed to initialize MinIO storage: %v", err)
		}
	} else {
		logger.Fatalf("previewworker requires MINIO_ENDPOINT (workers share the blob store)")
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.Fatalf("cannot connect to Redis: %v", err)
	}

	gen := preview.NewGenerator(store, blobs, audit.NewRecorder(store, nil), preview.PDFRasterizer{}, preview.Options{
		PreviewDir: cfg.Documents.PreviewDir,
		Timeout:    cfg.Documents.PreviewTimeout,
		MaxWidth:   cfg.Documents.PreviewMaxWidth,
	})

	q := preview.NewRedisQueue(rc, "")
	logger.Infof("previewworker draining %s with %d workers", preview.DefaultQueueKey, cfg.Documents.PreviewWorkers)
	q.Run(ctx, gen, cfg.Documents.PreviewWorkers)

	// give in-flight jobs a moment on shutdown
	time.Sleep(100 * time.Millisecond)
	logger.Infof("previewworker stopped")
}
