package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dokstore/dokstore/handlers"
	"github.com/dokstore/dokstore/internal/audit"
	"github.com/dokstore/dokstore/internal/config"
	"github.com/dokstore/dokstore/internal/database"
	"github.com/dokstore/dokstore/internal/document/repository"
	"github.com/dokstore/dokstore/internal/document/service"
	"github.com/dokstore/dokstore/internal/preview"
	"github.com/dokstore/dokstore/internal/storage"
	"github.com/dokstore/dokstore/pkg/logger"
	"github.com/dokstore/dokstore/pkg/metrics"
	"github.com/dokstore/dokstore/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v minio=%v redis=%v previews=%v",
		cfg.MongoDB.URI != "", cfg.MinIO.Endpoint != "", cfg.Redis.Host != "", cfg.Documents.RenderPreview)

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple; production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	ctx := context.Background()

	// Connect to Redis early so the rate-limiter and preview queue can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Optional global rate limiter (per client IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Record store: Mongo when configured, with retry/backoff; memory otherwise.
	var store repository.Store
	var mongoOK bool
	if cfg.MongoDB.URI != "" {
		const maxAttempts = 5
		backoff := time.Second
		var client *mongo.Client
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			client, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
		} else {
			defer func() { _ = client.Disconnect(ctx) }()
			ms, err := repository.NewMongoStore(client, cfg.MongoDB.Database)
			if err != nil {
				logger.Fatalf("failed to initialize mongo store: %v", err)
			}
			store = ms
			mongoOK = true
		}
	}
	if store == nil {
		logger.Warnf("using in-memory record store; documents will not survive restarts")
		store = repository.NewMemoryStore()
	}

	// Blob store: MinIO when configured, memory otherwise.
	var blobs storage.BlobStore
	var minioOK bool
	if cfg.MinIO.Endpoint != "" {
		mcfg := &storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		}
		ms, err := storage.NewMinIOStorage(mcfg)
		if err != nil {
			logger.Warnf("failed to initialize MinIO storage: %v", err)
		} else {
			blobs = ms
			minioOK = true
		}
	}
	if blobs == nil {
		logger.Warnf("using in-memory blob store; files will not survive restarts")
		blobs = storage.NewMemoryBlobStore()
	}

	recorder := audit.NewRecorder(store, nil)

	// Preview pipeline: Redis queue when available (workers may run in
	// separate processes via cmd/previewworker), in-process pool otherwise.
	var dispatcher preview.Dispatcher
	if cfg.Documents.RenderPreview {
		gen := preview.NewGenerator(store, blobs, recorder, preview.PDFRasterizer{}, preview.Options{
			PreviewDir: cfg.Documents.PreviewDir,
			Timeout:    cfg.Documents.PreviewTimeout,
			MaxWidth:   cfg.Documents.PreviewMaxWidth,
		})
		if redisClient != nil {
			q := preview.NewRedisQueue(redisClient, "")
			dispatcher = q
			go q.Run(ctx, gen, cfg.Documents.PreviewWorkers)
		} else {
			cd := preview.NewChanDispatcher(256)
			dispatcher = cd
			go cd.Run(ctx, gen, cfg.Documents.PreviewWorkers)
		}
	} else {
		logger.Infof("preview rendering disabled by configuration")
	}

	svc := service.New(store, blobs, recorder, dispatcher, service.Config{
		DocumentsDir:  cfg.Documents.DocumentsDir,
		ProtectAfter:  cfg.Documents.ProtectAfter,
		RenderPreview: cfg.Documents.RenderPreview,
	}, nil)

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint: 200 only when the configured dependencies came up
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}
		if cfg.MongoDB.URI != "" {
			deps["mongo"] = mongoOK
			ready = ready && mongoOK
		} else {
			deps["mongo"] = true
		}
		if cfg.MinIO.Endpoint != "" {
			deps["minio"] = minioOK
			ready = ready && minioOK
		} else {
			deps["minio"] = true
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil
			ready = ready && redisClient != nil
		} else {
			deps["redis"] = true
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": fmt.Sprintf("%s", time.Since(startTime))})
	})

	handlers.RegisterDocumentRoutes(r, svc)
	handlers.RegisterSwagger(r)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting dokstore on %s (protect_after=%s render_preview=%v)", addr, cfg.Documents.ProtectAfter, cfg.Documents.RenderPreview)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
