// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"reconstruction-service/internal/pipeline"
	"reconstruction-service/internal/repository/memory"
	"reconstruction-service/internal/service"
	"reconstruction-service/internal/toollog"
	"reconstruction-service/internal/toolrunner"
	httptransport "reconstruction-service/internal/transport/http"
	"reconstruction-service/internal/worker"
)

// @title Reconstruction Service API
// @version 1.0
// @description Job orchestration for 3D scene reconstruction from images and video.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpAddr := envOr("HTTP_ADDR", ":8080")
	workspaceDir := envOr("WORKSPACE_DIR", "./workspace")
	workersCount := envIntOr("WORKERS", 2)
	redisAddr := os.Getenv("REDIS_ADDR")

	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		log.Fatalf("workspace: %v", err)
	}

	// invocation audit log (sqlite)
	logs, err := toollog.Open(filepath.Join(workspaceDir, "invocations.db"))
	if err != nil {
		log.Fatalf("toollog: %v", err)
	}
	defer logs.Close()

	cfg := pipeline.DefaultConfig()
	cfg.ColmapPath = envOr("COLMAP_PATH", cfg.ColmapPath)
	cfg.FFmpegPath = envOr("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.UseGPU = envOr("USE_GPU", "") == "1"

	runner := toolrunner.New(logs)
	for _, tool := range []string{cfg.ColmapPath, cfg.FFmpegPath} {
		if !toolrunner.CheckTool(ctx, runner, tool) {
			log.Printf("[server] tool=%s not available, jobs needing it will fail", tool)
		}
	}

	trainer := pipeline.NewSimTrainer(time.Now().UnixNano())
	orch := pipeline.NewOrchestrator(runner, trainer, nil, cfg)

	repo := memory.NewJobRepository()

	// queue backend: in-process channel by default, Redis when configured
	var queue service.Queue
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		queue = service.NewRedisQueue(rdb,
			envOr("REDIS_QUEUE_KEY", "recon:queue"),
			envOr("REDIS_PROCESSING_KEY", "recon:processing"),
		)

		// reaper: periodically moves abandoned jobs back from processing
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := queue.RequeueStale(ctx, 100)
					if err != nil {
						log.Printf("requeue error: %v", err)
						continue
					}
					if n > 0 {
						log.Printf("requeued %d jobs from processing", n)
					}
				}
			}
		}()
	} else {
		queue = service.NewMemoryQueue(envIntOr("QUEUE_CAPACITY", 256))
	}

	jobSvc := service.NewJobService(repo, queue, logs, workspaceDir)
	processor := worker.NewProcessor(repo, orch)
	pool := worker.NewPool(queue, processor, workersCount)

	handler := httptransport.NewHandler(jobSvc)
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           httptransport.Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[server] listening addr=%s workers=%d workspace=%s", httpAddr, workersCount, workspaceDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	pool.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	log.Println("server stopped")
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
