package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/swaggo/swag" // 导入 swag

	"flic_feed/affinity"
	"flic_feed/config"
	"flic_feed/db"
	_ "flic_feed/docs" // 导入 swagger 文档
	"flic_feed/handlers"
	"flic_feed/logger"
	"flic_feed/models"
	"flic_feed/repository"
	"flic_feed/scheduler"
	"flic_feed/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		var cfgErr *models.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("invalid configuration: %v", cfgErr)
		}
		log.Fatalf("load config failed: %v", err)
	}

	// 初始化日志系统
	if err := logger.Init(cfg); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	logger.Info("日志系统初始化成功", "level", cfg.Log.Level, "format", cfg.Log.Format, "output", cfg.Log.Output)
	logger.Info("上游内容服务", "base_url", cfg.Upstream.BaseURL, "token", config.MaskToken(cfg.Upstream.Token))

	enabled, err := db.InitMySQLWithConfig(cfg)
	if err != nil {
		logger.Error("初始化MySQL失败", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var (
		snapshots    affinity.SnapshotStore
		snapshotRepo *repository.SnapshotRepo
		interactions services.InteractionRepository
	)
	if enabled {
		logger.Info("MySQL连接成功",
			"max_open_conns", cfg.DB.MaxOpenConns,
			"max_idle_conns", cfg.DB.MaxIdleConns,
			"conn_max_lifetime", cfg.DB.ConnMaxLifetime)
		snapshotRepo = repository.NewSnapshotRepo(nil)
		snapshots = snapshotRepo
		interactions = repository.NewInteractionRepo(nil)
	} else {
		logger.Info("未配置MySQL，模型快照和互动历史不可用")
	}

	trainingSource, err := services.NewTrainingSource(cfg, interactions)
	if err != nil {
		logger.Error("训练数据源配置错误", "error", err)
		os.Exit(1)
	}

	store := affinity.NewStore(services.AffinityConfigFrom(cfg), snapshots)
	bootstrapModel(cfg, store, trainingSource)

	adapter := services.NewSourceAdapter(services.UpstreamConfigFrom(cfg))
	feed := services.NewFeedService(adapter, store, services.FeedOptions{
		RankWithModel: cfg.Feed.RankWithModel,
		NeutralScore:  cfg.NeutralScore(),
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.Server.WriteTimeoutSec) * time.Second))

	handlers.RegisterRoutes(r, cfg, handlers.NewHandler(feed, adapter, store, trainingSource))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// start cron
	var pruner scheduler.SnapshotPruner
	if snapshotRepo != nil {
		pruner = snapshotRepo
	}
	sched := scheduler.NewScheduler(cfg, store, trainingSource, pruner)
	sched.Start(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("服务器启动", "address", cfg.Server.Addr)
		logger.Info("Swagger文档可访问", "url", fmt.Sprintf("http://%s/swagger/index.html", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("服务器异常退出", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("正在关闭服务器")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭失败", "error", err)
	}
	sched.Wait()
	logger.Info("服务器已关闭")
}

// bootstrapModel 启动时优先从快照恢复模型，失败时按配置训练。失败不阻止服务启动，推荐流保持未排序。
func bootstrapModel(cfg *config.Config, store *affinity.Store, src affinity.TrainingSource) {
	ctx := context.Background()
	if _, err := store.Reload(ctx); err == nil {
		return
	} else if !errors.Is(err, affinity.ErrNoSnapshot) {
		logger.Warn("加载模型快照失败", "error", err)
	}

	if !cfg.TrainOnStart() {
		logger.Info("启动时训练已关闭，模型未就绪")
		return
	}
	if _, err := store.Train(ctx, src); err != nil {
		logger.Error("启动时训练模型失败", "source", src.Name(), "error", err)
	}
}
