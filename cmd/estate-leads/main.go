package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estate-leads/internal/config"
	"estate-leads/internal/database"
	httpapi "estate-leads/internal/http"
	"estate-leads/internal/logger"
	"estate-leads/internal/notify"
	"estate-leads/internal/redisx"
	"estate-leads/internal/repository"
	"estate-leads/internal/scanner"
	"estate-leads/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "estate-leads")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Redis：幂等键与事件 Stream。连接失败降级为内存幂等（单进程内仍然去重）
	var redisClient *redis.Client
	var idem notify.IdemStore
	rc := redisx.NewRedisClient(&cfg.Redis)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rc.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
		_ = rc.Close()
		idem = notify.NewMemoryIdemStore()
	} else {
		redisClient = rc
		idem = notify.NewRedisIdemStore(redisClient)
	}
	pingCancel()

	// 仓储：优先 Postgres，连不上回退内存实现（本地联调路径）
	var db *sql.DB
	var leadsRepo repository.LeadsRepo
	var partnersRepo repository.PartnersRepo
	var eventsRepo repository.AnalyticsRepo
	var notifyLog repository.NotificationLogRepo
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for estate-leads")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		leadsRepo = repository.NewPostgresLeadsRepo(db)
		partnersRepo = repository.NewPostgresPartnersRepo(db)
		eventsRepo = repository.NewPostgresAnalyticsRepo(db)
		notifyLog = repository.NewPostgresNotificationLogRepo(db)
	} else {
		leadsRepo = repository.NewMemoryLeadsRepo()
		partnersRepo = repository.NewMemoryPartnersRepo()
		eventsRepo = repository.NewMemoryAnalyticsRepo()
		notifyLog = repository.NewMemoryNotificationLogRepo()
	}

	gateway := notify.NewGatewayClient(cfg.Notify.GatewayBaseURL, cfg.Notify.Timeout, cfg.Notify.RetryCount, log)
	dispatcher := notify.NewDispatcher(cfg.Notify, gateway, idem, notifyLog, log)

	analytics := service.NewAnalyticsService(leadsRepo, eventsRepo, notifyLog, redisClient, log)
	leadService := service.NewLeadService(leadsRepo, dispatcher, analytics, log)
	sharingService := service.NewSharingService(leadsRepo, partnersRepo, gateway, analytics, log)

	router := httpapi.NewRouter(log)
	router.RegisterLeadRoutes(httpapi.NewLeadHandler(leadService, sharingService, log))
	router.RegisterPartnerRoutes(httpapi.NewPartnerHandler(partnersRepo, log))
	router.RegisterAnalyticsRoutes(httpapi.NewAnalyticsHandler(analytics, log))
	router.RegisterHealthRoute()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 跟进扫描：取代前端定时器的持久化调度，进程重启后继续工作
	if cfg.Scanner.Enabled {
		sc := scanner.NewScanner(cfg.Scanner, leadsRepo, dispatcher, analytics, log)
		go sc.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
