package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"footdata-service/apifootball"
	"footdata-service/config"
	"footdata-service/database"
	"footdata-service/services"
	"footdata-service/web"
)

func main() {
	log.Println("Starting Football Data Service...")

	// 加载 .env（不存在时忽略）
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// 加载配置
	cfg := config.Load()

	// 连接数据库
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 运行数据库迁移
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database connected and migrated")

	// Redis 客户端（可选，用于跨实例配额计数）
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("[Redis] ⚠️ Ping failed, quota counter runs local-only: %v", err)
		} else {
			log.Println("[Redis] ✅ Connected, daily quota shared across instances")
		}
	}

	// 配额追踪器
	quota := services.NewQuotaTracker(redisClient)

	// 存储层
	matchStore := database.NewMatchStore(db)
	refStore := database.NewReferenceStore(db)

	// 上游 API 客户端（未配置 token 时只读缓存）
	var upstream services.UpstreamAPI
	if cfg.APIToken != "" {
		upstream = apifootball.NewClientWithConfig(apifootball.Config{
			BaseURL:  cfg.APIBaseURL,
			APIToken: cfg.APIToken,
			Counter:  quota,
		})
		log.Println("[API] ✅ API-Football client configured")
	} else {
		log.Println("[API] ⚠️ APIFOOTBALL_TOKEN not set, serving cached data only")
	}

	// 负缓存 + 同步引擎
	negCache := services.NewNegativeCache(matchStore)
	synchronizer := services.NewSynchronizer(matchStore, refStore, upstream, negCache)

	// WebSocket Hub
	wsHub := web.NewHub()
	go wsHub.Run()
	synchronizer.AddNotifier(wsHub)

	// AMQP 事件发布器（可选）
	var publisher *services.MatchEventPublisher
	if cfg.AMQPUrl != "" {
		publisher = services.NewMatchEventPublisher(cfg.AMQPUrl, cfg.AMQPExchange)
		if err := publisher.Connect(); err != nil {
			log.Printf("[AMQP] ❌ Connect failed, match events disabled: %v", err)
		} else {
			synchronizer.AddNotifier(publisher)
			log.Printf("[AMQP] ✅ Publishing match updates to exchange %s", cfg.AMQPExchange)
		}
	}

	// 同步队列
	queue := services.NewSyncQueue(synchronizer, quota, services.QueueConfig{
		MaxRequestsPerMinute: cfg.MaxRequestsPerMinute,
		DailyQuota:           cfg.DailyQuota,
		QuotaHighWater:       cfg.QuotaHighWater,
		TrackedLeagues:       cfg.TrackedLeagueIDs,
	})

	// 批量填充器
	populator := services.NewBulkPopulator(synchronizer)

	// 启动Web服务器
	server := web.NewServer(cfg, synchronizer, queue, populator, wsHub)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Web server error: %v", err)
		}
	}()

	log.Printf("Web server started on port %s", cfg.Port)

	// 定时同步（AUTO_SYNC=false 时只响应手动触发）
	if cfg.AutoSync && upstream != nil {
		// 启动后先做一次智能同步
		go func() {
			completed, failed := queue.SmartSync(context.Background())
			log.Printf("[AutoSync] Initial smart sync: %d completed, %d failed", completed, failed)
		}()

		// 周期智能同步
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.SmartSyncMinutes) * time.Minute)
			defer ticker.Stop()

			for range ticker.C {
				completed, failed := queue.SmartSync(context.Background())
				log.Printf("[AutoSync] Smart sync: %d completed, %d failed", completed, failed)
			}
		}()

		// 直播时段高频刷新进行中的比赛
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.LiveSyncMinutes) * time.Minute)
			defer ticker.Stop()

			for range ticker.C {
				if _, _, err := queue.ForceSync(context.Background(), "live"); err != nil {
					log.Printf("[AutoSync] Live sync error: %v", err)
				}
			}
		}()

		log.Printf("Auto sync enabled (smart every %dm, live every %dm)", cfg.SmartSyncMinutes, cfg.LiveSyncMinutes)
	} else {
		log.Println("Auto sync disabled")
	}

	log.Println("Service is running. Press Ctrl+C to stop.")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down service...")

	// 清理资源
	queue.Stop()
	populator.Stop()
	server.Stop()
	if publisher != nil {
		publisher.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Service stopped")
}
