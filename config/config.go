package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	// API-Football 配置
	APIToken   string
	APIBaseURL string

	// 数据库配置
	DatabaseURL string

	// Redis 配置（可选，用于跨实例共享每日配额计数）
	RedisURL string

	// AMQP 配置（可选，比赛更新事件发布）
	AMQPUrl      string
	AMQPExchange string

	// 服务器配置
	Port string

	// 其他配置
	Environment string

	// 配额配置
	MaxRequestsPerMinute int // 上游每分钟请求上限
	DailyQuota           int // 上游每日请求配额
	QuotaHighWater       int // 达到该百分比后停止后台同步（如 90）

	// 后台同步配置
	AutoSync          bool // 启动时自动开启定时同步
	SmartSyncMinutes  int  // SmartSync 执行间隔（分钟）
	LiveSyncMinutes   int  // 直播时段 live 同步间隔（分钟）
	TrackedLeagueIDs  []int
}

func Load() *Config {
	return &Config{
		// API-Football 配置
		APIToken:   getEnv("APIFOOTBALL_TOKEN", ""),
		APIBaseURL: getEnv("APIFOOTBALL_BASE_URL", "https://v3.football.api-sports.io"),

		// 数据库配置
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/footdata?sslmode=disable"),

		// Redis 配置
		RedisURL: getEnv("REDIS_URL", ""),

		// AMQP 配置
		AMQPUrl:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "footdata.matches"),

		// 服务器配置
		Port: getEnv("PORT", "8080"),

		// 其他配置
		Environment: getEnv("ENVIRONMENT", "development"),

		// 配额配置
		MaxRequestsPerMinute: getEnvInt("MAX_REQUESTS_PER_MINUTE", 10),
		DailyQuota:           getEnvInt("DAILY_QUOTA", 7500),
		QuotaHighWater:       getEnvInt("QUOTA_HIGH_WATER", 90),

		// 后台同步配置
		AutoSync:         getEnv("AUTO_SYNC", "true") == "true",
		SmartSyncMinutes: getEnvInt("SMART_SYNC_MINUTES", 15),
		LiveSyncMinutes:  getEnvInt("LIVE_SYNC_MINUTES", 2),
		TrackedLeagueIDs: getTrackedLeagues(),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result int
	fmt.Sscanf(value, "%d", &result)
	if result == 0 {
		return defaultValue
	}
	return result
}

// getTrackedLeagues 解析需要后台同步的联赛 ID 列表
// 默认: 英超 39, 西甲 140, 德甲 78, 意甲 135, 法甲 61
func getTrackedLeagues() []int {
	raw := getEnv("TRACKED_LEAGUES", "39,140,78,135,61")
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		var id int
		fmt.Sscanf(strings.TrimSpace(p), "%d", &id)
		if id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
