package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config estate-leads（CRM HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       struct {
		Level  string
		Format string
	}
	Notify  NotifyConfig  `yaml:"notify"`
	Scanner ScannerConfig `yaml:"scanner"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NotifyConfig 通知网关配置（WhatsApp/SMS/Email 网关均为外部HTTP服务）
type NotifyConfig struct {
	GatewayBaseURL string        `yaml:"gateway_base_url"` // 网关地址（/api/send-whatsapp 等路径挂在其下）
	AdminPhone     string        `yaml:"admin_phone"`      // 内部管理员 WhatsApp 号码
	AdminEmail     string        `yaml:"admin_email"`      // 内部管理员邮箱
	Timeout        time.Duration `yaml:"timeout"`          // 单次网关调用超时
	RetryCount     int           `yaml:"retry_count"`      // 网关调用重试次数
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`  // 幂等键存活时间（跨触发点去重窗口）
}

// ScannerConfig 跟进扫描配置（替代前端 setInterval 的持久化调度）
type ScannerConfig struct {
	Enabled           bool          `yaml:"enabled"`
	CheckInterval     time.Duration `yaml:"check_interval"`      // 扫描间隔
	NoContactAfter    time.Duration `yaml:"no_contact_after"`    // 超过该时长未更新则触发再触达
	ReminderLookahead time.Duration `yaml:"reminder_lookahead"` // 预约提醒提前量
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: if DB is unavailable, estate-leads falls back to memory repos.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "estate_leads")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 通知网关配置
	cfg.Notify.GatewayBaseURL = getEnv("NOTIFY_GATEWAY_URL", "http://localhost:9000")
	cfg.Notify.AdminPhone = getEnv("NOTIFY_ADMIN_PHONE", "")
	cfg.Notify.AdminEmail = getEnv("NOTIFY_ADMIN_EMAIL", "")
	cfg.Notify.Timeout = parseDuration(getEnv("NOTIFY_TIMEOUT", "10s"), 10*time.Second)
	cfg.Notify.RetryCount = parseInt(getEnv("NOTIFY_RETRY_COUNT", "2"), 2)
	cfg.Notify.IdempotencyTTL = parseDuration(getEnv("NOTIFY_IDEMPOTENCY_TTL", "24h"), 24*time.Hour)

	// 跟进扫描配置
	cfg.Scanner.Enabled = getEnv("SCANNER_ENABLED", "true") == "true"
	cfg.Scanner.CheckInterval = parseDuration(getEnv("SCANNER_CHECK_INTERVAL", "10m"), 10*time.Minute)
	cfg.Scanner.NoContactAfter = parseDuration(getEnv("SCANNER_NO_CONTACT_AFTER", "72h"), 72*time.Hour)
	cfg.Scanner.ReminderLookahead = parseDuration(getEnv("SCANNER_REMINDER_LOOKAHEAD", "1h"), time.Hour)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}
