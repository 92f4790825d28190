// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config 存储应用配置（全部来自环境变量，可由 .env 提供）
type Config struct {
	// 基础配置
	Port      string `envconfig:"PORT" default:"8080"`
	DebugMode bool   `envconfig:"DEBUG_MODE" default:"true"`

	// 日志
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`
	LogFile     string `envconfig:"LOG_FILE" default:""`

	// 会话
	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1m"`
	MaxSessions          int           `envconfig:"MAX_SESSIONS" default:"10000"`

	// HTTP
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	TrustedProxies     string        `envconfig:"TRUSTED_PROXIES" default:""`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MetricsEnabled     bool          `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// .env 文件是可选的
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置取值是否合理
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT 不能为空")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL 必须大于0")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL 必须大于0")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("MAX_SESSIONS 不能为负数")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE 不能为负数")
	}
	return nil
}

// GetAllowedOrigins 解析逗号分隔的 CORS 来源列表
func (c *Config) GetAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// GetTrustedProxies 解析可信代理列表；为空时不信任任何转发头，客户端 IP 取连接地址
func (c *Config) GetTrustedProxies() []string {
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
