package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App     AppConfig     `json:"app"`
	MySQL   MySQLConfig   `json:"mysql"`
	Redis   RedisConfig   `json:"redis"`
	Scraper ScraperConfig `json:"scraper"`
	Email   EmailConfig   `json:"email"`
	Alert   AlertConfig   `json:"alert"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env            string        `json:"env"`              // 运行环境: local / prod
	LogLevel       string        `json:"log_level"`        // 日志级别: debug / info / warn / error
	HTTPAddr       string        `json:"http_addr"`        // API 服务监听地址
	DemoFallback   bool          `json:"demo_fallback"`    // 所有来源均为空时是否返回演示数据
	SourceTimeout  time.Duration `json:"source_timeout"`   // 单个来源的抓取超时
	RecentSearches int           `json:"recent_searches"`  // 最近搜索保留条数
	WorkerPoolSize int           `json:"worker_pool_size"` // 刷新 Worker Pool 大小
	QueueCapacity  int           `json:"queue_capacity"`   // 刷新队列容量
	RateLimit      float64       `json:"rate_limit"`       // 抓取限流速率（token/s）
	RateBurst      float64       `json:"rate_burst"`       // 抓取限流桶容量
	DedupWindow    time.Duration `json:"dedup_window"`     // 抓取 URL 去重窗口
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 缓存配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// ScraperConfig 抓取器配置。
type ScraperConfig struct {
	UserAgent       string        `json:"user_agent"`        // 请求 User-Agent
	RequestTimeout  time.Duration `json:"request_timeout"`   // 单次 HTTP 请求超时
	MinRequestDelay time.Duration `json:"min_request_delay"` // 请求间最小随机延迟
	MaxRequestDelay time.Duration `json:"max_request_delay"` // 请求间最大随机延迟
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// AlertConfig 价格告警配置。
type AlertConfig struct {
	CheckInterval time.Duration `json:"check_interval"` // 告警评估周期（调度器刷新间隔）
	// ThresholdPercent 来自历史配置，触发评估只使用 above/below
	// 绝对阈值规则，该字段目前不参与任何计算。
	ThresholdPercent float64 `json:"threshold_percent"`
}

// Load 从 JSON 文件加载配置。
//
// 配置文件不存在时使用默认值，环境变量始终可以覆盖文件与默认值。
//
// 参数:
//
//	configPath: 配置文件路径（为空则使用默认路径 "configs/config.json"）
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:            "local",
			LogLevel:       "info",
			HTTPAddr:       ":8080",
			DemoFallback:   true,
			SourceTimeout:  30 * time.Second,
			RecentSearches: 5,
			WorkerPoolSize: 8,
			QueueCapacity:  256,
			RateLimit:      1,
			RateBurst:      3,
			DedupWindow:    time.Minute,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/pricehawk?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Scraper: ScraperConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:  30 * time.Second,
			MinRequestDelay: 1 * time.Second,
			MaxRequestDelay: 3 * time.Second,
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "price.tracker@example.com",
		},
		Alert: AlertConfig{
			CheckInterval:    time.Hour,
			ThresholdPercent: 0.5,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.SourceTimeout == 0 {
		cfg.App.SourceTimeout = defaults.App.SourceTimeout
	}
	if cfg.App.RecentSearches == 0 {
		cfg.App.RecentSearches = defaults.App.RecentSearches
	}
	if cfg.App.WorkerPoolSize == 0 {
		cfg.App.WorkerPoolSize = defaults.App.WorkerPoolSize
	}
	if cfg.App.QueueCapacity == 0 {
		cfg.App.QueueCapacity = defaults.App.QueueCapacity
	}
	if cfg.App.RateLimit == 0 {
		cfg.App.RateLimit = defaults.App.RateLimit
	}
	if cfg.App.RateBurst == 0 {
		cfg.App.RateBurst = defaults.App.RateBurst
	}
	if cfg.App.DedupWindow == 0 {
		cfg.App.DedupWindow = defaults.App.DedupWindow
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = defaults.Scraper.UserAgent
	}
	if cfg.Scraper.RequestTimeout == 0 {
		cfg.Scraper.RequestTimeout = defaults.Scraper.RequestTimeout
	}
	if cfg.Scraper.MinRequestDelay == 0 {
		cfg.Scraper.MinRequestDelay = defaults.Scraper.MinRequestDelay
	}
	if cfg.Scraper.MaxRequestDelay == 0 {
		cfg.Scraper.MaxRequestDelay = defaults.Scraper.MaxRequestDelay
	}
	if cfg.Email.SMTPHost == "" {
		cfg.Email.SMTPHost = defaults.Email.SMTPHost
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Email.FromEmail == "" {
		cfg.Email.FromEmail = defaults.Email.FromEmail
	}
	if cfg.Alert.CheckInterval == 0 {
		cfg.Alert.CheckInterval = defaults.Alert.CheckInterval
	}
	if cfg.Alert.ThresholdPercent == 0 {
		cfg.Alert.ThresholdPercent = defaults.Alert.ThresholdPercent
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_DEMO_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.App.DemoFallback = b
		}
	}
	if v := os.Getenv("APP_SOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.SourceTimeout = d
		}
	}
	if v := os.Getenv("APP_WORKER_POOL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.WorkerPoolSize = i
		}
	}
	if v := os.Getenv("APP_QUEUE_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.QueueCapacity = i
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateBurst = f
		}
	}
	if v := os.Getenv("APP_DEDUP_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.DedupWindow = d
		}
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if viper.GetString("db_host") != "" || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := viper.GetString("db_host"); v != "" {
			port := os.Getenv("DB_PORT")
			if port == "" {
				port = "3306"
			}
			parsed.Addr = v + ":" + port
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SCRAPER_USER_AGENT"); v != "" {
		cfg.Scraper.UserAgent = v
	}
	if v := os.Getenv("SCRAPER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scraper.RequestTimeout = d
		}
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}

	if v := os.Getenv("ALERT_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Alert.CheckInterval = d
		}
	}
	if v := os.Getenv("ALERT_THRESHOLD_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Alert.ThresholdPercent = f
		}
	}
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Passwd: "",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "pricehawk",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		SourceTimeout string `json:"source_timeout"`
		DedupWindow   string `json:"dedup_window"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.SourceTimeout != "" {
		d, err := time.ParseDuration(aux.SourceTimeout)
		if err != nil {
			return fmt.Errorf("invalid source_timeout format: %w", err)
		}
		a.SourceTimeout = d
	}
	if aux.DedupWindow != "" {
		d, err := time.ParseDuration(aux.DedupWindow)
		if err != nil {
			return fmt.Errorf("invalid dedup_window format: %w", err)
		}
		a.DedupWindow = d
	}
	return nil
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (s *ScraperConfig) UnmarshalJSON(data []byte) error {
	type Alias ScraperConfig
	aux := &struct {
		RequestTimeout  string `json:"request_timeout"`
		MinRequestDelay string `json:"min_request_delay"`
		MaxRequestDelay string `json:"max_request_delay"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.RequestTimeout != "" {
		d, err := time.ParseDuration(aux.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout format: %w", err)
		}
		s.RequestTimeout = d
	}
	if aux.MinRequestDelay != "" {
		d, err := time.ParseDuration(aux.MinRequestDelay)
		if err != nil {
			return fmt.Errorf("invalid min_request_delay format: %w", err)
		}
		s.MinRequestDelay = d
	}
	if aux.MaxRequestDelay != "" {
		d, err := time.ParseDuration(aux.MaxRequestDelay)
		if err != nil {
			return fmt.Errorf("invalid max_request_delay format: %w", err)
		}
		s.MaxRequestDelay = d
	}
	return nil
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (c *AlertConfig) UnmarshalJSON(data []byte) error {
	type Alias AlertConfig
	aux := &struct {
		CheckInterval string `json:"check_interval"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.CheckInterval != "" {
		d, err := time.ParseDuration(aux.CheckInterval)
		if err != nil {
			return fmt.Errorf("invalid check_interval format: %w", err)
		}
		c.CheckInterval = d
	}
	return nil
}
