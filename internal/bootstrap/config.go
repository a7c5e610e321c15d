package bootstrap

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"collaborative-coding/internal/infra/setup"
)

// Config 存储从 .env 和环境变量加载的配置
type Config struct {
	AppEnv     string `mapstructure:"app_env"`
	ServerPort string `mapstructure:"server_port"`
	LogLevel   string `mapstructure:"log_level"`

	DBDriver   string `mapstructure:"db_driver"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBName     string `mapstructure:"db_name"`
	DBDSN      string `mapstructure:"db_dsn"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"redis_key_prefix"`

	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTExpiryHours int    `mapstructure:"jwt_expiry_hours"`
	IdentitySecret string `mapstructure:"identity_secret"`

	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`

	CORSAllowedOrigin string `mapstructure:"cors_allowed_origin"`

	SandboxURL     string        `mapstructure:"sandbox_url"`
	SandboxTimeout time.Duration `mapstructure:"sandbox_timeout"`
}

// DB 返回数据库连接参数
func (c *Config) DB() setup.DBConfig {
	return setup.DBConfig{
		Driver:   c.DBDriver,
		User:     c.DBUser,
		Password: c.DBPassword,
		Host:     c.DBHost,
		Port:     c.DBPort,
		Name:     c.DBName,
		DSN:      c.DBDSN,
	}
}

// RedisEnabled 表示是否配置了 Redis (跨实例转发、限流、任务队列)
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// LoadConfig 从 .env 文件 (可选) 和环境变量加载配置
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	v := viper.New()
	v.AutomaticEnv()

	// AutomaticEnv 只对已知 key 生效，因此每个 key 都需要默认值
	v.SetDefault("app_env", "development")
	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", setup.DriverMySQL)
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_host", "")
	v.SetDefault("db_port", "")
	v.SetDefault("db_name", "")
	v.SetDefault("db_dsn", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_key_prefix", "cr:")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expiry_hours", 24)
	v.SetDefault("identity_secret", "")
	v.SetDefault("rate_limit_max", 100)
	v.SetDefault("rate_limit_window", "1s")
	v.SetDefault("cors_allowed_origin", "http://localhost:3000")
	v.SetDefault("sandbox_url", "https://emkc.org/api/v2/piston")
	v.SetDefault("sandbox_timeout", "15s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	if cfg.IdentitySecret == "" {
		return nil, fmt.Errorf("environment variable IDENTITY_SECRET must be set")
	}
	switch cfg.DBDriver {
	case setup.DriverMySQL, setup.DriverPostgres, setup.DriverSQLite, setup.DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 100
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Second
	}

	return &cfg, nil
}
