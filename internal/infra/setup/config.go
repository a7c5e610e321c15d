package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DBConfig 描述数据库连接参数。DSN 非空时优先于分散的字段。
type DBConfig struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	DSN      string
}

// InitDB 根据驱动初始化数据库连接
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB() // 获取底层的 *sql.DB 对象
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite 只允许单写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	logrus.WithField("driver", cfg.Driver).Info("Database connected")
	return db, nil
}

// dialectorFor 从配置构建 GORM Dialector
func dialectorFor(cfg DBConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverMySQL, "":
		dsn := cfg.DSN
		if dsn == "" {
			if cfg.User == "" {
				return nil, fmt.Errorf("DB_USER must be set for mysql")
			}
			host, port := withDefault(cfg.Host, "127.0.0.1"), withDefault(cfg.Port, "3306")
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				cfg.User, cfg.Password, host, port, withDefault(cfg.Name, "collab_db"))
		}
		return mysql.Open(dsn), nil
	case DriverPostgres:
		dsn := cfg.DSN
		if dsn == "" {
			if cfg.User == "" {
				return nil, fmt.Errorf("DB_USER must be set for postgres")
			}
			host, port := withDefault(cfg.Host, "127.0.0.1"), withDefault(cfg.Port, "5432")
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
				host, cfg.User, cfg.Password, withDefault(cfg.Name, "collab_db"), port)
		}
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(withDefault(cfg.DSN, "file:collab.db?_foreign_keys=on")), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// InitRedis 初始化 Redis 连接并用 PING 验证
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Redis connected")
	return client, nil
}
