package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "collaborative-coding/internal/handler/http"
	wsHandler "collaborative-coding/internal/handler/websocket"
	"collaborative-coding/internal/hub"
	gormpersistence "collaborative-coding/internal/infra/persistence/gorm"
	"collaborative-coding/internal/infra/persistence/memory"
	"collaborative-coding/internal/infra/sandbox/piston"
	"collaborative-coding/internal/infra/setup"
	redisstate "collaborative-coding/internal/infra/state/redis"
	"collaborative-coding/internal/middleware"
	"collaborative-coding/internal/repository"
	"collaborative-coding/internal/service"
	"collaborative-coding/internal/tasks"
	"collaborative-coding/internal/worker"
)

// activeRoomSweepSchedule 是周期性刷新活跃房间的 cron 表达式
const activeRoomSweepSchedule = "@every 5m"

// App 包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB // DB_DRIVER=memory 时为 nil
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
	roomService    *service.RoomService
	hubCancel      context.CancelFunc
}

// repositories 是三个存储库接口的集合
type repositories struct {
	users repository.UserRepository
	rooms repository.RoomRepository
	files repository.FileRepository
}

// NewLogger 根据配置创建 logrus Logger
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // LoadConfig 已验证
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	// 各组件使用 logrus 包级函数记录日志，保持同样的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := NewLogger(cfg)
	log.WithFields(logrus.Fields{"env": cfg.AppEnv, "db_driver": cfg.DBDriver, "redis": cfg.RedisEnabled()}).
		Info("Configuration loaded successfully")

	app := &App{Config: cfg, Log: log}

	// 3. 初始化存储
	repos, err := app.initRepositories()
	if err != nil {
		return nil, err
	}

	// 4. 初始化 Redis 相关基础设施 (可选)
	var (
		relay       hub.Relay
		rateLimiter middleware.RateLimiter
	)
	if cfg.RedisEnabled() {
		redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
		app.RedisClient = redisClient
		relay = redisstate.NewRedisRelay(redisClient, cfg.KeyPrefix)
		rateLimiter = redisstate.NewRedisRateLimiter(redisClient, cfg.KeyPrefix)

		app.redisClientOpt = asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		app.AsynqClient = asynq.NewClient(app.redisClientOpt)
		log.Info("Redis relay, rate limiter and task queue initialized")
	} else {
		log.Warn("REDIS_ADDR not set: running single-instance without relay, rate limit or task queue")
	}

	// 5. 初始化 Services
	authService, err := service.NewAuthService(repos.users, cfg.JWTSecret, cfg.JWTExpiryHours, cfg.IdentitySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	roomService := service.NewRoomService(repos.rooms)
	app.roomService = roomService

	var notifier service.ActivityNotifier = roomService
	if app.AsynqClient != nil {
		notifier = tasks.NewAsynqActivityNotifier(app.AsynqClient)
	}
	fileService := service.NewFileService(repos.rooms, repos.files, notifier)
	executionService := service.NewExecutionService(piston.NewClient(cfg.SandboxURL, cfg.SandboxTimeout))
	log.Info("Services initialized")

	// 6. 初始化 Hub
	app.Hub = hub.NewHub(roomService, relay)

	// 7. 初始化 Worker Server
	if app.AsynqClient != nil {
		app.AsynqServer = worker.NewWorkerServer(app.redisClientOpt, app.Hub, roomService, log)
	}

	// 8. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := NewRouter(RouterDeps{
		Log:               log,
		JWTSecret:         cfg.JWTSecret,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		RateLimitMax:      cfg.RateLimitMax,
		RateLimitWindow:   cfg.RateLimitWindow,
		Auth:              httpHandler.NewAuthHandler(authService),
		Rooms:             httpHandler.NewRoomHandler(roomService),
		Files:             httpHandler.NewFileHandler(fileService),
		Execute:           httpHandler.NewExecuteHandler(roomService, executionService),
		WS:                wsHandler.NewWebSocketHandler(app.Hub, authService, cfg.CORSAllowedOrigin),
	})

	// 9. 初始化 HTTP Server
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// initRepositories 根据 DB_DRIVER 选择 GORM 或内存存储
func (a *App) initRepositories() (repositories, error) {
	if a.Config.DBDriver == setup.DriverMemory {
		store := memory.NewStore()
		a.Log.Warn("Using in-memory store: data is lost on restart")
		return repositories{users: store.Users(), rooms: store.Rooms(), files: store.Files()}, nil
	}

	db, err := setup.InitDB(a.Config.DB())
	if err != nil {
		return repositories{}, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return repositories{}, fmt.Errorf("failed to migrate DB: %w", err)
	}
	a.DB = db
	return repositories{
		users: gormpersistence.NewGormUserRepository(db),
		rooms: gormpersistence.NewGormRoomRepository(db),
		files: gormpersistence.NewGormFileRepository(db),
	}, nil
}

// Start 启动 Hub、Worker 和 HTTP 服务器
func (a *App) Start() {
	hubCtx, cancel := context.WithCancel(context.Background())
	a.hubCancel = cancel
	go a.Hub.Run(hubCtx)
	a.Log.Info("Hub routine started")

	if a.AsynqServer != nil {
		go a.AsynqServer.Start()
		a.Log.Info("Asynq worker server routine started")
		a.registerPeriodicTasks()
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks 注册活跃房间刷新的周期任务
func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	payload, err := tasks.NewActiveRoomSweepTask()
	if err != nil {
		a.Log.Errorf("Failed to create active room sweep payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeActiveRoomSweep, payload)

	entryID, err := scheduler.Register(activeRoomSweepSchedule, task, asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register active room sweep task: %v", err)
		return
	}
	a.Log.Infof("Active room sweep registered with schedule '%s' (EntryID: %s)", activeRoomSweepSchedule, entryID)

	a.scheduler = scheduler
	go func() {
		if err := scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 停止 Hub 的跨实例订阅
	if a.hubCancel != nil {
		a.hubCancel()
	}

	// 3. 停止周期任务和 Worker
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 关闭 Asynq Client 与 Redis
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	// 5. 关闭数据库连接池
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}
