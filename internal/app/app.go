package app

import (
	"context"
	"examprep_backend/internal/config"
	"examprep_backend/internal/controller"
	"examprep_backend/internal/repository"
	"examprep_backend/internal/service"
	"examprep_backend/pkg/configwatcher"
	"examprep_backend/pkg/database"
	"examprep_backend/pkg/logger"
	"examprep_backend/pkg/monitoring"
	"examprep_backend/pkg/security"
	"examprep_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	repos           *repositories
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	tx      *repository.Transactor
	user    *repository.UserRepository
	role    *repository.RoleRepository
	refresh *repository.RefreshTokenRepository
	revoked *repository.RevokedTokenRepository
	test    *repository.TestRepository
	attempt *repository.AttemptRepository
}

type services struct {
	auth      *service.AuthService
	profile   *service.ProfileService
	test      *service.TestService
	attempt   *service.AttemptService
	adminUser *service.AdminUserService
	storage   *service.StorageService
	cleanup   *service.CleanupService
}

type controllers struct {
	auth      *controller.AuthController
	profile   *controller.ProfileController
	test      *controller.TestController
	adminTest *controller.AdminTestController
	adminUser *controller.AdminUserController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		tx:      repository.NewTransactor(db),
		user:    repository.NewUserRepository(db),
		role:    repository.NewRoleRepository(db),
		refresh: repository.NewRefreshTokenRepository(db),
		revoked: repository.NewRevokedTokenRepository(db, rdb),
		test:    repository.NewTestRepository(db),
		attempt: repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	mailer := service.NewMailer(
		service.NewSMTPSender(cfg.Email),
		service.NewFileTemplateRenderer(cfg.Email.TemplateDir),
		cfg.Email.From,
	)
	tokens := service.NewTokenService(repos.refresh, cfg.JWT)

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.tx, repos.user, repos.role, repos.refresh, repos.revoked, tokens, mailer, cfg)
	s.profile = service.NewProfileService(repos.tx, repos.user, s.storage, mailer, cfg)
	s.test = service.NewTestService(repos.tx, repos.user, repos.test, s.storage)
	s.attempt = service.NewAttemptService(repos.tx, repos.user, repos.test, repos.attempt)
	s.adminUser = service.NewAdminUserService(repos.tx, repos.user, repos.role, cfg)
	s.cleanup = service.NewCleanupService(repos.refresh, repos.revoked, cfg.Cleanup)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	maxUpload := a.Config.Storage.MaxImageBytes
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		profile:   controller.NewProfileController(s.profile, s.attempt, maxUpload),
		test:      controller.NewTestController(s.test, s.attempt),
		adminTest: controller.NewAdminTestController(s.test, s.attempt, maxUpload),
		adminUser: controller.NewAdminUserController(s.adminUser),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute, "/health", "/metrics"))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// applyConfig 配置热更新：日志级别与设备绑定豁免邮箱
func (a *App) applyConfig(cfg *config.Config) {
	logger.SetMode(cfg.Server.Mode)
	a.services.auth.SetDeviceBypassEmail(cfg.Security.DeviceBypassEmail)
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	// Redis 仅作注销名单缓存，不可用时回退到数据库
	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Warn("Redis unavailable, revocation cache disabled", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	repos := app.initRepositories(db, app.Redis)
	app.repos = repos
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, app.Redis)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := services.adminUser.EnsureAdmin(ctx, cfg.Admin); err != nil {
		logger.Log.Fatal("Failed to seed admin user", zap.Error(err))
	}

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	if err := services.cleanup.Start(); err != nil {
		logger.Log.Fatal("Failed to schedule token cleanup", zap.Error(err))
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := configwatcher.WatchConfig(watchCtx, configFile, a.applyConfig); err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.services.cleanup.Stop()
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
