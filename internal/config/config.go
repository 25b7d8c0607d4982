package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Security  SecurityConfig `mapstructure:"security"`
	Email     EmailConfig    `mapstructure:"email"`
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	MigrateOnly bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"`
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	LogLevel  string `mapstructure:"log_level"`
}

type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	Issuer                 string `mapstructure:"issuer"`
	Audience               string `mapstructure:"audience"`
	AccessTokenTTLSeconds  int64  `mapstructure:"access_token_ttl_seconds"`
	RefreshTokenTTLSeconds int64  `mapstructure:"refresh_token_ttl_seconds"`
}

func (c JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

func (c JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLSeconds) * time.Second
}

// LockoutPolicy 单个锁定轨道的阈值配置
type LockoutPolicy struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	LockMinutes int `mapstructure:"lock_minutes"`
	TTLMinutes  int `mapstructure:"ttl_minutes"`
}

func (p LockoutPolicy) LockDuration() time.Duration {
	return time.Duration(p.LockMinutes) * time.Minute
}

func (p LockoutPolicy) TTL() time.Duration {
	return time.Duration(p.TTLMinutes) * time.Minute
}

type SecurityConfig struct {
	Verification          LockoutPolicy `mapstructure:"verification"`
	Login                 LockoutPolicy `mapstructure:"login"`
	PasswordReset         LockoutPolicy `mapstructure:"password_reset"`
	EmailChange           LockoutPolicy `mapstructure:"email_change"`
	ResendCooldownSeconds int           `mapstructure:"resend_cooldown_seconds"`
	DeviceBypassEmail     string        `mapstructure:"device_bypass_email"`
	BcryptCost            int           `mapstructure:"bcrypt_cost"`
}

func (c SecurityConfig) ResendCooldown() time.Duration {
	return time.Duration(c.ResendCooldownSeconds) * time.Second
}

type EmailConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	From        string `mapstructure:"from"`
	TemplateDir string `mapstructure:"template_dir"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
	MaxImageBytes int64  `mapstructure:"max_image_bytes"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServiceName       string `mapstructure:"service_name"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Host     string
	Port     int
	Password string
	DB       int
}

// AdminConfig 启动时初始化的管理员账号
type AdminConfig struct {
	Email     string `mapstructure:"email"`
	Password  string `mapstructure:"password"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
}

type CleanupConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	RefreshTokenSpec string `mapstructure:"refresh_token_spec"`
	RevokedTokenSpec string `mapstructure:"revoked_token_spec"`
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.charset", "utf8mb4")
	viper.SetDefault("database.parsetime", true)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.log_level", "warn")

	viper.SetDefault("jwt.issuer", "examprep")
	viper.SetDefault("jwt.audience", "examprep-clients")
	viper.SetDefault("jwt.access_token_ttl_seconds", 3600)
	viper.SetDefault("jwt.refresh_token_ttl_seconds", 604800)

	viper.SetDefault("security.verification.max_attempts", 5)
	viper.SetDefault("security.verification.lock_minutes", 60)
	viper.SetDefault("security.verification.ttl_minutes", 15)
	viper.SetDefault("security.login.max_attempts", 5)
	viper.SetDefault("security.login.lock_minutes", 30)
	viper.SetDefault("security.password_reset.max_attempts", 5)
	viper.SetDefault("security.password_reset.lock_minutes", 60)
	viper.SetDefault("security.password_reset.ttl_minutes", 30)
	viper.SetDefault("security.email_change.max_attempts", 5)
	viper.SetDefault("security.email_change.lock_minutes", 60)
	viper.SetDefault("security.email_change.ttl_minutes", 15)
	viper.SetDefault("security.resend_cooldown_seconds", 60)
	viper.SetDefault("security.bcrypt_cost", 12)

	viper.SetDefault("email.port", 587)
	viper.SetDefault("email.template_dir", "templates/email")

	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "uploads")
	viper.SetDefault("storage.max_image_bytes", 5*1024*1024)

	viper.SetDefault("tracing.service_name", "examprep-backend")

	viper.SetDefault("rate_limit.max_requests", 60)
	viper.SetDefault("rate_limit.window_minutes", 1)

	viper.SetDefault("cleanup.enabled", true)
	viper.SetDefault("cleanup.refresh_token_spec", "@hourly")
	viper.SetDefault("cleanup.revoked_token_spec", "@every 6h")
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("EXAMPREP")
	viper.AutomaticEnv()

	setDefaults()

	// Database
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.access_token_ttl_seconds", "JWT_ACCESS_TOKEN_TTL_SECONDS")
	viper.BindEnv("jwt.refresh_token_ttl_seconds", "JWT_REFRESH_TOKEN_TTL_SECONDS")

	// Security
	viper.BindEnv("security.device_bypass_email", "DEVICE_BYPASS_EMAIL")

	// Email
	viper.BindEnv("email.host", "SMTP_HOST")
	viper.BindEnv("email.port", "SMTP_PORT")
	viper.BindEnv("email.username", "SMTP_USERNAME")
	viper.BindEnv("email.password", "SMTP_PASSWORD")
	viper.BindEnv("email.from", "SMTP_FROM")

	// Redis
	viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Admin
	viper.BindEnv("admin.email", "ADMIN_EMAIL")
	viper.BindEnv("admin.password", "ADMIN_PASSWORD")

	// Storage / OSS
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 校验启动所需的关键配置
func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.JWT.AccessTokenTTLSeconds <= 0 || c.JWT.RefreshTokenTTLSeconds <= 0 {
		return fmt.Errorf("jwt token lifetimes must be positive")
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	for name, p := range map[string]LockoutPolicy{
		"verification":   c.Security.Verification,
		"login":          c.Security.Login,
		"password_reset": c.Security.PasswordReset,
		"email_change":   c.Security.EmailChange,
	} {
		if p.MaxAttempts <= 0 || p.LockMinutes <= 0 {
			return fmt.Errorf("security.%s: max_attempts and lock_minutes must be positive", name)
		}
	}
	return nil
}
