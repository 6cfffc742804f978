package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"ProjectHub/tools/errs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "PHUB"

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CorsOrigins     []string      `mapstructure:"cors_origins"`
	PublicURL       string        `mapstructure:"public_url"`
}

type MongoConfig struct {
	Uri         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	MaxRetry    int    `mapstructure:"max_retry"`
}

type JwtConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RealtimeConfig struct {
	NodeID         int64         `mapstructure:"node_id"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	RequireToken   bool          `mapstructure:"require_token"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

type NatsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Servers []string `mapstructure:"servers"`
	Subject string   `mapstructure:"subject"`
	Name    string   `mapstructure:"name"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Retries int      `mapstructure:"retries"`

	// 启动时确保 topic 存在
	EnsureTopic bool  `mapstructure:"ensure_topic"`
	Partitions  int32 `mapstructure:"partitions"`
}

type UploadConfig struct {
	Dir     string `mapstructure:"dir"`
	MaxSize int64  `mapstructure:"max_size"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type AppConfig struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Jwt      JwtConfig      `mapstructure:"jwt"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Nats     NatsConfig     `mapstructure:"nats"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.public_url", "http://localhost:8000")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "project_hub")
	v.SetDefault("mongo.username", "")
	v.SetDefault("mongo.password", "")
	v.SetDefault("mongo.max_pool_size", 100)
	v.SetDefault("mongo.max_retry", 3)

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.ttl", 2*time.Hour)

	v.SetDefault("realtime.node_id", 1)
	v.SetDefault("realtime.ping_interval", 25*time.Second)
	v.SetDefault("realtime.write_wait", 10*time.Second)
	v.SetDefault("realtime.max_message_size", 64*1024)
	v.SetDefault("realtime.require_token", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.presence_ttl", 2*time.Hour)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.servers", []string{"nats://127.0.0.1:4222"})
	v.SetDefault("nats.subject", "realtime.relay")
	v.SetDefault("nats.name", "project-hub")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic", "phub.activity")
	v.SetDefault("kafka.retries", 3)
	v.SetDefault("kafka.ensure_topic", false)
	v.SetDefault("kafka.partitions", 8)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_size", 10*1024*1024)

	v.SetDefault("log.level", "debug")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
}

// Load 读取默认值、可选的 config/.env.<env> 文件和 PHUB_ 前缀的环境变量
func Load() (*AppConfig, error) {
	return LoadFrom(".")
}

func LoadFrom(root string) (*AppConfig, error) {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		env = "dev"
	}

	// a missing file is fine, a broken one is not
	dotEnvPath := filepath.Join(root, "config", ".env."+env)
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errs.WrapMsg(err, "load dotenv", "path", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errs.WrapMsg(err, "stat dotenv", "path", dotEnvPath)
	}

	v := viper.New()
	setDefaults(v)
	v.Set("env", env)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.Mongo.Uri == "" || c.Mongo.Database == "" {
		return errs.ErrArgs.WrapMsg("mongo uri and database are required")
	}
	if c.Jwt.Secret == "" {
		return errs.ErrArgs.WrapMsg("jwt secret is required")
	}
	if c.Env == "prod" && c.Jwt.Secret == "change-me-in-production" {
		return errs.ErrArgs.WrapMsg("jwt secret must be set in prod")
	}
	if c.Realtime.PingInterval <= 0 || c.Realtime.WriteWait <= 0 {
		return errs.ErrArgs.WrapMsg("realtime intervals must be positive")
	}
	if c.Upload.MaxSize <= 0 {
		return errs.ErrArgs.WrapMsg("upload max size must be positive")
	}
	return nil
}
