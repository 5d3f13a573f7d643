package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	GRPCRequestTimeout time.Duration
	ShutdownTimeout    time.Duration

	LogLevel  string
	LogFormat string

	// DatabaseURL empty selects the in-memory store.
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBConnectTimeout  time.Duration
	DBAutoMigrate     bool

	JWTSecret string

	// KafkaBrokers empty selects the log notifier.
	KafkaBrokers string
	KafkaTopic   string

	// RedisURL empty selects the in-process rate limiter.
	RedisURL       string
	RateLimitRPS   float64
	RateLimitBurst int

	BlockPolicy         string
	EnforceWorkingHours bool
	DefaultDuration     int
	HealthInterval      time.Duration
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AGENDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("grpc.request_timeout", "10s")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.connect_timeout", "5s")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "agenda.bookings")
	v.SetDefault("redis.url", "")
	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("scheduling.block_policy", "reject_bookings")
	v.SetDefault("scheduling.enforce_working_hours", true)
	v.SetDefault("scheduling.default_duration", 30)
	v.SetDefault("health.interval", "10s")

	_ = v.BindEnv("http.addr", "AGENDA_HTTP_ADDR", "HTTP_ADDR")
	_ = v.BindEnv("grpc.addr", "AGENDA_GRPC_ADDR", "GRPC_ADDR")
	_ = v.BindEnv("grpc.request_timeout", "AGENDA_GRPC_REQUEST_TIMEOUT")
	_ = v.BindEnv("shutdown.timeout", "AGENDA_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "AGENDA_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "AGENDA_LOG_FORMAT", "LOG_FORMAT")
	_ = v.BindEnv("database.url", "AGENDA_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.max_open_conns", "AGENDA_DATABASE_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "AGENDA_DATABASE_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "AGENDA_DATABASE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "AGENDA_DATABASE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("database.connect_timeout", "AGENDA_DATABASE_CONNECT_TIMEOUT")
	_ = v.BindEnv("database.auto_migrate", "AGENDA_DATABASE_AUTO_MIGRATE")
	_ = v.BindEnv("auth.jwt_secret", "AGENDA_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("kafka.brokers", "AGENDA_KAFKA_BROKERS", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.topic", "AGENDA_KAFKA_TOPIC")
	_ = v.BindEnv("redis.url", "AGENDA_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("ratelimit.rps", "AGENDA_RATELIMIT_RPS")
	_ = v.BindEnv("ratelimit.burst", "AGENDA_RATELIMIT_BURST")
	_ = v.BindEnv("scheduling.block_policy", "AGENDA_SCHEDULING_BLOCK_POLICY")
	_ = v.BindEnv("scheduling.enforce_working_hours", "AGENDA_SCHEDULING_ENFORCE_WORKING_HOURS")
	_ = v.BindEnv("scheduling.default_duration", "AGENDA_SCHEDULING_DEFAULT_DURATION")
	_ = v.BindEnv("health.interval", "AGENDA_HEALTH_INTERVAL")

	durations := map[string]*time.Duration{}
	var cfg Config
	durations["grpc.request_timeout"] = &cfg.GRPCRequestTimeout
	durations["shutdown.timeout"] = &cfg.ShutdownTimeout
	durations["database.conn_max_lifetime"] = &cfg.DBConnMaxLifetime
	durations["database.conn_max_idle_time"] = &cfg.DBConnMaxIdleTime
	durations["database.connect_timeout"] = &cfg.DBConnectTimeout
	durations["health.interval"] = &cfg.HealthInterval
	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	cfg.HTTPAddr = strings.TrimSpace(v.GetString("http.addr"))
	cfg.GRPCAddr = strings.TrimSpace(v.GetString("grpc.addr"))
	cfg.LogLevel = v.GetString("log.level")
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(v.GetString("log.format")))
	cfg.DatabaseURL = strings.TrimSpace(v.GetString("database.url"))
	cfg.DBMaxOpenConns = v.GetInt("database.max_open_conns")
	cfg.DBMaxIdleConns = v.GetInt("database.max_idle_conns")
	cfg.DBAutoMigrate = v.GetBool("database.auto_migrate")
	cfg.JWTSecret = v.GetString("auth.jwt_secret")
	cfg.KafkaBrokers = strings.TrimSpace(v.GetString("kafka.brokers"))
	cfg.KafkaTopic = strings.TrimSpace(v.GetString("kafka.topic"))
	cfg.RedisURL = strings.TrimSpace(v.GetString("redis.url"))
	cfg.RateLimitRPS = v.GetFloat64("ratelimit.rps")
	cfg.RateLimitBurst = v.GetInt("ratelimit.burst")
	cfg.BlockPolicy = v.GetString("scheduling.block_policy")
	cfg.EnforceWorkingHours = v.GetBool("scheduling.enforce_working_hours")
	cfg.DefaultDuration = v.GetInt("scheduling.default_duration")

	if cfg.DefaultDuration < 1 || cfg.DefaultDuration > 1440 {
		return Config{}, fmt.Errorf("scheduling.default_duration must be between 1 and 1440, got %d", cfg.DefaultDuration)
	}
	return cfg, nil
}
