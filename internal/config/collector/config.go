package collector_config

import (
	"time"

	"github.com/backfield/gridiron/internal/obs"
	pg "github.com/backfield/gridiron/internal/repository/postgres"
	rediscache "github.com/backfield/gridiron/internal/repository/redis"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// Madden selects the game cycle the collector talks to.
type Madden struct {
	Year     int    `mapstructure:"year"`
	Platform string `mapstructure:"platform"`
}

type Auth struct {
	TokensPath         string        `mapstructure:"tokens_path"`
	SessionContextPath string        `mapstructure:"session_context_path"`
	AuthPoolPath       string        `mapstructure:"auth_pool_path"`
	UseAuthPool        bool          `mapstructure:"use_auth_pool"`
	DeviceID           string        `mapstructure:"device_id"`
	SafetyMargin       time.Duration `mapstructure:"safety_margin"`
	MintCooldown       time.Duration `mapstructure:"mint_cooldown"`
	MaxBackups         int           `mapstructure:"max_backups"`
}

type EA struct {
	WALBase     string        `mapstructure:"wal_base"`
	Cookie      string        `mapstructure:"cookie"`
	Timeout     time.Duration `mapstructure:"timeout"`
	InsecureTLS bool          `mapstructure:"insecure_tls"`
}

type Collect struct {
	Poll           time.Duration `mapstructure:"poll"`
	PageSize       int           `mapstructure:"page_size"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
}

type DBCfg struct {
	Enable            bool          `mapstructure:"enable"`
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	BatchSize         int           `mapstructure:"batch_size"`
}

func (d *DBCfg) AsPostgresConfig() pg.Config {
	return pg.Config{
		URL:               d.DSN,
		MaxConns:          d.MaxConns,
		MinConns:          d.MinConns,
		MaxConnLifetime:   d.MaxConnLifetime,
		MaxConnIdleTime:   d.MaxConnIdleTime,
		HealthCheckPeriod: d.HealthCheckPeriod,
		QueryTimeout:      d.QueryTimeout,
	}
}

type RedisCfg struct {
	Enable      bool   `mapstructure:"enable"`
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	KeyPrefix   string `mapstructure:"key_prefix"`
	RecentKey   string `mapstructure:"recent_key"`
	RecentLimit int64  `mapstructure:"recent_limit"`
}

func (r *RedisCfg) AsCacheConfig() rediscache.Config {
	return rediscache.Config{
		Addr:        r.Addr,
		Password:    r.Password,
		DB:          r.DB,
		KeyPrefix:   r.KeyPrefix,
		RecentKey:   r.RecentKey,
		RecentLimit: r.RecentLimit,
	}
}

type KafkaCfg struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

type Config struct {
	App     App      `mapstructure:"app"`
	Madden  Madden   `mapstructure:"madden"`
	Auth    Auth     `mapstructure:"auth"`
	EA      EA       `mapstructure:"ea"`
	Collect Collect  `mapstructure:"collect"`
	DB      DBCfg    `mapstructure:"db"`
	Redis   RedisCfg `mapstructure:"redis"`
	Kafka   KafkaCfg `mapstructure:"kafka"`
	Server  Server   `mapstructure:"server"`
	OTEL    OTEL     `mapstructure:"otel"`
	Log     Log      `mapstructure:"log"`
}
