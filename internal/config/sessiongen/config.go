package sessiongen_config

import (
	"time"

	"github.com/backfield/gridiron/internal/obs"
)

type Madden struct {
	Year     int    `mapstructure:"year"`
	Platform string `mapstructure:"platform"`
}

type Auth struct {
	TokensPath         string        `mapstructure:"tokens_path"`
	SessionContextPath string        `mapstructure:"session_context_path"`
	SafetyMargin       time.Duration `mapstructure:"safety_margin"`
}

type EA struct {
	WALBase     string        `mapstructure:"wal_base"`
	Timeout     time.Duration `mapstructure:"timeout"`
	InsecureTLS bool          `mapstructure:"insecure_tls"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    "gridiron/sessiongen",
		Env:    "dev",
		Ver:    "dev",
	}
}

type Config struct {
	Madden Madden `mapstructure:"madden"`
	Auth   Auth   `mapstructure:"auth"`
	EA     EA     `mapstructure:"ea"`
	Log    Log    `mapstructure:"log"`
}
