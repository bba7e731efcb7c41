package sessiongen_config

import (
	"strings"

	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("madden.year", 2026)
	v.SetDefault("madden.platform", "xbsx")

	v.SetDefault("auth.tokens_path", "tokens.json")
	v.SetDefault("auth.session_context_path", "auction_data/current_session_context.json")
	v.SetDefault("auth.safety_margin", "5m")

	v.SetDefault("ea.wal_base", "")
	v.SetDefault("ea.timeout", "10s")
	v.SetDefault("ea.insecure_tls", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
