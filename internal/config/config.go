package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	DNS      DNSConfig
	Pipeline PipelineConfig
	Mimir    MimirConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	DriftTTL time.Duration
}

type DNSConfig struct {
	Server    string
	QPS       float64
	Burst     int
	Selectors []string
}

type PipelineConfig struct {
	WorkerCount  int
	ScanTimeout  time.Duration
	EmailTimeout time.Duration
	WhoisEnabled bool
}

type MimirConfig struct {
	URL           string
	TenantHeader  string
	BatchSize     int
	FlushInterval time.Duration
	AuthToken     string
}

type AuthConfig struct {
	JWTSecret string
	Disabled  bool
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("PRIVACYCHECKER")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.driftttl", "24h")
	viper.SetDefault("dns.server", "8.8.8.8:53")
	viper.SetDefault("dns.qps", 20)
	viper.SetDefault("dns.burst", 10)
	viper.SetDefault("pipeline.workercount", 10)
	viper.SetDefault("pipeline.scantimeout", "60s")
	viper.SetDefault("pipeline.emailtimeout", "30s")
	viper.SetDefault("pipeline.whoisenabled", true)
	viper.SetDefault("mimir.tenantheader", "X-Scope-OrgID")
	viper.SetDefault("mimir.batchsize", 1000)
	viper.SetDefault("mimir.flushinterval", "10s")

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if url := os.Getenv("MIMIR_URL"); url != "" {
		cfg.Mimir.URL = url
	}
	if token := os.Getenv("MIMIR_AUTH_TOKEN"); token != "" {
		cfg.Mimir.AuthToken = token
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	return &cfg, nil
}
