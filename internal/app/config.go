package app

import (
	"time"

	"github.com/HaiderAli3D/LOKI-AI/internal/platform/envutil"
)

type Config struct {
	Port        string
	Environment string
	Version     string

	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	TopicCatalogPath      string
	KnowledgeContextLimit int
	PendingStreamTTL      time.Duration

	RedisAddr string
}

func LoadConfig() Config {
	return Config{
		Port:        envutil.String("PORT", "8080"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),

		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL:  time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 3600)) * time.Second,
		RefreshTokenTTL: time.Duration(envutil.Int("REFRESH_TOKEN_TTL", 2592000)) * time.Second,

		TopicCatalogPath:      envutil.String("TOPIC_CATALOG_PATH", "config/topics.yaml"),
		KnowledgeContextLimit: envutil.Int("KNOWLEDGE_CONTEXT_LIMIT", 10000),
		PendingStreamTTL:      time.Duration(envutil.Int("PENDING_STREAM_TTL", 120)) * time.Second,

		RedisAddr: envutil.String("REDIS_ADDR", ""),
	}
}
