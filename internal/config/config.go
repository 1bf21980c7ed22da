// Package config assembles the gateway configuration from environment
// variables with sane defaults, optionally overlaying secrets from a
// Vault KV2 path when VAULT_ADDR is set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config is the resolved runtime configuration. Bootstrap failure
// (bad numeric env, unreachable Vault) is fatal and exits 1 in main.
type Config struct {
	Port     int
	MgmtPort int

	DBPath string

	APIToken   string
	StatsToken string

	RedisURL string
	NATSURL  string

	UpstreamURL          string
	AnthropicUpstreamURL string
	NERServiceURL        string
	NERModelCache        string

	SessionTTL       time.Duration
	MaxLocalSessions int

	NamesListPath string

	OTLPEndpoint string
}

// Load reads the environment and, when VAULT_ADDR is present, overlays
// secrets from VAULT_SECRET_PATH. Secrets loaded from Vault win over
// plain environment values.
func Load(logger *zap.Logger) (*Config, error) {
	cfg := &Config{
		DBPath:               envOr("ANONAMOOSE_DB_PATH", "anonamoose.db"),
		APIToken:             os.Getenv("API_TOKEN"),
		StatsToken:           os.Getenv("STATS_TOKEN"),
		RedisURL:             os.Getenv("REDIS_URL"),
		NATSURL:              os.Getenv("NATS_URL"),
		UpstreamURL:          envOr("UPSTREAM_URL", "https://api.openai.com"),
		AnthropicUpstreamURL: envOr("ANTHROPIC_UPSTREAM_URL", "https://api.anthropic.com"),
		NERServiceURL:        os.Getenv("NER_SERVICE_URL"),
		NERModelCache:        os.Getenv("NER_MODEL_CACHE"),
		NamesListPath:        os.Getenv("NAMES_LIST_PATH"),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.Port, err = envInt("PORT", 3000); err != nil {
		return nil, err
	}
	if cfg.MgmtPort, err = envInt("MGMT_PORT", 3001); err != nil {
		return nil, err
	}
	ttlSeconds, err := envInt("SESSION_TTL_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = time.Duration(ttlSeconds) * time.Second
	if cfg.MaxLocalSessions, err = envInt("MAX_LOCAL_SESSIONS", 10000); err != nil {
		return nil, err
	}

	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		if err := cfg.overlayVault(addr, logger); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// overlayVault pulls the secret keys the gateway understands from a
// KV2 path. Missing keys are left at their environment values.
func (c *Config) overlayVault(addr string, logger *zap.Logger) error {
	token := os.Getenv("VAULT_TOKEN")
	path := envOr("VAULT_SECRET_PATH", "secret/data/anonamoose/gateway")

	vc, err := newVaultClient(addr, token)
	if err != nil {
		return fmt.Errorf("vault connection failed: %w", err)
	}
	secrets, err := vc.readKV2(path)
	if err != nil {
		return fmt.Errorf("failed to load secrets from vault: %w", err)
	}

	overlay := func(dst *string, key string) {
		if v := secrets[key]; v != "" {
			*dst = v
		}
	}
	overlay(&c.APIToken, "API_TOKEN")
	overlay(&c.StatsToken, "STATS_TOKEN")
	overlay(&c.RedisURL, "REDIS_URL")
	overlay(&c.NATSURL, "NATS_URL")

	logger.Info("vault secrets loaded", zap.String("path", path))
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
