package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port        int
	APIKey      string
	CORSOrigins []string
	LogLevel    string

	AlchemyAPIKey        string
	GeckoTerminalBaseURL string
	DefiLlamaBaseURL     string
	CoinGeckoBaseURL     string
	HTTPTimeout          time.Duration

	// Per-minute request budgets; zero keeps the provider's free-tier default.
	GeckoTerminalRPM int
	DefiLlamaRPM     int
	AlchemyRPM       int
	CoinGeckoRPM     int

	RedisURL          string
	PriceCacheTTL     time.Duration
	CoinGeckoPollSecs int
	TrackedSymbols    []string

	TelegramBotToken string

	SSHPort               int
	SSHHostKeyPath        string
	SSHAuthorizedKeysPath string

	MCPTransport          string
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPRequestTimeoutSecs int

	// Warnings lists settings that are missing or were replaced by defaults.
	Warnings []string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags reads configuration from the environment, letting any
// changed flag in flags take precedence. Flag names use dashes in place of
// the environment's underscores (log-level overrides LOG_LEVEL).
func LoadWithFlags(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("log-level", "info")
	v.SetDefault("cors-origins", "*")
	v.SetDefault("http-timeout-secs", 30)
	v.SetDefault("redis-url", "localhost:6379")
	v.SetDefault("price-cache-ttl-secs", 90)
	v.SetDefault("coingecko-poll-secs", 60)
	v.SetDefault("ssh-port", 2222)
	v.SetDefault("ssh-host-key-path", ".ssh/tokenlens_ed25519")
	v.SetDefault("mcp-transport", "stdio")
	v.SetDefault("mcp-http-bind", "127.0.0.1")
	v.SetDefault("mcp-http-port", 8090)
	v.SetDefault("mcp-request-timeout-secs", 15)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{
		APIKey:                strings.TrimSpace(v.GetString("api-key")),
		CORSOrigins:           splitAndClean(v.GetString("cors-origins")),
		LogLevel:              strings.ToLower(strings.TrimSpace(v.GetString("log-level"))),
		AlchemyAPIKey:         strings.TrimSpace(v.GetString("alchemy-api-key")),
		GeckoTerminalBaseURL:  strings.TrimSpace(v.GetString("geckoterminal-base-url")),
		DefiLlamaBaseURL:      strings.TrimSpace(v.GetString("defillama-base-url")),
		CoinGeckoBaseURL:      strings.TrimSpace(v.GetString("coingecko-base-url")),
		RedisURL:              strings.TrimSpace(v.GetString("redis-url")),
		TrackedSymbols:        splitAndClean(strings.ToUpper(v.GetString("tracked-symbols"))),
		TelegramBotToken:      strings.TrimSpace(v.GetString("telegram-bot-token")),
		SSHHostKeyPath:        strings.TrimSpace(v.GetString("ssh-host-key-path")),
		SSHAuthorizedKeysPath: strings.TrimSpace(v.GetString("ssh-authorized-keys-path")),
		MCPTransport:          strings.ToLower(strings.TrimSpace(v.GetString("mcp-transport"))),
		MCPHTTPBind:           strings.TrimSpace(v.GetString("mcp-http-bind")),
	}

	cfg.Port = positiveInt(v, "port", 8080)
	cfg.HTTPTimeout = time.Duration(positiveInt(v, "http-timeout-secs", 30)) * time.Second
	cfg.PriceCacheTTL = time.Duration(positiveInt(v, "price-cache-ttl-secs", 90)) * time.Second
	cfg.CoinGeckoPollSecs = positiveInt(v, "coingecko-poll-secs", 60)
	cfg.GeckoTerminalRPM = positiveInt(v, "geckoterminal-rpm", 0)
	cfg.DefiLlamaRPM = positiveInt(v, "defillama-rpm", 0)
	cfg.AlchemyRPM = positiveInt(v, "alchemy-rpm", 0)
	cfg.CoinGeckoRPM = positiveInt(v, "coingecko-rpm", 0)
	cfg.SSHPort = positiveInt(v, "ssh-port", 2222)
	cfg.MCPHTTPPort = positiveInt(v, "mcp-http-port", 8090)
	cfg.MCPRequestTimeoutSecs = positiveInt(v, "mcp-request-timeout-secs", 15)

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RedisURL == "" {
		cfg.warn("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		cfg.warn(fmt.Sprintf("unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport))
		cfg.MCPTransport = "stdio"
	}
	if cfg.AlchemyAPIKey == "" {
		cfg.warn("ALCHEMY_API_KEY not set, metadata fallback will fail")
	}
	if cfg.TelegramBotToken == "" {
		cfg.warn("TELEGRAM_BOT_TOKEN not set, bot disabled")
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	return cfg, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MCPHTTPAddr is the MCP streamable HTTP listen address.
func (c *Config) MCPHTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.MCPHTTPBind, c.MCPHTTPPort)
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

// positiveInt returns the key's value, or def when it is unset, zero,
// negative or not a number.
func positiveInt(v *viper.Viper, key string, def int) int {
	if n := v.GetInt(key); n > 0 {
		return n
	}
	return def
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, item := range parts {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
