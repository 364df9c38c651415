package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "embedded", cfg.Page.Source)
	assert.Equal(t, 500*time.Millisecond, cfg.Page.SettleDelay)
	assert.Equal(t, time.Duration(0), cfg.Page.FetchTimeout)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.False(t, cfg.IsDirectorySource())
}

func TestExampleConfigLoads(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(ExampleConfig)))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Forms.RateLimit)
	assert.Equal(t, 5, cfg.Forms.Burst)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
page:
  source: ./site
  watch: true
  settle_delay: 50ms
  fallbacks:
    stories: "<p>Pronto</p>"
database:
  type: sqlite
auth:
  api_keys:
    - name: ops
      key: s3cret
      ttl: 24h
`)))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, cfg.IsDirectorySource())
	assert.Equal(t, 50*time.Millisecond, cfg.Page.SettleDelay)
	assert.Equal(t, "<p>Pronto</p>", cfg.Page.Fallbacks["stories"])
	require.Len(t, cfg.Auth.APIKeys, 1)
	assert.Equal(t, 24*time.Hour, cfg.Auth.APIKeys[0].TTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"Empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"TLS without files", func(c *Config) { c.Server.TLS.Enabled = true }, "server.tls"},
		{"Negative settle", func(c *Config) { c.Page.SettleDelay = -time.Second }, "settle_delay"},
		{"Watch embedded", func(c *Config) { c.Page.Watch = true }, "page.watch"},
		{"Zero rate", func(c *Config) { c.Forms.RateLimit = 0 }, "rate_limit"},
		{"Bad proxy", func(c *Config) { c.Forms.TrustedProxies = []string{"proxy.local"} }, "forms.trusted_proxies"},
		{"Unknown db", func(c *Config) { c.Database.Type = "mongo" }, "database.type"},
		{"Postgres without DSN", func(c *Config) { c.Database.Type = "postgres" }, "database.dsn"},
		{"Key without value", func(c *Config) { c.Auth.APIKeys = []APIKey{{Name: "ops"}} }, "api_keys[0]"},
		{"Bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
