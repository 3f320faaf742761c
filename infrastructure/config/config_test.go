package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lms")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL.Medium)
	assert.False(t, cfg.Cache.Guard.Enabled)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	writeFile(t, path, `
stats_store: memory
timezone: America/New_York
cache:
  provider: dynamodb
  table_name: dash-cache
  ttl:
    short: 1m
    medium: 3m
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CACHE_TTL_SHORT", "30s")

	// Act
	cfg, err := LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "dynamodb", cfg.Cache.Provider)
	assert.Equal(t, "dash-cache", cfg.Cache.TableName)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.Short)
	assert.Equal(t, 3*time.Minute, cfg.Cache.TTL.Medium)
	assert.Equal(t, time.Hour, cfg.Cache.TTL.Long)
	assert.Equal(t, "America/New_York", cfg.Location().String())
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	writeFile(t, path, "stats_store: memory\ncache_ttl: 5m\n")
	t.Setenv("CONFIG_FILE", path)

	_, err := LoadConfig()

	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "valid memory setup",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown cache provider",
			mutate:  func(c *Config) { c.Cache.Provider = "redis" },
			wantErr: true,
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.StatsStore = "postgres"; c.DatabaseURL = "" },
			wantErr: true,
		},
		{
			name:    "eventbridge without bus",
			mutate:  func(c *Config) { c.Invalidation.Transport = TransportEventBridge; c.Invalidation.EventBusName = "" },
			wantErr: true,
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Invalidation.Transport = "sqs" },
			wantErr: true,
		},
		{
			name:    "postgres transport needs the postgres store",
			mutate:  func(c *Config) { c.Invalidation.Transport = TransportPostgres },
			wantErr: true,
		},
		{
			name: "postgres transport in lambda",
			mutate: func(c *Config) {
				c.StatsStore = "postgres"
				c.DatabaseURL = "postgres://localhost/lms"
				c.Invalidation.Transport = TransportPostgres
				c.IsLambda = true
			},
			wantErr: true,
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "production without jwt secret",
			mutate:  func(c *Config) { c.Environment = "production" },
			wantErr: true,
		},
		{
			name: "production lambda with private memory stores",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWTSecret = "s3cret"
				c.IsLambda = true
			},
			wantErr: true,
		},
		{
			name: "production lambda with memory stores even when publishing",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWTSecret = "s3cret"
				c.IsLambda = true
				c.Invalidation.Transport = TransportEventBridge
			},
			wantErr: true,
		},
		{
			name: "production lambda with the shared table",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWTSecret = "s3cret"
				c.IsLambda = true
				c.Cache.Provider = "dynamodb"
				c.Invalidation.Transport = TransportEventBridge
			},
		},
		{
			name: "production servers with memory stores and no fan-out",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWTSecret = "s3cret"
			},
			wantErr: true,
		},
		{
			name: "production servers with memory stores and notify fan-out",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWTSecret = "s3cret"
				c.StatsStore = "postgres"
				c.DatabaseURL = "postgres://localhost/lms"
				c.Invalidation.Transport = TransportPostgres
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.StatsStore = "memory"
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigWatcher_ReloadsTTLs(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	writeFile(t, path, "stats_store: memory\ncache:\n  ttl:\n    short: 1m\n")
	t.Setenv("CONFIG_FILE", path)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	w, err := NewConfigWatcher(cfg, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan *Config, 1)
	w.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	// Act
	writeFile(t, path, "stats_store: memory\ncache:\n  ttl:\n    short: 2m\n")

	// Assert
	select {
	case next := <-changed:
		assert.Equal(t, 2*time.Minute, next.Cache.TTL.Short)
		assert.Equal(t, 2*time.Minute, w.Current().Cache.TTL.Short)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestConfigWatcher_KeepsPreviousOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	writeFile(t, path, "stats_store: memory\n")
	t.Setenv("CONFIG_FILE", path)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	w, err := NewConfigWatcher(cfg, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, path, "stats_store: mongo\n")
	w.reload()

	assert.Equal(t, "memory", w.Current().StatsStore)
}
