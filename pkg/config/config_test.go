package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.ReportCards.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.ReportCards.StatsCacheTTL)
	assert.Equal(t, "@hourly", cfg.Exports.CleanupCron)
	assert.True(t, cfg.Database.RunMigrations)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", "OSS")
	v.Set("REPORT_BATCH_SIZE", 0)
	v.Set("STORAGE_SIGNED_URL_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	cfg := fromViper(v)

	require.Equal(t, StorageDriverOSS, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.ReportCards.BatchSize)
	assert.Equal(t, time.Hour, cfg.Storage.SignedURLTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
