package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_ID", "123")
	t.Setenv("DISCORD_BACKUP_CHANNEL_ID", "456")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, StoreDriverFile, cfg.Store.Driver)
	assert.Equal(t, "./database.json", cfg.Store.FilePath)
	assert.False(t, cfg.Store.InitEmpty)
	assert.Equal(t, BackupDriverDiscord, cfg.Backup.Driver)
	assert.Equal(t, time.Minute, cfg.Scheduler.AccrueInterval)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.FlushInterval)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.BackupInterval)
	assert.Equal(t, 15, cfg.Discord.LeaderboardSize)
	assert.Equal(t, "Bot réalisé par g.mz !", cfg.Discord.EmbedFooter)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Empty(t, cfg.HTTP.IngestTokens)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.True(t, cfg.Features.IsEnabled(FeatureAnnounceLevelUp))
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "bot")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("BACKUP_DRIVER", "s3")
	t.Setenv("BACKUP_S3_BUCKET", "backups")
	t.Setenv("SCHEDULER_ACCRUE_INTERVAL", "30s")
	t.Setenv("PRESENCE_INGEST_TOKEN", " a, ,b ")
	t.Setenv("FEATURE_ANNOUNCE_LEVEL_UP", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://bot:pw@db:5432/postgres?sslmode=require", cfg.Postgres.URL)
	assert.Equal(t, "backups", cfg.S3.Bucket)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.AccrueInterval)
	assert.Equal(t, []string{"a", "b"}, cfg.HTTP.IngestTokens)
	assert.False(t, cfg.Features.IsEnabled(FeatureAnnounceLevelUp))
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_PORT", "eighty")
	t.Setenv("SCHEDULER_FLUSH_INTERVAL", "often")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.FlushInterval)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("BACKUP_DRIVER", "ftp")
	t.Setenv("DISCORD_PUBLIC_KEY", "zz")
	t.Setenv("SCHEDULER_ACCRUE_INTERVAL", "-1m")

	_, err := Load()
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"DISCORD_TOKEN is required",
		"DISCORD_GUILD_ID is required",
		"DISCORD_PUBLIC_KEY",
		`STORE_DRIVER "mongo"`,
		`BACKUP_DRIVER "ftp"`,
		"SCHEDULER_ACCRUE_INTERVAL must be positive",
	} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %s", want, msg)
	}
}

func TestValidate_DriverRequirements(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL is required"},
		{"s3 without bucket", map[string]string{"BACKUP_DRIVER": "s3"}, "BACKUP_S3_BUCKET is required"},
		{"discord backup without channel", map[string]string{"DISCORD_BACKUP_CHANNEL_ID": ""}, "DISCORD_BACKUP_CHANNEL_ID is required"},
		{"oversized board", map[string]string{"DISCORD_LEADERBOARD_SIZE": "40"}, "DISCORD_LEADERBOARD_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFeatureFlags(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled("unknown.feature"))
	require.NoError(t, ff.DisableFeature(FeatureCommandTop))
	assert.False(t, ff.IsEnabled(FeatureCommandTop))
	assert.NotContains(t, ff.Enabled(), FeatureCommandTop)
	require.NoError(t, ff.EnableFeature(FeatureCommandTop))
	assert.Contains(t, ff.Enabled(), FeatureCommandTop)

	var ffErr *FeatureFlagError
	assert.ErrorAs(t, ff.EnableFeature("nope"), &ffErr)
	assert.Equal(t, "FEATURE_COMMANDS_REGISTER", featureNameToEnvKey(FeatureCommandsRegister))
}

func TestFeatureFlags_IgnoresMalformedOverride(t *testing.T) {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment(func(key string) string {
		if key == "FEATURE_COMMANDS_RANK" {
			return "maybe"
		}
		return ""
	})
	assert.True(t, ff.IsEnabled(FeatureCommandRank))
}
