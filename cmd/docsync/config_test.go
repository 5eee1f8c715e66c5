package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("store", "", "")
	cmd.Flags().String("log-level", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := loadConfig(configCmd(t), "")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Store.Driver)
	assert.Equal(t, "msgpack", c.Queue.Codec)
	assert.Equal(t, []string{"default"}, c.Worker.Queues)
	assert.Equal(t, 5*time.Minute, c.Worker.SweepThreshold)
	assert.Empty(t, c.Queue.Limits)
	assert.Empty(t, c.Events.Stream)
}

func TestLoadConfig_FileEnvAndFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "docsync.yaml", `
store:
  driver: postgres
  dsn: postgres://localhost/docsync
queue:
  driver: redis
  limits:
    - name: erp
      max_concurrency: 2
    - name: crm
      rate_limit: 5
      rate_burst: 10
worker:
  concurrency: 8
  poll_interval: 2s
log:
  level: debug
`)
	t.Setenv("DOCSYNC_WORKER_CONCURRENCY", "16")

	c, err := loadConfig(configCmd(t, "--store", "redis"), path)
	require.NoError(t, err)

	assert.Equal(t, "redis", c.Store.Driver, "flag beats file")
	assert.Equal(t, "postgres://localhost/docsync", c.Store.DSN)
	assert.Equal(t, 16, c.Worker.Concurrency, "env beats file")
	assert.Equal(t, 2*time.Second, c.Worker.PollInterval)
	assert.Equal(t, "debug", c.Log.Level, "unset flag leaves file value")
	assert.Equal(t, []QueueLimit{
		{Name: "erp", MaxConcurrency: 2},
		{Name: "crm", RateLimit: 5, RateBurst: 10},
	}, c.Queue.Limits)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := loadConfig(configCmd(t), "does-not-exist.yaml")
	assert.ErrorContains(t, err, "read config")
}
