package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_HappyPath(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "configs"), 0755))

	envContent := fmt.Sprintf(
		"APP_NAME=%s\nSERVER_PORT=%d\nLOG_LEVEL=%s\nKAFKA_BROKERS=%s\nRECONCILIATION_PERSIST_RETRY_ATTEMPTS=%d\n",
		"ReconTest", 9090, "debug", "kafka1:9092,kafka2:9092", 7,
	)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "configs", "test_happy.env"), []byte(envContent), 0644))

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()
	require.NoError(t, os.Chdir(tempDir))

	cfg, err := LoadConfig("test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "ReconTest", cfg.Application.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "kafka1:9092,kafka2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, 7, cfg.Reconciliation.PersistRetryAttempts)

	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, "reconciliation_requests", cfg.Kafka.RequestTopic)
	assert.Equal(t, "reconciliation_results", cfg.Kafka.ResultTopic)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, runtime.NumCPU(), cfg.WorkerPool.Size)
	assert.Equal(t, 2*time.Second, cfg.Reconciliation.HMSLookupTimeout)
	assert.True(t, cfg.Redis.Enabled)

	cfgWithName, err := LoadConfigWithName("configs/test_happy")
	require.NoError(t, err)
	assert.Equal(t, "ReconTest", cfgWithName.Application.Name)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("WORKER_POOL_SIZE", "3")
	t.Setenv("RECONCILIATION_HMS_CACHE_TTL", "1m")

	cfg, err := LoadConfig("does_not_exist")

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.WorkerPool.Size)
	assert.Equal(t, time.Minute, cfg.Reconciliation.HMSCacheTTL)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)

		assert.NoError(t, fromViper(v).validate())
	})

	t.Run("ReportsEveryProblem", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		cfg := fromViper(v)
		cfg.WorkerPool.Size = 0
		cfg.Kafka.RequestTopic = ""
		cfg.Reconciliation.PersistRetryAttempts = 0
		cfg.Redis.Addr = ""

		err := cfg.validate()

		require.Error(t, err)
		for _, key := range []string{"WORKER_POOL_SIZE", "KAFKA_REQUEST_TOPIC", "RECONCILIATION_PERSIST_RETRY_ATTEMPTS", "REDIS_ADDR"} {
			assert.True(t, strings.Contains(err.Error(), key), "missing %s in %q", key, err.Error())
		}
	})

	t.Run("RedisAddrOptionalWhenDisabled", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		cfg := fromViper(v)
		cfg.Redis.Enabled = false
		cfg.Redis.Addr = ""

		assert.NoError(t, cfg.validate())
	})
}
