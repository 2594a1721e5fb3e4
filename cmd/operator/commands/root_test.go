package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/kafka-operator/internal/operator/config"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "kafka-operator", cmd.Use)
	for _, name := range []string{"metrics-bind-address", "health-probe-bind-address", "leader-elect", "config", "zap-log-level"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}

	sub, _, err := cmd.Find([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "version", sub.Use)
}

func TestVersion_Output(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer func() {
		version, commit, date = origVersion, origCommit, origDate
	}()
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	var out bytes.Buffer
	cmd := Version()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), "kafka-operator 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig("")
		require.NoError(t, err)
		assert.Equal(t, config.Default().OperationTimeout, cfg.OperationTimeout)
	})

	t.Run("file overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "operator.yaml")
		require.NoError(t, os.WriteFile(path, []byte("operationTimeout: 10m\nnamespaces: [kafka, streams]\n"), 0o600))

		cfg, err := loadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, cfg.OperationTimeout)
		assert.Equal(t, []string{"kafka", "streams"}, cfg.Scopes())
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "operator.yaml")
		require.NoError(t, os.WriteFile(path, []byte("maxConcurrentReconciles: 0\n"), 0o600))

		_, err := loadConfig(path)
		assert.Error(t, err)
	})
}

func TestManagerOptions(t *testing.T) {
	opts := &runOptions{metricsAddr: ":9090", probeAddr: ":9091", leaderElect: true, leaderElectionID: "kafka-operator"}

	all := managerOptions(config.Default(), opts)
	assert.Nil(t, all.Cache.DefaultNamespaces)
	assert.Equal(t, ":9090", all.Metrics.BindAddress)
	assert.True(t, all.LeaderElection)

	cfg := config.Default()
	cfg.Namespaces = []string{"kafka"}
	scoped := managerOptions(cfg, opts)
	assert.Contains(t, scoped.Cache.DefaultNamespaces, "kafka")
	assert.Len(t, scoped.Cache.DefaultNamespaces, 1)
}
