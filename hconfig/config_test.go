package hconfig

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoSources(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v, "HARETEST")
	require.NoError(t, err)
	require.Equal(t, "./hareql-data", cfg.CatalogueDir)
	require.Equal(t, 256, cfg.PoolCapacity)
	require.Equal(t, 100, cfg.PlanCacheSize)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	v := viper.New()
	v.Set("log_level", "verbose")
	_, err := Load(v, "HARETEST")
	require.Error(t, err)
}

func TestEnvConfigReadsPrefixedVariable(t *testing.T) {
	t.Setenv("HARETEST_POOL_SIZE", "42")
	ec := NewEnvConfig("HARETEST")
	require.Equal(t, 42, ec.GetInt("POOL_SIZE", 1))
	require.Equal(t, 1, ec.GetInt("MISSING", 1))
}
