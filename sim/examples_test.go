package sim

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdm4fzi/prodsys/sim/kpi"
)

func TestExample_BaseConfigurationRuns(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join("..", "examples", "base_configuration.json"))
	require.NoError(t, err)

	runner, err := Initialize(cfg, nil)
	require.NoError(t, err)

	records := runner.Run(720)
	require.NotEmpty(t, records)

	results := runner.Results()
	if results.Throughput["Product_1"] == 0 {
		t.Error("Product_1 never finished")
	}
	if results.Throughput["Product_2"] == 0 {
		t.Error("Product_2 never finished")
	}

	// Every resource's four shares account for the whole horizon.
	for res, shares := range results.ResourceStates {
		sum := shares.PR + shares.SB + shares.ST + shares.UD
		if sum < 99.9 || sum > 100.1 {
			t.Errorf("%s state shares sum to %.3f%%, want 100%%", res, sum)
		}
	}
}

func TestExample_BaseConfigurationDeterministic(t *testing.T) {
	run := func() *kpi.Results {
		cfg, err := LoadConfigFile(filepath.Join("..", "examples", "base_configuration.json"))
		require.NoError(t, err)
		runner, err := Initialize(cfg, nil)
		require.NoError(t, err)
		runner.Run(360)
		return runner.Results()
	}
	a, b := run(), run()
	require.Equal(t, a.Throughput, b.Throughput)
	require.Equal(t, a.ResourceStates, b.ResourceStates)
}
