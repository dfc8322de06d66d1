package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/siherrmann/homegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Setenv("HOMEGRAPH_WATCH", "false")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		snapshotPath, configDir, configPath, logLevel = "", "", "", ""
		useDatabase = false
		depth, limit = 0, 0
		domains, relations = nil, nil
	})

	err := rootCmd.Execute()
	return out.String(), err
}

var testFlags = []string{"--snapshot", "../../testdata/home.yaml", "--config-dir", "../../testdata/config", "--log-level", "error"}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestNeighborhoodCommand(t *testing.T) {
	t.Run("Prints the neighborhood", func(t *testing.T) {
		out, err := execute(t, append([]string{"neighborhood", "light.kitchen", "--depth", "1"}, testFlags...)...)
		require.NoError(t, err)

		var result model.NeighborhoodResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, "entity:light.kitchen", result.FocusID)
		assert.NotEmpty(t, result.Edges)
	})

	t.Run("Unknown node fails", func(t *testing.T) {
		_, err := execute(t, append([]string{"neighborhood", "light.missing"}, testFlags...)...)
		assert.Error(t, err)
	})

	t.Run("Unknown relationship fails", func(t *testing.T) {
		_, err := execute(t, append([]string{"neighborhood", "light.kitchen", "--relationship", "owns"}, testFlags...)...)
		assert.Error(t, err)
	})

	t.Run("Missing registry source fails", func(t *testing.T) {
		_, err := execute(t, "neighborhood", "light.kitchen")
		assert.Error(t, err)
	})
}

func TestSearchCommand(t *testing.T) {
	out, err := execute(t, append([]string{"search", "kitchen", "--limit", "1"}, testFlags...)...)
	require.NoError(t, err)

	var results []model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 1)
}

func TestStatsCommand(t *testing.T) {
	out, err := execute(t, append([]string{"stats"}, testFlags...)...)
	require.NoError(t, err)

	var stats model.GraphStatistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Greater(t, stats.TotalNodes, 0)
	assert.Equal(t, 1, stats.Definitions["automation"])
}
