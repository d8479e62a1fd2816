package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reservoir/internal/workload"
	"github.com/ajitpratap0/reservoir/pkg/json"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "poolbench v"+version)
	assert.Contains(t, out, "Go version:")
}

func TestConfigCommandPrintsDefaults(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "minimum_size: 1")
	assert.Contains(t, out, "maximum_size: 16")
	assert.Contains(t, out, "flavor: widget")
}

func TestRunCommandJSONReport(t *testing.T) {
	out, err := execute(t, "run",
		"--flavor", "keyed",
		"--workers", "2",
		"--iterations", "50",
		"--log-level", "error",
		"--json",
	)
	require.NoError(t, err)

	var report workload.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "keyed", report.Flavor)
	assert.Equal(t, 2, report.Workers)
	assert.Equal(t, int64(100), report.Operations)
	assert.Len(t, report.Pools, 4)
}

func TestRunCommandTextReport(t *testing.T) {
	out, err := execute(t, "run",
		"--flavor", "builder",
		"--workers", "1",
		"--iterations", "10",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "=== builder workload ===")
	assert.Contains(t, out, "Operations:  10 (0 errors)")
	assert.Contains(t, out, "builder-small")
}

func TestRunCommandRejectsUnknownFlavor(t *testing.T) {
	_, err := execute(t, "run", "--flavor", "bogus", "--log-level", "error")
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}

func TestWriteReportText(t *testing.T) {
	var out bytes.Buffer
	err := writeReport(&out, &workload.Report{
		Flavor:       "widget",
		Workers:      2,
		Operations:   20,
		Duration:     time.Second,
		OpsPerSecond: 20,
		PeakRSS:      10 * 1024 * 1024,
		Pools: []pool.Stats{
			{Name: "widgets", Idle: 2, Created: 2, Hits: 18, Misses: 2},
		},
	}, false)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Throughput:  20 ops/sec")
	assert.Contains(t, text, "Peak RSS:    10.0 MB")
	assert.Contains(t, text, "hit_rate=90.0%")
}
