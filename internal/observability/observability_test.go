package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/confluence-sync/internal/syncer"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug", "json")
	require.NoError(t, err)

	logger.Debug().Str("title", "Runbook").Msg("synced")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "Runbook", line["title"])
	assert.Equal(t, "confluence-sync", line["app"])
}

func TestNewLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)
	_, err = NewLogger(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.Record(syncer.Result{Outcome: syncer.Created, Duration: 20 * time.Millisecond})
	m.Record(syncer.Result{Outcome: syncer.Unchanged, Duration: time.Millisecond})
	m.Record(syncer.Result{Outcome: syncer.Unchanged, Duration: time.Millisecond})
	m.Record(syncer.Result{Outcome: syncer.Failed})

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := &syncer.Report{
		Started:  started,
		Finished: started.Add(3 * time.Second),
		Results:  []syncer.Result{{Outcome: syncer.Failed}},
	}
	m.Finish(report)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues("unchanged")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.documents.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastRunFailed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.lastRunSeconds))
	assert.InDelta(t, float64(started.Add(3*time.Second).Unix()), testutil.ToFloat64(m.lastRun), 0.001)
	assert.Equal(t, 4, testutil.CollectAndCount(m.documents), "every outcome is exported")
}

func TestMetricsWriteFile(t *testing.T) {
	m := NewMetrics()
	m.Record(syncer.Result{Outcome: syncer.Updated, Duration: time.Second})
	path := filepath.Join(t.TempDir(), "sync.prom")

	require.NoError(t, m.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `confluence_sync_documents_total{outcome="updated"} 1`)
	assert.Contains(t, string(data), "confluence_sync_document_duration_seconds_count 1")
}
