package report

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldsweep/extension/internal/config"
)

func TestInflux_InitDisabled(t *testing.T) {
	i := NewInflux(config.InfluxReportConfig{Enabled: false}, testSession(), "backup.gz", zerolog.Nop())
	err := i.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report.influx.enabled is false")
}

func TestInflux_BackupWriterFallback(t *testing.T) {
	backupPath := filepath.Join(t.TempDir(), "influx_backup.gz")

	// Port 1 is never an InfluxDB server, so the ping fails and the sink
	// must degrade to line protocol in the backup file.
	cfg := config.InfluxReportConfig{
		Enabled: true, Host: "127.0.0.1", Port: "1", Protocol: "http",
		Org: "worldsweep", Bucket: "sweep",
	}
	i := NewInflux(cfg, testSession(), backupPath, zerolog.Nop())
	require.NoError(t, i.Init())

	require.NoError(t, i.RecordPass(testReport(3, false)))
	require.NoError(t, i.Close())

	f, err := os.Open(backupPath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	line := string(data)
	assert.Contains(t, line, "sweep_pass")
	assert.Contains(t, line, "extension=worldsweep")
	assert.Contains(t, line, "aborted=false")
	assert.Contains(t, line, "removed=3i")
	assert.Contains(t, line, "steps=4i")
}

func TestInflux_CloseBeforeInit(t *testing.T) {
	i := NewInflux(config.InfluxReportConfig{}, testSession(), "backup.gz", zerolog.Nop())
	require.NoError(t, i.Close())
}
