package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kina2711/subscription-analytics/internal/config"
	"github.com/kina2711/subscription-analytics/internal/log"
)

func TestBuildPipelineFromFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "payments.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"Ngày thanh toán,Sản phẩm,Đã thanh toán,Mã khách hàng\n"+
			"01/01/2024,Gói 1 tháng,300.000,A\n"+
			"15/01/2024,Gói 1 tuần,70.000,B\n"), 0o644))

	cfg := &config.Config{
		DataSource:     config.SourceFile,
		SourcePath:     csvPath,
		SQLiteDBPath:   filepath.Join(dir, "analytics.db"),
		ExpandWorkers:  2,
		SourceCacheTTL: time.Minute,
	}
	p, err := BuildPipeline(context.Background(), cfg, log.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	snap, err := p.Service.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Report.RowsKept)
	assert.Equal(t, 37, snap.Report.LedgerRows)

	runs, err := p.Service.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, snap.RunID, runs[0].ID)
}

func TestBuildPipelineRejectsBadRulesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DataSource:        config.SourceFile,
		SourcePath:        filepath.Join(dir, "payments.csv"),
		SQLiteDBPath:      filepath.Join(dir, "analytics.db"),
		DurationRulesFile: filepath.Join(dir, "missing.yaml"),
	}
	_, err := BuildPipeline(context.Background(), cfg, log.Nop())
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "json")
	require.NotNil(t, logger)
	assert.Equal(t, log.ComponentApp, logger.Component())
}
