package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gong-wizard-go/internal/report"
)

func TestWriteReportLaysOutGroups(t *testing.T) {
	dir := t.TempDir()
	rep := &report.Report{Artifacts: []report.Artifact{
		{Name: report.ArtifactFetchStats, Filename: "fetch_stats.json", Group: report.SummaryGroup, Data: []byte("{}")},
		{Name: report.ArtifactTranscripts, Filename: "secure_air_call_1.txt", Group: "secure air", Data: []byte("hi")},
	}}

	written, err := writeReport(dir, rep)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "fetch_stats.json"),
		filepath.Join(dir, "secure_air", "secure_air_call_1.txt"),
	}, written)

	b, err := os.ReadFile(filepath.Join(dir, "secure_air", "secure_air_call_1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(b))
}
