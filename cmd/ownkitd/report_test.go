package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"ownkit/snapshot"
)

func sampleReport(now time.Time) snapshot.Report {
	return snapshot.Report{
		Seq:     12,
		Created: now,
		Blocks: []snapshot.BlockEntry{
			{ID: 1, Type: "service.Buffer", Shared: true, Since: now.Add(-3 * time.Minute)},
			{ID: 2, Type: "[]int", Array: true, Len: 8, Since: now.Add(-time.Hour)},
			{ID: 3, Type: "service.Buffer", Shared: true, Destroyed: true, Since: now.Add(-time.Minute)},
		},
	}
}

func TestPrintReport_Table(t *testing.T) {
	now := time.Now()
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(now), "table", now))

	out := buf.String()
	assert.Contains(t, out, "report #12")
	assert.Contains(t, out, "2 leaked, 1 observed-only")
	assert.Contains(t, out, "[]int[8]")
	assert.Contains(t, out, "exclusive")
	assert.Contains(t, out, "observed")
	assert.Contains(t, out, "3 minutes")
}

func TestPrintReport_JSONAndYAML(t *testing.T) {
	now := time.Now()

	var jbuf bytes.Buffer
	require.NoError(t, printReport(&jbuf, sampleReport(now), "json", now))
	var jdoc reportDoc
	require.NoError(t, json.Unmarshal(jbuf.Bytes(), &jdoc))
	assert.Equal(t, 2, jdoc.Leaks)
	require.Len(t, jdoc.Blocks, 3)
	assert.Equal(t, "shared", jdoc.Blocks[0].Ownership)

	var ybuf bytes.Buffer
	require.NoError(t, printReport(&ybuf, sampleReport(now), "yaml", now))
	var ydoc reportDoc
	require.NoError(t, yaml.Unmarshal(ybuf.Bytes(), &ydoc))
	assert.Equal(t, jdoc, ydoc)
}

func TestPrintReport_UnknownFormat(t *testing.T) {
	assert.Error(t, printReport(&bytes.Buffer{}, snapshot.Report{}, "xml", time.Now()))
}

func TestReportCommand(t *testing.T) {
	w := &snapshot.Writer{Dir: t.TempDir()}
	require.NoError(t, w.Write(sampleReport(time.Now())))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"report", w.Path(), "--format", "json"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute())

	var doc reportDoc
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, uint64(12), doc.Seq)

	rootCmd.SetArgs([]string{"report", filepath.Join(t.TempDir(), "none.bin")})
	assert.Error(t, rootCmd.Execute())
}
