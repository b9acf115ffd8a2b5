package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docchunk/internal/document"
	"github.com/dgallion1/docchunk/internal/pipeline"
)

func TestUnitsCommand(t *testing.T) {
	t.Setenv("DOCCHUNK_CONFIG", "")
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Soil\n\nLoam holds water.\n\n## pH\n\nAcidic soils limit uptake."), 0o644))

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"units", path, "--log-level", "error"})
	require.NoError(t, root.Execute())

	var units []document.Unit
	require.NoError(t, json.Unmarshal(out.Bytes(), &units))
	require.NotEmpty(t, units)
	assert.Equal(t, "Soil"+document.PathSeparator+"pH", units[len(units)-1].HeaderPath)
	assert.Equal(t, "Acidic soils limit uptake.", units[len(units)-1].Text)
}

func TestUnitsCommandRequiresFile(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"units"})
	assert.Error(t, root.Execute())
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, pipeline.Summary{
		Documents: 2,
		Chunks:    5,
		Enriched:  4,
		Failed:    1,
		Stored:    4,
		Failures: []pipeline.FailureRecord{{
			Index:  3,
			Source: "a.md",
			Error:  "enrich: timeout",
			Stage:  pipeline.StageEnrich,
		}},
	}, 1)

	s := out.String()
	assert.Contains(t, s, "Documents: 2 (0 failed, 1 unreadable)")
	assert.Contains(t, s, "Stored:    4")
	assert.Contains(t, s, "[enrich] a.md #3: enrich: timeout")
}
