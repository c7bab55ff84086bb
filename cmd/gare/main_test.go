package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gareflow/gareflow/internal/config"
	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/storage"
)

func TestPatchFromFlagsOnlySetsChangedFields(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	itemFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--owner", "legale", "--gap", "fatturato", "--gap", "DURC", "--evidence", ""}))

	patch := patchFromFlags(cmd)
	require.NotNil(t, patch.Owner)
	assert.Equal(t, "legale", *patch.Owner)
	require.NotNil(t, patch.Evidence)
	assert.Equal(t, "", *patch.Evidence)
	assert.Equal(t, []string{"fatturato", "DURC"}, patch.Gaps)
	assert.Nil(t, patch.Requirement)
	assert.Nil(t, patch.Progress)
}

func TestParseIndex(t *testing.T) {
	index, err := parseIndex("3")
	require.NoError(t, err)
	assert.Equal(t, 3, index)

	_, err = parseIndex("terzo")
	assert.True(t, errors.Is(err, gara.ErrInvalidIndex))
}

func TestResolveDBPath(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GARE_DB_PATH", "")
	defer func() { dbPath, cfg = "", config.Config{} }()

	dbPath, cfg = "", config.Config{}
	assert.Equal(t, storage.DefaultPath, resolveDBPath())

	cfg.DBPath = "/srv/gare/tenders.db"
	assert.Equal(t, "/srv/gare/tenders.db", resolveDBPath())

	dbPath = ":memory:"
	assert.Equal(t, ":memory:", resolveDBPath())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "-"},
		{"blank", "   ", "-"},
		{"string collapses whitespace", "Servizi\n  di pulizia", "Servizi di pulizia"},
		{"number", 42.5, "42.5"},
		{"bool", true, "true"},
		{"object", map[string]any{"cv": "rossi.pdf"}, `{"cv":"rossi.pdf"}`},
		{"list", []any{"a", "b"}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}

	long := formatValue(strings.Repeat("x", 200))
	assert.Equal(t, renderValueWidth, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestRenderSectionIncludesItemsAndNotes(t *testing.T) {
	out := renderSection(gara.RenderSection{
		Title: "Overview",
		Items: []gara.RenderItem{{Label: "Title", Value: "Gara pulizie"}},
		Notes: []string{"Deadline not found"},
	})
	assert.Contains(t, out, "Overview")
	assert.Contains(t, out, "Title:")
	assert.Contains(t, out, "Gara pulizie")
	assert.Contains(t, out, "Deadline not found")
}

func TestCommandTree(t *testing.T) {
	want := []string{
		"serve", "tender create", "tender list", "tender show", "normalize",
		"checklist add", "checklist update", "checklist delete", "checklist progress", "checklist attach",
		"qa generate", "qa answer", "qa autofill", "qa interactive",
		"documents import", "documents watch", "documents confirm",
		"match", "team assign", "render", "company set",
	}
	for _, path := range want {
		cmd, _, err := rootCmd.Find(strings.Fields(path))
		require.NoError(t, err, path)
		assert.Equal(t, strings.Fields(path)[len(strings.Fields(path))-1], cmd.Name(), path)
	}
}
