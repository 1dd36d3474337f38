package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehtisham-afzal/outline/internal/decoration"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := Root()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

const guide = "# Setup\n\nInstall it.\n\n## Setup\n\nAgain.\n"

func TestAnchorsCommand(t *testing.T) {
	out, _, err := run(t, guide, "anchors", "-")
	require.NoError(t, err)
	assert.Equal(t, "#setup\tSetup\n  #setup-1\tSetup\n", out)

	out, _, err = run(t, guide, "anchors", "--json", "-")
	require.NoError(t, err)
	var anchors []decoration.Anchor
	require.NoError(t, json.Unmarshal([]byte(out), &anchors))
	require.Len(t, anchors, 2)
	assert.Equal(t, 2, anchors[1].Level)
}

func TestFmtCommand(t *testing.T) {
	out, _, err := run(t, "Some  *emphasis*\n\n* one\n* two\n", "fmt", "-")
	require.NoError(t, err)

	again, _, err := run(t, out, "fmt", "-")
	require.NoError(t, err)
	assert.Equal(t, out, again)

	_, _, err = run(t, out, "fmt", "--check", "-")
	assert.NoError(t, err)
}

func TestFmtReportsDegradedContent(t *testing.T) {
	_, stderr, err := run(t, "<div>raw</div>\n\ntext\n", "fmt", "-")
	require.NoError(t, err)
	assert.Contains(t, stderr, "html_block")
}

func TestFmtCheckFailsOnNonCanonicalInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("Title\n=====\n"), 0o644))

	_, _, err := run(t, "", "fmt", "--check", path)
	assert.True(t, errors.Is(err, errNotFormatted), "got %v", err)
}

func TestExportCommand(t *testing.T) {
	out, _, err := run(t, guide, "export", "--format", "html", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `<h1 id="setup">Setup</h1>`)
	assert.Contains(t, out, `<title>Setup</title>`)

	dir := t.TempDir()
	target := filepath.Join(dir, "out.md")
	_, stderr, err := run(t, guide, "export", "-o", target, "-")
	require.NoError(t, err)
	assert.Contains(t, stderr, target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Setup")

	_, _, err = run(t, guide, "export", "--format", "odt", "-")
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, _, err := run(t, "", "anchors", filepath.Join(t.TempDir(), "nope.md"))
	assert.Error(t, err)
}
