package root

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portainer-templates/tplmerge/pkg/catalog"
)

const (
	catalogA = `{"version":"2","templates":[{"title":"Nginx","image":"nginx:latest","categories":["webserver"]}]}`
	catalogB = `{"version":"2","templates":[{"title":"Nginx","image":"nginx:latest","categories":["webserver"]},{"title":"Adminer","image":"adminer"}]}`
)

func execute(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	err = cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}
}

func TestFileMode(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.json": catalogA, "b.json": catalogB})

	stdout, stderr, err := execute(t, dir, "a.json", "b.json")
	require.NoError(t, err)

	cfg, err := catalog.LoadBytes([]byte(stdout))
	require.NoError(t, err)
	require.Len(t, cfg.Templates, 2)
	assert.Equal(t, "Adminer", cfg.Templates[0].String("title"))
	assert.Equal(t, "Nginx", cfg.Templates[1].String("title"))

	assert.Contains(t, stderr, "Merged 2 template files")
	assert.Contains(t, stderr, "Total unique templates: 2")
	assert.Contains(t, stderr, "Output file: -")
}

func TestFileModeToFileInYAML(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.json": catalogA, "b.json": catalogB})

	stdout, _, err := execute(t, dir, "--format", "yaml", "-o", "out/merged.yaml", "a.json", "b.json")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Output file: "+filepath.Join(dir, "out", "merged.yaml"))

	data, err := os.ReadFile(filepath.Join(dir, "out", "merged.yaml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "templates:\n"), "unexpected YAML:\n%s", data)
}

func TestSourcesMode(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.json":      catalogA,
		"b.json":      catalogB,
		"sources.txt": "# local mirrors\nb.json\n\na.json\nmissing.json\n",
	})

	stdout, stderr, err := execute(t, dir, "--unclean", "unclean.json")
	require.NoError(t, err)

	output := filepath.Join(dir, "releases", "templates.json")
	assert.Contains(t, stdout, "Skipped 1 of 3 sources")
	assert.Contains(t, stdout, "Merged 2 template files")
	assert.Contains(t, stdout, "Total unique templates: 2")
	assert.Contains(t, stdout, "Output file: "+output)
	assert.Contains(t, stderr, "missing.json")

	merged, err := catalog.LoadFile(output)
	require.NoError(t, err)
	assert.Len(t, merged.Templates, 2)

	unclean, err := catalog.LoadFile(filepath.Join(dir, "unclean.json"))
	require.NoError(t, err)
	assert.Len(t, unclean.Templates, 3)
}

func TestRunErrors(t *testing.T) {
	type spec struct {
		name   string
		files  map[string]string
		args   []string
		expErr string
	}
	specs := []spec{
		{
			name:   "SingleFile",
			files:  map[string]string{"a.json": catalogA},
			args:   []string{"a.json"},
			expErr: "at least two template files are required, got 1",
		},
		{
			name:   "EmptySources",
			files:  map[string]string{"sources.txt": "# nothing yet\n\n"},
			expErr: `no URLs found in the sources file "sources.txt"`,
		},
		{
			name:   "MissingSources",
			expErr: `read source list "sources.txt"`,
		},
		{
			name:   "BothToStdout",
			files:  map[string]string{"a.json": catalogA, "b.json": catalogB},
			args:   []string{"--unclean", "-", "a.json", "b.json"},
			expErr: "--output and --unclean cannot both write to stdout",
		},
		{
			name:   "InvalidFormat",
			files:  map[string]string{"a.json": catalogA, "b.json": catalogB},
			args:   []string{"--format", "toml", "a.json", "b.json"},
			expErr: `invalid format "toml"`,
		},
		{
			name:   "InvalidWorkers",
			files:  map[string]string{"a.json": catalogA, "b.json": catalogB},
			args:   []string{"--workers", "0", "a.json", "b.json"},
			expErr: "invalid --workers 0",
		},
		{
			name: "VersionMismatch",
			files: map[string]string{
				"a.json": catalogA,
				"b.json": `{"version":"3","templates":[]}`,
			},
			args:   []string{"a.json", "b.json"},
			expErr: "templates are not for the same version, can't merge v2 and v3",
		},
	}

	for _, s := range specs {
		t.Run(s.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, s.files)

			stdout, _, err := execute(t, dir, s.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), s.expErr)
			assert.Empty(t, stdout)
		})
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "tplmerge v"), "unexpected output %q", stdout)
}
