package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConf writes awm.conf into the conf directory of root.
func writeConf(t *testing.T, root, content string) string {
	t.Helper()
	dir := filepath.Join(root, ConfDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// isolate points every search root at an empty temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return home
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Drag.MetaDragging)
	assert.Equal(t, "mod4", cfg.Drag.Modifier)
}

func TestSearchRoots_Order(t *testing.T) {
	home := isolate(t)
	override := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(override, ConfDir), 0o755))

	roots := SearchRoots(override + "/")
	assert.Equal(t, []string{
		filepath.Join(override, "conf"),
		filepath.Join(home, ".config", "awm", "conf"),
		filepath.Join(home, ".awm", "conf"),
		"/etc/awm/conf",
	}, roots)
}

func TestSearchRoots_OverrideWithoutConfSkipped(t *testing.T) {
	isolate(t)
	override := t.TempDir()
	roots := SearchRoots(override)
	assert.NotContains(t, roots, filepath.Join(override, "conf"))
	assert.Len(t, roots, 3)
}

func TestSearchRoots_XDGDefaultsToDotConfig(t *testing.T) {
	home := isolate(t)
	t.Setenv("XDG_CONFIG_HOME", "")

	roots := SearchRoots("")
	assert.Equal(t, filepath.Join(home, ".config", "awm", "conf"), roots[0])
}

func TestSearchRoots_MissingOverrideSkipped(t *testing.T) {
	home := isolate(t)
	roots := SearchRoots(filepath.Join(home, "nope"))
	assert.NotContains(t, roots, filepath.Join(home, "nope"))
	assert.Len(t, roots, 3)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)
	res, err := Load(Flags{})
	require.NoError(t, err)
	assert.Empty(t, res.Config.Path)
	assert.True(t, res.Config.Drag.MetaDragging)
}

func TestLoad_ReadsConfDirectoryOnly(t *testing.T) {
	home := isolate(t)
	root := filepath.Join(home, ".config", "awm")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("[DRAG_N_DROP]\nmeta_dragging = true\n"), 0o644))
	want := writeConf(t, root, "[DRAG_N_DROP]\nmeta_dragging = false\n")

	res, err := Load(Flags{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "conf", "awm.conf"), want)
	assert.Equal(t, want, res.Config.Path)
	assert.False(t, res.Config.Drag.MetaDragging)
	assert.Equal(t, filepath.Join(root, "conf"), res.Searched[0])
}

func TestLoad_FirstRootWins(t *testing.T) {
	home := isolate(t)
	writeConf(t, filepath.Join(home, ".awm"), "[DRAG_N_DROP]\nmeta_dragging = true\n")
	want := writeConf(t, filepath.Join(home, ".config", "awm"), "[DRAG_N_DROP]\nmeta_dragging = false\n")

	res, err := Load(Flags{})
	require.NoError(t, err)
	assert.Equal(t, want, res.Config.Path)
	assert.False(t, res.Config.Drag.MetaDragging)
}

func TestLoad_OverrideRoot(t *testing.T) {
	home := isolate(t)
	writeConf(t, filepath.Join(home, ".config", "awm"), "[DRAG_N_DROP]\nmeta_dragging = true\n")
	override := t.TempDir()
	want := writeConf(t, override, "[DRAG_N_DROP]\nmeta_dragging = false\n")

	res, err := Load(Flags{Root: override})
	require.NoError(t, err)
	assert.Equal(t, want, res.Config.Path)
	assert.False(t, res.Config.Drag.MetaDragging)
}

func TestLoad_AllSections(t *testing.T) {
	home := isolate(t)
	writeConf(t, filepath.Join(home, ".awm"), `
[DRAG_N_DROP]
meta_dragging = false
modifier = Mod1

[LOG]
level = DEBUG
file = ~/awm.log
max_size_mb = 5
max_backups = 2

[METRICS]
listen = 127.0.0.1:9110

[PLUGINS]
paths = /usr/lib/awm/a.so, ~/plugins
`)

	res, err := Load(Flags{})
	require.NoError(t, err)
	cfg := res.Config
	assert.False(t, cfg.Drag.MetaDragging)
	assert.Equal(t, "mod1", cfg.Drag.Modifier)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(home, "awm.log"), cfg.Log.File)
	assert.Equal(t, 5, cfg.Log.MaxSizeMB)
	assert.Equal(t, 2, cfg.Log.MaxBackups)
	assert.Equal(t, "127.0.0.1:9110", cfg.Metrics.Listen)
	assert.Equal(t, []string{"/usr/lib/awm/a.so", filepath.Join(home, "plugins")}, cfg.Plugins.Paths)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
	}{
		{name: "bad bool", content: "[DRAG_N_DROP]\nmeta_dragging = maybe\n", path: "drag_n_drop.meta_dragging"},
		{name: "bad modifier", content: "[DRAG_N_DROP]\nmodifier = hyper\n", path: "drag_n_drop.modifier"},
		{name: "bad level", content: "[LOG]\nlevel = loud\n", path: "log.level"},
		{name: "negative size", content: "[LOG]\nmax_size_mb = -1\n", path: "log.max_size_mb"},
		{name: "unknown key", content: "[DRAG_N_DROP]\nspeed = 3\n", path: "DRAG_N_DROP.speed"},
		{name: "unknown section", content: "[THEME]\ncolor = red\n", path: "THEME"},
		{name: "key outside section", content: "meta_dragging = true\n", path: "DEFAULT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := isolate(t)
			file := writeConf(t, filepath.Join(home, ".awm"), tt.content)

			_, err := Load(Flags{})
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.path, verr.Path)
			assert.Contains(t, err.Error(), file)
		})
	}
}

func TestLoad_FlagsConflict(t *testing.T) {
	isolate(t)
	_, err := Load(Flags{ForceRandR14: true, ForceXinerama: true})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "force_xinerama", verr.Path)
}

func TestExplain(t *testing.T) {
	home := isolate(t)
	file := writeConf(t, filepath.Join(home, ".awm"), "[DRAG_N_DROP]\nmeta_dragging = false\n")

	res, err := Load(Flags{ForceXinerama: true})
	require.NoError(t, err)

	tests := []struct {
		path  string
		value any
		kind  SourceKind
	}{
		{path: "drag_n_drop.meta_dragging", value: false, kind: SourceFile},
		{path: "drag_n_drop.modifier", value: "mod4", kind: SourceDefault},
		{path: "force_xinerama", value: true, kind: SourceFlag},
		{path: "force_randr14", value: false, kind: SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, src, err := Explain(res, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, tt.kind, src.Kind)
		})
	}

	_, src, _ := Explain(res, "drag_n_drop.meta_dragging")
	assert.Equal(t, file, src.File)

	_, _, err = Explain(res, "nope")
	assert.Error(t, err)
	assert.Contains(t, Paths(), "plugins.paths")
}

func TestLoadFile(t *testing.T) {
	path := writeConf(t, t.TempDir(), "[METRICS]\nlisten = :9000\n")
	res, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", res.Config.Metrics.Listen)
	assert.Equal(t, path, res.Config.Path)
}
