package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsBadLevel(t *testing.T) {
	_, err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestInitWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "awm.log")
	lg, err := Init(Config{Level: "debug", File: path})
	require.NoError(t, err)
	lg.Info("hello", zap.String("display", ":0"))
	require.NoError(t, lg.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"display":":0"`)
}

func TestStderrSyncerIgnoresUnsyncableFiles(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	assert.NoError(t, stderrSyncer{w}.Sync())

	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Error(t, stderrSyncer{f}.Sync())
}

func TestInitRejectsDirectoryAsFile(t *testing.T) {
	_, err := Init(Config{File: t.TempDir()})
	assert.Error(t, err)
}

func TestHandleFormatsHex(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lg := zap.New(core)
	lg.Info("framed", Handle("inner", xproto.Window(0x100)))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "0x00000100", entries[0].ContextMap()["inner"])
}

func TestErrorLabel(t *testing.T) {
	err := xproto.WindowError{NiceName: "Window", BadValue: 0x42}
	assert.Equal(t, "BadWindow", ErrorLabel(err))

	wrapped := errors.Wrap(err, "reparent")
	core, logs := observer.New(zap.DebugLevel)
	zap.New(core).Warn("failed", XError(wrapped))
	fields := logs.All()[0].ContextMap()["error"].(map[string]interface{})
	assert.Equal(t, "BadWindow", fields["label"])
	assert.Equal(t, "0x00000042", fields["bad"])
}

func TestGlobalsDefaultToNop(t *testing.T) {
	assert.NotNil(t, L())
	core, logs := observer.New(zap.InfoLevel)
	prev := L()
	ReplaceGlobals(zap.New(core))
	t.Cleanup(func() { ReplaceGlobals(prev) })

	L().Info("x")
	assert.Equal(t, 1, logs.Len())
}
