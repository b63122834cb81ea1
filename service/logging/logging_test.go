package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesRunLogFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	ctx, path, closeFn := Setup(context.Background(), &console, "info", dir, "run-1234")
	clog.InfoContext(ctx, "phase started", "phase", 3)
	closeFn()

	require.Equal(t, filepath.Join(dir, "teardown-run-1234.log"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\S* INFO phase started`, string(data))
	assert.Contains(t, string(data), "run_id=run-1234")
	assert.Contains(t, string(data), "phase=3")
	assert.NotContains(t, string(data), "{")
	assert.Contains(t, console.String(), "phase started")
}

func TestRunLogKeepsDebugBelowConsoleLevel(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	ctx, path, closeFn := Setup(context.Background(), &console, "warn", dir, "run-1")
	clog.DebugContext(ctx, "assumed role", "account", "222222222222")
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DEBU assumed role account=222222222222")
	assert.NotContains(t, console.String(), "assumed role")
}

func TestSetupWithoutOutputDir(t *testing.T) {
	var console bytes.Buffer

	ctx, path, closeFn := Setup(context.Background(), &console, "debug", "", "run")
	defer closeFn()

	assert.Empty(t, path)
	clog.DebugContext(ctx, "only on console")
	assert.Contains(t, console.String(), "only on console")
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	var console bytes.Buffer

	ctx, _, closeFn := Setup(context.Background(), &console, "chatty", "", "run")
	defer closeFn()

	clog.DebugContext(ctx, "hidden")
	clog.InfoContext(ctx, "shown")
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}
