package iocfixture

import (
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// toolAvailabilityCache caches the results of tool availability checks
// to avoid repeated exec.LookPath calls during test execution
var (
	toolAvailabilityCache = make(map[string]bool)
	toolAvailabilityMu    sync.Mutex
)

// checkToolCached returns whether a tool is available, using cache
func checkToolCached(toolName string) bool {
	toolAvailabilityMu.Lock()
	defer toolAvailabilityMu.Unlock()

	if available, ok := toolAvailabilityCache[toolName]; ok {
		return available
	}

	_, err := exec.LookPath(toolName)
	available := err == nil
	toolAvailabilityCache[toolName] = available
	return available
}

// requireTool skips the test if the tool is not available in PATH
func requireTool(t *testing.T, toolName string) {
	t.Helper()
	if !checkToolCached(toolName) {
		t.Skipf("%s not found in PATH, skipping test", toolName)
	}
}

// fakeIOCPath returns the absolute path of the stand-in IOC script
func fakeIOCPath(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", "fakeioc.sh"))
	require.NoError(t, err)
	return path
}

// fakeIOCLauncher returns a launcher running testdata/fakeioc.sh in mode
// with short deadlines
func fakeIOCLauncher(t *testing.T, mode string, opts ...LauncherOption) *Launcher {
	t.Helper()
	requireTool(t, "sh")

	base := []LauncherOption{
		WithCommand("/bin/sh", fakeIOCPath(t)),
		WithEnv("FAKEIOC_MODE=" + mode),
		WithReadyTimeout(2 * time.Second),
		WithExitGrace(500 * time.Millisecond),
		WithLogger(zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)),
	}
	l, err := NewLauncher(append(base, opts...)...)
	require.NoError(t, err)
	return l
}

// testTemplates is a pair of templates, one with and one without macros
var testTemplates = []Template{
	{Path: "db/motor.db", Macros: "P=SIM:,M=M1"},
	{Path: "db/extra.db"},
}
