package cli

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sifilabs/sifi-bridge-go/internal/config"
	"github.com/sifilabs/sifi-bridge-go/internal/errors"
)

// writeFakeBridge writes an executable script that prints output for
// --version and returns its path.
func writeFakeBridge(t *testing.T, versionOutput string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake bridge script requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "sifi_bridge")
	script := "#!/bin/sh\necho \"" + versionOutput + "\"\n"

	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func TestDiscoverer_NotFound(t *testing.T) {
	d := NewDiscoverer(&Config{
		ExecPath: filepath.Join(t.TempDir(), "does-not-exist"),
	})

	_, err := d.Discover(context.Background())
	require.Error(t, err)

	spawnErr, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok, "expected *errors.SpawnError, got %T", err)
	require.Len(t, spawnErr.SearchedPaths, 1)
}

func TestDiscoverer_ExplicitPath(t *testing.T) {
	path := writeFakeBridge(t, "sifi_bridge 1.2.3")

	d := NewDiscoverer(&Config{ExecPath: path})
	t.Setenv("SIFI_BRIDGE_SKIP_VERSION_CHECK", "")

	found, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Equal(t, path, found)
}

func TestDiscoverer_EnvPath(t *testing.T) {
	path := writeFakeBridge(t, "sifi_bridge 1.2.0")

	t.Setenv("SIFI_BRIDGE_PATH", path)
	t.Setenv("SIFI_BRIDGE_SKIP_VERSION_CHECK", "")

	d := NewDiscoverer(nil)

	found, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Equal(t, path, found)
}

func TestDiscoverer_VersionMismatch(t *testing.T) {
	path := writeFakeBridge(t, "sifi_bridge 2.0.1")

	t.Setenv("SIFI_BRIDGE_SKIP_VERSION_CHECK", "")

	d := NewDiscoverer(&Config{ExecPath: path})

	_, err := d.Discover(context.Background())
	require.Error(t, err)

	_, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok, "expected *errors.SpawnError, got %T", err)
	require.Contains(t, err.Error(), "incompatible")
}

func TestDiscoverer_UnparseableVersion(t *testing.T) {
	path := writeFakeBridge(t, "no version here")

	t.Setenv("SIFI_BRIDGE_SKIP_VERSION_CHECK", "")

	d := NewDiscoverer(&Config{ExecPath: path})

	_, err := d.Discover(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unparseable")
}

func TestDiscoverer_SkipVersionCheck(t *testing.T) {
	path := writeFakeBridge(t, "sifi_bridge 9.9.9")

	t.Setenv("SIFI_BRIDGE_SKIP_VERSION_CHECK", "")

	d := NewDiscoverer(&Config{ExecPath: path, SkipVersionCheck: true})

	found, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Equal(t, path, found)
}

func TestDiscoverer_SkipVersionCheckEnv(t *testing.T) {
	path := writeFakeBridge(t, "sifi_bridge 9.9.9")

	t.Setenv("SIFI_BRIDGE_SKIP_VERSION_CHECK", "1")

	d := NewDiscoverer(&Config{ExecPath: path})

	found, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Equal(t, path, found)
}

func TestBuildArgs(t *testing.T) {
	require.Empty(t, BuildArgs(&config.Options{}))

	args := BuildArgs(&config.Options{Args: []string{"--no-color", "--trace"}})
	require.Equal(t, []string{"--no-color", "--trace"}, args)
}

func TestBuildEnvironment_EnvVarsPassedToSubprocess(t *testing.T) {
	options := &config.Options{
		Env: map[string]string{
			"SIFI_LOG": "debug",
		},
	}

	env := BuildEnvironment(options)

	require.Contains(t, env, "SIFI_LOG=debug")
	require.Contains(t, env, "SIFI_BRIDGE_ENTRYPOINT=sdk-go")
}
