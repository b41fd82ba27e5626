//go:build integration

// Package integration exercises the full stack against a fake sifi_bridge:
// a shell script speaking the wire protocol over real pipes. Run with
//
//	go test -tags integration ./integration/
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sifibridge "github.com/sifilabs/sifi-bridge-go"
)

// fakeBridgeScript is a minimal bridge: it answers the version handshake,
// acks every command, emits a burst of frames and a battery event on start,
// and exits cleanly on quit.
const fakeBridgeScript = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "sifi_bridge 1.2.3"
  exit 0
fi

echo "fake bridge ready" >&2

while IFS= read -r line; do
  set -- $line
  verb=$1
  case "$verb" in
    quit)
      echo "ACK quit ok"
      exit 0
      ;;
    start)
      echo "ACK start ok"
      echo "DATA emg0 1000 0.1,0.2"
      echo "DATA emg0 1001 0.3,0.4"
      echo "DATA ecg 1002 0.5"
      echo "EVT battery 85"
      ;;
    echo)
      shift
      echo "ACK echo ok $*"
      ;;
    list)
      echo "ACK list ok BioPoint_v1_3 BioArmband"
      ;;
    show)
      echo "ACK show ok sampling-rate=500 filtering=on"
      ;;
    download)
      echo "ACK download ok 128"
      echo "DATA emg0 2000 0.7"
      ;;
    connect)
      if [ "$2" = "ghost" ]; then
        echo "ERR no-device no device named ghost"
      else
        echo "ACK connect ok"
      fi
      ;;
    *)
      echo "ACK $verb ok"
      ;;
  esac
done
`

// writeFakeBridge installs a bridge script into a temp dir and returns its
// path.
func writeFakeBridge(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sifi_bridge")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

// startFakeBridge spawns a bridge session against the script and registers
// cleanup.
func startFakeBridge(t *testing.T, ctx context.Context, script string, extra ...sifibridge.Option) sifibridge.Bridge {
	t.Helper()

	opts := append([]sifibridge.Option{
		sifibridge.WithExecutable(writeFakeBridge(t, script)),
		sifibridge.WithCommandTimeout(5 * time.Second),
		sifibridge.WithQuitGrace(time.Second),
	}, extra...)

	bridge := sifibridge.New()
	require.NoError(t, bridge.Start(ctx, opts...))

	t.Cleanup(func() { _ = bridge.Close() })

	return bridge
}
