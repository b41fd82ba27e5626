// Package cli provides discovery, version validation, and invocation building
// for the sifi_bridge executable.
//
// # Discovery
//
// The Discoverer interface locates the bridge executable:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    ExecPath: "",           // Optional explicit path
//	    Logger:   slog.Default(),
//	})
//	execPath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.ExecPath (if provided)
//  2. $SIFI_BRIDGE_PATH
//  3. System PATH
//  4. Common installation directories (/usr/local/bin, /usr/bin,
//     ~/.local/bin, ~/.cargo/bin)
//
// # Version handshake
//
// During discovery, the executable's --version output is checked against
// CompatibleVersion. The wire grammar is a versioned external contract, so a
// major.minor mismatch fails discovery with a SpawnError rather than
// proceeding and misreading records. The handshake can be skipped via
// Config.SkipVersionCheck or the SIFI_BRIDGE_SKIP_VERSION_CHECK environment
// variable.
package cli
