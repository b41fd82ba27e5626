// Package sifibridge provides a Go wrapper for the sifi_bridge executable,
// the host-side gateway to SiFi Labs biosignal acquisition devices.
//
// The wrapper spawns sifi_bridge as a subprocess, speaks its line-oriented
// text protocol over stdin/stdout, and exposes the device as typed Go
// operations: connect, configure, stream, and record. Commands run strictly
// one at a time; streamed data frames and unsolicited events are
// demultiplexed off the same pipe without ever blocking the reader.
//
// # Basic Usage
//
// For a self-contained acquisition, use the Acquire function:
//
//	ctx := context.Background()
//	mask := sifibridge.ChannelMask{ECG: true, EMG: true}
//
//	for frame, err := range sifibridge.Acquire(ctx, "BioPoint_v1_3", mask, 10*time.Second) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(frame.ChannelID, frame.Timestamp, frame.Samples)
//	}
//
// # Interactive Sessions
//
// For full control over the device, use New or the WithBridge helper:
//
//	// Using WithBridge for automatic lifecycle management
//	err := sifibridge.WithBridge(ctx, func(b sifibridge.Bridge) error {
//	    if err := b.Connect(ctx, "BioPoint_v1_3"); err != nil {
//	        return err
//	    }
//	    if err := b.ConfigureChannels(ctx, sifibridge.ChannelMask{EMG: true}); err != nil {
//	        return err
//	    }
//	    if err := b.StartStreaming(ctx); err != nil {
//	        return err
//	    }
//	    for frame, err := range sifibridge.Frames(ctx, b) {
//	        if err != nil {
//	            return err
//	        }
//	        process(frame)
//	    }
//	    return nil
//	})
//
//	// Or using New directly for more control
//	bridge := sifibridge.New()
//	defer bridge.Close()
//
//	err := bridge.Start(ctx,
//	    sifibridge.WithLogger(slog.Default()),
//	    sifibridge.WithCommandTimeout(5*time.Second),
//	)
//
// # Recording
//
// Streamed frames can be teed to recording sinks without touching the
// polling path:
//
//	sink, err := sifibridge.NewJSONLSink("session.jsonl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = bridge.Start(ctx, sifibridge.WithFrameSink(sink))
//
// InfluxDB v2 and MQTT sinks are included; implement FrameSink for anything
// else.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	err := bridge.Start(ctx, sifibridge.WithLogger(logger))
//
// # Error Handling
//
// The package provides typed errors for different failure scenarios:
//
//	if err := bridge.Connect(ctx, "BioPoint_v1_3"); err != nil {
//	    if spawnErr, ok := errors.AsType[*sifibridge.SpawnError](err); ok {
//	        log.Fatalf("sifi_bridge not installed, searched: %v", spawnErr.SearchedPaths)
//	    }
//	    if lostErr, ok := errors.AsType[*sifibridge.ConnectionLostError](err); ok {
//	        log.Fatalf("bridge died with exit code %d: %s", lostErr.ExitCode, lostErr.Stderr)
//	    }
//	    if protoErr, ok := errors.AsType[*sifibridge.ProtocolError](err); ok {
//	        log.Fatalf("bridge rejected the command: %s", protoErr.Message)
//	    }
//	    log.Fatal(err)
//	}
//
// # Requirements
//
// This package requires the sifi_bridge executable to be installed and
// available in your system PATH, in $SIFI_BRIDGE_PATH, or at a path given
// via WithExecutable.
package sifibridge
