package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sifibridge "github.com/sifilabs/sifi-bridge-go"
	"github.com/sifilabs/sifi-bridge-go/internal/hostconfig"
)

const teardownTimeout = 5 * time.Second

// RunCmd records from a device into the configured sinks until the
// configured duration elapses or the process is interrupted.
type RunCmd struct {
	Device   string        `short:"d" help:"Device handle (MAC or name); overrides the config file."`
	Duration time.Duration `help:"Recording length; zero streams until interrupted. Overrides the config file."`
	JSONL    string        `help:"Write frames to this JSONL file; overrides the config file."`
}

func (c *RunCmd) Run(globals *CLI) error {
	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}

	if c.Device != "" {
		cfg.Device.Handle = c.Device
	}

	if c.Duration != 0 {
		cfg.Device.Duration = c.Duration
	}

	if c.JSONL != "" {
		cfg.Recording.JSONLPath = c.JSONL
	}

	if cfg.Device.Handle == "" {
		return errors.New("no device handle (set device.handle in the config file or pass --device)")
	}

	log := globals.buildLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := bridgeOptions(cfg, log)

	sinks, err := buildSinks(cfg, log)
	if err != nil {
		return err
	}

	if len(sinks) > 0 {
		opts = append(opts, sifibridge.WithFrameSink(sinks...))
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		opts = append(opts, sifibridge.WithMetrics(registry))

		srv := serveMetrics(cfg.Metrics.Listen, registry, log)
		defer shutdownMetrics(srv, log)
	}

	opts = append(opts, sifibridge.WithOnEvent(func(e *sifibridge.Event) {
		log.Info("Bridge event", "kind", e.Kind, "payload", e.Payload)
	}))

	return record(ctx, stop, cfg, log, opts)
}

// record drives one full acquisition session against the configured device.
func record(
	ctx context.Context,
	stop context.CancelFunc,
	cfg *hostconfig.Config,
	log *slog.Logger,
	opts []sifibridge.Option,
) error {
	bridge := sifibridge.New()

	defer func() {
		if err := bridge.Close(); err != nil {
			log.Warn("Failed to close bridge", "error", err)
		}
	}()

	if err := bridge.Start(ctx, opts...); err != nil {
		return err
	}

	if err := bridge.Connect(ctx, cfg.Device.Handle); err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Device.Handle, err)
	}

	log.Info("Connected", "handle", cfg.Device.Handle, "session", bridge.SessionID())

	if mask := cfg.Mask(); !mask.Empty() {
		if err := bridge.ConfigureChannels(ctx, mask); err != nil {
			return err
		}
	}

	if rates, overridden := cfg.Rates(); overridden {
		if err := bridge.ConfigureSampleRates(ctx, rates); err != nil {
			return err
		}
	}

	if log.Enabled(ctx, slog.LevelDebug) {
		if settings, err := bridge.Show(ctx); err == nil {
			log.Debug("Device configuration", "settings", settings)
		}
	}

	if err := bridge.StartStreaming(ctx); err != nil {
		return err
	}

	streamCtx := ctx

	if cfg.Device.Duration > 0 {
		var cancel context.CancelFunc

		streamCtx, cancel = context.WithTimeout(ctx, cfg.Device.Duration)
		defer cancel()
	}

	started := time.Now()
	perChannel := make(map[string]int)
	frames := 0

	for {
		frame, err := bridge.WaitData(streamCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				log.Info("Recording window elapsed")

				break
			}

			if errors.Is(err, context.Canceled) {
				log.Info("Interrupted, stopping")

				break
			}

			return err
		}

		frames++
		perChannel[frame.ChannelID]++
	}

	// A second interrupt now falls through to the default handler.
	stop()

	teardownCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if err := bridge.StopStreaming(teardownCtx); err != nil {
		log.Warn("Failed to stop streaming", "error", err)
	}

	for _, frame := range sifibridge.DrainFrames(bridge) {
		frames++
		perChannel[frame.ChannelID]++
	}

	if err := bridge.Disconnect(teardownCtx); err != nil {
		log.Warn("Failed to disconnect", "error", err)
	}

	log.Info("Recording finished",
		"frames", frames,
		"channels", perChannel,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	return nil
}

// buildSinks constructs every sink the run configuration enables.
func buildSinks(cfg *hostconfig.Config, log *slog.Logger) ([]sifibridge.FrameSink, error) {
	var sinks []sifibridge.FrameSink

	if path := cfg.Recording.JSONLPath; path != "" {
		sink, err := sifibridge.NewJSONLSink(path)
		if err != nil {
			return nil, fmt.Errorf("opening jsonl sink: %w", err)
		}

		sinks = append(sinks, sink)
		log.Info("Recording to file", "path", path)
	}

	if in := cfg.Recording.Influx; in.Enabled {
		sink, err := sifibridge.NewInfluxSink(log, sifibridge.InfluxConfig{
			URL:           in.URL,
			Token:         in.Token,
			Org:           in.Org,
			Bucket:        in.Bucket,
			Measurement:   in.Measurement,
			Tags:          in.Tags,
			BatchSize:     in.BatchSize,
			FlushInterval: in.FlushInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting influx sink: %w", err)
		}

		sinks = append(sinks, sink)
		log.Info("Recording to InfluxDB", "url", in.URL, "bucket", in.Bucket)
	}

	if mq := cfg.Recording.MQTT; mq.Enabled {
		sink, err := sifibridge.NewMQTTSink(sifibridge.MQTTConfig{
			BrokerURL:   mq.BrokerURL,
			ClientID:    mq.ClientID,
			Username:    mq.Username,
			Password:    mq.Password,
			TopicPrefix: mq.TopicPrefix,
			QoS:         byte(mq.QoS),
		})
		if err != nil {
			return nil, fmt.Errorf("connecting mqtt sink: %w", err)
		}

		sinks = append(sinks, sink)
		log.Info("Publishing to MQTT", "broker", mq.BrokerURL, "prefix", mq.TopicPrefix)
	}

	return sinks, nil
}

// serveMetrics exposes the session's Prometheus registry over HTTP.
func serveMetrics(addr string, registry *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server exited", "error", err)
		}
	}()

	log.Info("Serving metrics", "addr", addr)

	return srv
}

func shutdownMetrics(srv *http.Server, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Metrics server shutdown failed", "error", err)
	}
}
