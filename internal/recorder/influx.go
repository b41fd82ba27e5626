package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sifilabs/sifi-bridge-go/internal/record"
)

const (
	influxConnectTimeout = 10 * time.Second

	defaultInfluxBatchSize     = 500
	defaultInfluxFlushInterval = time.Second
	defaultInfluxMeasurement   = "biosignal"
)

// InfluxConfig configures the InfluxDB v2 sink.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Measurement names the series; empty means "biosignal".
	Measurement string

	// Tags are added to every point, alongside the channel tag.
	Tags map[string]string

	// BatchSize and FlushInterval tune the non-blocking write API.
	// Zero values use the sink defaults.
	BatchSize     int
	FlushInterval time.Duration
}

// InfluxSink writes frames to InfluxDB using the non-blocking batched write
// API. Each frame becomes one point: the channel as a tag, samples as fields
// v0..vN, and the bridge's own timestamp preserved as a field (its unit is
// the bridge's clock, not wall time; the point time is the host receive
// time).
type InfluxSink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPI
	log         *slog.Logger
	measurement string
	tags        map[string]string

	mu     sync.Mutex
	closed bool
}

var _ FrameSink = (*InfluxSink)(nil)

// NewInfluxSink connects to InfluxDB, verifies the server with a ping, and
// starts a goroutine draining async write errors into the logger.
func NewInfluxSink(log *slog.Logger, cfg InfluxConfig) (*InfluxSink, error) {
	log = log.With("component", "influx_sink")

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultInfluxBatchSize
	}

	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultInfluxFlushInterval
	}

	measurement := cfg.Measurement
	if measurement == "" {
		measurement = defaultInfluxMeasurement
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval.Milliseconds())),
	)

	ctx, cancel := context.WithTimeout(context.Background(), influxConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()

		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnectFailed, cfg.URL, err)
	}

	if !healthy {
		client.Close()

		return nil, fmt.Errorf("%w: %s not healthy", ErrConnectFailed, cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	s := &InfluxSink{
		client:      client,
		writeAPI:    writeAPI,
		log:         log,
		measurement: measurement,
		tags:        cfg.Tags,
	}

	go s.drainWriteErrors(writeAPI.Errors())

	return s, nil
}

// drainWriteErrors logs async write failures. Writes are non-blocking, so
// errors surface here instead of on WriteFrame.
func (s *InfluxSink) drainWriteErrors(errCh <-chan error) {
	for err := range errCh {
		s.log.Warn("Async write failed", "error", err)
	}
}

// WriteFrame implements FrameSink. The write is buffered and batched; it
// never blocks on the network.
func (s *InfluxSink) WriteFrame(frame *record.DataFrame) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return ErrNotConnected
	}

	tags := map[string]string{"channel": frame.ChannelID}
	for k, v := range s.tags {
		tags[k] = v
	}

	fields := make(map[string]any, len(frame.Samples)+1)
	fields["device_ts"] = frame.Timestamp

	for i, v := range frame.Samples {
		fields["v"+strconv.Itoa(i)] = v
	}

	s.writeAPI.WritePoint(write.NewPoint(s.measurement, tags, fields, time.Now()))

	return nil
}

// Close flushes pending points and closes the client. Safe to call twice.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	s.writeAPI.Flush()
	s.client.Close()

	return nil
}
