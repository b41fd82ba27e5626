// Package hostconfig loads the YAML run configuration consumed by the
// sifibridge command.
package hostconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sifilabs/sifi-bridge-go/internal/device"
)

// Config is the root configuration for a recording run.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Device    DeviceConfig    `yaml:"device"`
	Recording RecordingConfig `yaml:"recording"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig controls the sifi_bridge process itself.
type BridgeConfig struct {
	// ExecPath is the explicit path to the sifi_bridge executable.
	// Empty means the usual search ($SIFI_BRIDGE_PATH, $PATH, common dirs).
	ExecPath string `yaml:"exec_path"`

	// Args are extra arguments appended to the bridge invocation.
	Args []string `yaml:"args"`

	CommandTimeout time.Duration `yaml:"command_timeout"`
	QuitGrace      time.Duration `yaml:"quit_grace"`
}

// DeviceConfig names the device to record from and what to acquire.
type DeviceConfig struct {
	// Handle is a MAC address or device name, as accepted by connect.
	Handle string `yaml:"handle"`

	// Channels lists the biochannels to enable: ecg, emg, eda, imu, ppg.
	// Empty keeps the device's current selection.
	Channels []string `yaml:"channels"`

	// SampleRates overrides acquisition frequencies in hertz, keyed by
	// channel name. Channels not listed keep their hardware defaults.
	SampleRates map[string]int `yaml:"sample_rates"`

	// Duration bounds the recording; zero streams until interrupted.
	Duration time.Duration `yaml:"duration"`
}

// RecordingConfig selects where streamed frames are written.
type RecordingConfig struct {
	// JSONLPath enables the line-delimited JSON file sink when set.
	JSONLPath string `yaml:"jsonl_path"`

	Influx InfluxConfig `yaml:"influx"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

// InfluxConfig contains InfluxDB v2 sink settings.
type InfluxConfig struct {
	Enabled       bool              `yaml:"enabled"`
	URL           string            `yaml:"url"`
	Token         string            `yaml:"token"`
	Org           string            `yaml:"org"`
	Bucket        string            `yaml:"bucket"`
	Measurement   string            `yaml:"measurement"`
	Tags          map[string]string `yaml:"tags"`
	BatchSize     int               `yaml:"batch_size"`
	FlushInterval time.Duration     `yaml:"flush_interval"`
}

// MQTTConfig contains MQTT sink settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns a Config with the defaults a bare file inherits.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			CommandTimeout: 5 * time.Second,
			QuitGrace:      2 * time.Second,
		},
		Recording: RecordingConfig{
			MQTT: MQTTConfig{
				ClientID:    "sifibridge",
				TopicPrefix: "sifi",
				QoS:         1,
			},
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a run configuration from a YAML file.
//
// Values resolve in order: defaults, then file values, then environment
// overrides (SIFIBRIDGE_DEVICE_HANDLE, SIFIBRIDGE_INFLUX_URL,
// SIFIBRIDGE_INFLUX_TOKEN, SIFIBRIDGE_MQTT_USERNAME,
// SIFIBRIDGE_MQTT_PASSWORD, SIFIBRIDGE_METRICS_LISTEN). The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets secrets and per-host values stay out of the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIFIBRIDGE_DEVICE_HANDLE"); v != "" {
		cfg.Device.Handle = v
	}

	if v := os.Getenv("SIFIBRIDGE_INFLUX_URL"); v != "" {
		cfg.Recording.Influx.URL = v
	}

	if v := os.Getenv("SIFIBRIDGE_INFLUX_TOKEN"); v != "" {
		cfg.Recording.Influx.Token = v
	}

	if v := os.Getenv("SIFIBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.Recording.MQTT.Username = v
	}

	if v := os.Getenv("SIFIBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.Recording.MQTT.Password = v
	}

	if v := os.Getenv("SIFIBRIDGE_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
}

// Validate checks the configuration for errors. It does not require a
// device handle; commands that need one check for it themselves.
func (c *Config) Validate() error {
	var errs []string

	for _, name := range c.Device.Channels {
		if _, err := channelByName(name); err != nil {
			errs = append(errs, err.Error())
		}
	}

	for name, rate := range c.Device.SampleRates {
		if _, err := channelByName(name); err != nil {
			errs = append(errs, err.Error())
		} else if rate <= 0 {
			errs = append(errs, fmt.Sprintf("device.sample_rates.%s must be positive", name))
		}
	}

	if c.Device.Duration < 0 {
		errs = append(errs, "device.duration must not be negative")
	}

	if c.Recording.Influx.Enabled {
		for field, value := range map[string]string{
			"url":    c.Recording.Influx.URL,
			"token":  c.Recording.Influx.Token,
			"org":    c.Recording.Influx.Org,
			"bucket": c.Recording.Influx.Bucket,
		} {
			if value == "" {
				errs = append(errs, "recording.influx."+field+" is required when influx is enabled")
			}
		}
	}

	if c.Recording.MQTT.Enabled {
		if c.Recording.MQTT.BrokerURL == "" {
			errs = append(errs, "recording.mqtt.broker_url is required when mqtt is enabled")
		}

		if c.Recording.MQTT.QoS < 0 || c.Recording.MQTT.QoS > 2 {
			errs = append(errs, "recording.mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn, or error")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, "logging.format must be text or json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Mask converts the configured channel names to a device channel mask.
func (c *Config) Mask() device.ChannelMask {
	var mask device.ChannelMask

	for _, name := range c.Device.Channels {
		switch kind, _ := channelByName(name); kind {
		case device.ChannelECG:
			mask.ECG = true
		case device.ChannelEMG:
			mask.EMG = true
		case device.ChannelEDA:
			mask.EDA = true
		case device.ChannelIMU:
			mask.IMU = true
		case device.ChannelPPG:
			mask.PPG = true
		}
	}

	return mask
}

// Rates returns the configured sample rates over the hardware defaults.
// The second result reports whether any rate was overridden at all.
func (c *Config) Rates() (device.SampleRates, bool) {
	rates := device.DefaultSampleRates()

	if len(c.Device.SampleRates) == 0 {
		return rates, false
	}

	for name, rate := range c.Device.SampleRates {
		switch kind, _ := channelByName(name); kind {
		case device.ChannelECG:
			rates.ECG = rate
		case device.ChannelEMG:
			rates.EMG = rate
		case device.ChannelEDA:
			rates.EDA = rate
		case device.ChannelIMU:
			rates.IMU = rate
		case device.ChannelPPG:
			rates.PPG = rate
		}
	}

	return rates, true
}

func channelByName(name string) (device.ChannelKind, error) {
	switch strings.ToLower(name) {
	case "ecg":
		return device.ChannelECG, nil
	case "emg":
		return device.ChannelEMG, nil
	case "eda":
		return device.ChannelEDA, nil
	case "imu":
		return device.ChannelIMU, nil
	case "ppg":
		return device.ChannelPPG, nil
	default:
		return "", fmt.Errorf("unknown channel %q (want ecg, emg, eda, imu, or ppg)", name)
	}
}
