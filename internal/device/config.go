package device

import (
	"fmt"
	"regexp"
	"strconv"
)

// ChannelKind identifies one biochannel on a device.
type ChannelKind string

const (
	// ChannelECG is the electrocardiography channel.
	ChannelECG ChannelKind = "ecg"
	// ChannelEMG is the electromyography channel.
	ChannelEMG ChannelKind = "emg"
	// ChannelEDA is the electrodermal activity channel.
	ChannelEDA ChannelKind = "eda"
	// ChannelIMU is the inertial measurement channel.
	ChannelIMU ChannelKind = "imu"
	// ChannelPPG is the photoplethysmography channel.
	ChannelPPG ChannelKind = "ppg"
)

// channelOrder is the argument order the bridge expects for channel-indexed
// configure commands.
var channelOrder = []ChannelKind{ChannelECG, ChannelEMG, ChannelEDA, ChannelIMU, ChannelPPG}

// ChannelMask selects which biochannels to enable for acquisition.
type ChannelMask struct {
	ECG bool
	EMG bool
	EDA bool
	IMU bool
	PPG bool
}

// Flags renders the mask as the five on/off arguments of the
// "configure channels" command, in the bridge's fixed channel order.
func (m ChannelMask) Flags() []string {
	return []string{
		onOff(m.ECG),
		onOff(m.EMG),
		onOff(m.EDA),
		onOff(m.IMU),
		onOff(m.PPG),
	}
}

// Enabled returns the kinds switched on, in the bridge's channel order.
func (m ChannelMask) Enabled() []ChannelKind {
	states := []bool{m.ECG, m.EMG, m.EDA, m.IMU, m.PPG}

	var out []ChannelKind

	for i, on := range states {
		if on {
			out = append(out, channelOrder[i])
		}
	}

	return out
}

// Empty reports whether no channel is enabled.
func (m ChannelMask) Empty() bool {
	return !m.ECG && !m.EMG && !m.EDA && !m.IMU && !m.PPG
}

// SampleRates holds per-channel acquisition frequencies in hertz.
type SampleRates struct {
	ECG int
	EMG int
	EDA int
	IMU int
	PPG int
}

// DefaultSampleRates returns the hardware default acquisition frequencies.
func DefaultSampleRates() SampleRates {
	return SampleRates{ECG: 500, EMG: 2000, EDA: 40, IMU: 50, PPG: 50}
}

// Args renders the rates as the five arguments of the
// "configure sampling-rates" command.
func (r SampleRates) Args() []string {
	return []string{
		strconv.Itoa(r.ECG),
		strconv.Itoa(r.EMG),
		strconv.Itoa(r.EDA),
		strconv.Itoa(r.IMU),
		strconv.Itoa(r.PPG),
	}
}

// Validate rejects rates the hardware cannot run.
func (r SampleRates) Validate() error {
	rates := []int{r.ECG, r.EMG, r.EDA, r.IMU, r.PPG}

	for i, rate := range rates {
		if rate <= 0 {
			return fmt.Errorf("%s sample rate must be positive, got %d", channelOrder[i], rate)
		}
	}

	return nil
}

// BLEPower is the radio transmission power level.
//
// Higher transmission power increases power consumption but may improve
// connection stability.
type BLEPower string

const (
	BLEPowerLow    BLEPower = "low"
	BLEPowerMedium BLEPower = "medium"
	BLEPowerHigh   BLEPower = "high"
)

// Valid reports whether the level is one the bridge accepts.
func (p BLEPower) Valid() bool {
	switch p {
	case BLEPowerLow, BLEPowerMedium, BLEPowerHigh:
		return true
	default:
		return false
	}
}

// MemoryMode sets how the device deals with acquired data: stream to the
// host, record to onboard flash, or both.
type MemoryMode string

const (
	MemoryModeHost   MemoryMode = "host"
	MemoryModeDevice MemoryMode = "device"
	MemoryModeBoth   MemoryMode = "both"
)

// Valid reports whether the mode is one the bridge accepts.
func (m MemoryMode) Valid() bool {
	switch m {
	case MemoryModeHost, MemoryModeDevice, MemoryModeBoth:
		return true
	default:
		return false
	}
}

// PPGSensitivity is the PPG light sensor sensitivity.
//
// Higher sensitivity helps when the signal is weak but may introduce noise
// or saturate the sensor.
type PPGSensitivity string

const (
	PPGSensitivityLow    PPGSensitivity = "low"
	PPGSensitivityMedium PPGSensitivity = "medium"
	PPGSensitivityHigh   PPGSensitivity = "high"
	PPGSensitivityMax    PPGSensitivity = "max"
)

// Valid reports whether the sensitivity is one the bridge accepts.
func (s PPGSensitivity) Valid() bool {
	switch s {
	case PPGSensitivityLow, PPGSensitivityMedium, PPGSensitivityHigh, PPGSensitivityMax:
		return true
	default:
		return false
	}
}

// ListSource selects which inventory a list command queries.
type ListSource string

const (
	// ListSourceSelf lists the wrapper-managed bridge devices.
	ListSourceSelf ListSource = "self"
	// ListSourceBLE scans for devices advertising over BLE.
	ListSourceBLE ListSource = "ble"
	// ListSourceSerial scans serial ports.
	ListSourceSerial ListSource = "serial"
	// ListSourceDevices lists devices the bridge already knows.
	ListSourceDevices ListSource = "devices"
)

// Valid reports whether the source is one the bridge accepts.
func (s ListSource) Valid() bool {
	switch s {
	case ListSourceSelf, ListSourceBLE, ListSourceSerial, ListSourceDevices:
		return true
	default:
		return false
	}
}

// macPattern matches a colon- or dash-separated 48-bit MAC address.
var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// IsMAC reports whether the handle is a hardware address rather than a
// family name. Connect accepts either form.
func IsMAC(handle string) bool {
	return macPattern.MatchString(handle)
}

// onOff renders a boolean in the bridge's switch grammar.
func onOff(on bool) string {
	if on {
		return "on"
	}

	return "off"
}
