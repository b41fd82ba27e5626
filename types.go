package sifibridge

import (
	"github.com/sifilabs/sifi-bridge-go/internal/config"
	"github.com/sifilabs/sifi-bridge-go/internal/device"
	"github.com/sifilabs/sifi-bridge-go/internal/record"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures a bridge session.
type Options = config.Options

// ===== Records =====

// DataFrame is one streamed batch of samples from a single channel.
//
// ChannelID names the producing channel (for example "emg0"), Timestamp is
// the bridge's own clock for the first sample, and Samples holds the values
// in acquisition order.
type DataFrame = record.DataFrame

// Event is an unsolicited notification from the bridge, such as a battery
// level or a device-initiated disconnect.
type Event = record.Event

// Ack is the successful terminal reply to a command.
type Ack = record.Ack

// Event kinds reported by the bridge.
const (
	// EventBattery reports the device battery percentage.
	EventBattery = record.EventBattery
	// EventDisconnected reports a device-initiated disconnect.
	EventDisconnected = record.EventDisconnected
	// EventMemory reports memory download progress.
	EventMemory = record.EventMemory
	// EventStatus reports a free-form status change.
	EventStatus = record.EventStatus
)

// ===== Device configuration =====

// ChannelKind identifies one biochannel on a device.
type ChannelKind = device.ChannelKind

// Channel kinds.
const (
	// ChannelECG is the electrocardiography channel.
	ChannelECG = device.ChannelECG
	// ChannelEMG is the electromyography channel.
	ChannelEMG = device.ChannelEMG
	// ChannelEDA is the electrodermal activity channel.
	ChannelEDA = device.ChannelEDA
	// ChannelIMU is the inertial measurement channel.
	ChannelIMU = device.ChannelIMU
	// ChannelPPG is the photoplethysmography channel.
	ChannelPPG = device.ChannelPPG
)

// ChannelMask selects which biochannels to enable for acquisition.
type ChannelMask = device.ChannelMask

// SampleRates holds the per-channel acquisition rates in hertz.
type SampleRates = device.SampleRates

// DefaultSampleRates returns the device power-on rates.
func DefaultSampleRates() SampleRates {
	return device.DefaultSampleRates()
}

// BLEPower is the radio transmit power level.
type BLEPower = device.BLEPower

// BLE power levels.
const (
	BLEPowerLow    = device.BLEPowerLow
	BLEPowerMedium = device.BLEPowerMedium
	BLEPowerHigh   = device.BLEPowerHigh
)

// MemoryMode sets how the device deals with acquired data.
type MemoryMode = device.MemoryMode

// Memory modes.
const (
	// MemoryModeHost streams data to the host.
	MemoryModeHost = device.MemoryModeHost
	// MemoryModeDevice records to onboard flash.
	MemoryModeDevice = device.MemoryModeDevice
	// MemoryModeBoth streams and records at the same time.
	MemoryModeBoth = device.MemoryModeBoth
)

// PPGSensitivity is the PPG light sensor sensitivity.
type PPGSensitivity = device.PPGSensitivity

// PPG sensitivities.
const (
	PPGSensitivityLow    = device.PPGSensitivityLow
	PPGSensitivityMedium = device.PPGSensitivityMedium
	PPGSensitivityHigh   = device.PPGSensitivityHigh
	PPGSensitivityMax    = device.PPGSensitivityMax
)

// ListSource selects which inventory a ListDevices call queries.
type ListSource = device.ListSource

// List sources.
const (
	// ListSourceSelf lists the wrapper-managed bridge devices.
	ListSourceSelf = device.ListSourceSelf
	// ListSourceBLE scans for devices advertising over BLE.
	ListSourceBLE = device.ListSourceBLE
	// ListSourceSerial scans serial ports.
	ListSourceSerial = device.ListSourceSerial
	// ListSourceDevices lists devices the bridge already knows.
	ListSourceDevices = device.ListSourceDevices
)

// ===== Device catalog =====

// Family holds metadata for one supported device family.
type Family = device.Family

// Families returns a copy of all supported device families.
func Families() []Family {
	return device.All()
}

// FamilyByID looks up a family by ID, alias, or advertised-name prefix.
// Returns nil if no family matches.
func FamilyByID(id string) *Family {
	return device.ByID(id)
}

// FamiliesWithOnboardMemory returns the families that can record to flash.
func FamiliesWithOnboardMemory() []Family {
	return device.WithOnboardMemory()
}

// IsMAC reports whether a handle is a hardware address rather than a device
// name. Connect accepts either form.
func IsMAC(handle string) bool {
	return device.IsMAC(handle)
}
