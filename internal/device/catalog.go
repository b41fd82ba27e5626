// Package device provides a catalog of known SiFi wearables and the typed
// configuration values the bridge accepts for them. It is the source of
// truth for device metadata within the wrapper.
package device

import (
	"slices"
	"strings"
)

// Family holds metadata for a single device family.
type Family struct {
	// ID is the BLE advertising name the bridge connects by
	// (e.g. "BioPoint_v1_3").
	ID string
	// Name is the human-readable display name.
	Name string
	// Aliases are shorthand names accepted by this wrapper
	// (e.g. "biopoint").
	Aliases []string
	// Channels lists the biochannels the hardware carries.
	Channels []ChannelKind
	// OnboardMemory indicates the device can record to onboard flash, so
	// both memory modes and the memory download apply.
	OnboardMemory bool
}

// HasChannel reports whether the family carries the given biochannel.
func (f Family) HasChannel(kind ChannelKind) bool {
	return slices.Contains(f.Channels, kind)
}

// SupportsMemoryMode reports whether the family accepts the given memory
// mode. Devices without onboard flash only support streaming to the host.
func (f Family) SupportsMemoryMode(mode MemoryMode) bool {
	if mode == MemoryModeHost {
		return true
	}

	return f.OnboardMemory
}

// All returns a copy of every known family in the catalog.
func All() []Family {
	out := make([]Family, len(registry))
	copy(out, registry)

	return out
}

// ByID looks up a family by its identifier. It checks in order:
//  1. Exact match on ID
//  2. Alias match (case-insensitive)
//  3. Prefix match (for suffixed BLE names like "BioPoint_v1_3_A41C")
//
// Returns nil if no family is found.
func ByID(id string) *Family {
	// Exact ID match.
	for i := range registry {
		if registry[i].ID == id {
			f := registry[i]

			return &f
		}
	}

	// Alias match.
	lower := strings.ToLower(id)

	for i := range registry {
		if slices.Contains(registry[i].Aliases, lower) {
			f := registry[i]

			return &f
		}
	}

	// Prefix match: the queried ID starts with a known family ID.
	// This handles per-unit BLE names like "BioPoint_v1_3_A41C".
	for i := range registry {
		if strings.HasPrefix(id, registry[i].ID) {
			f := registry[i]

			return &f
		}
	}

	return nil
}

// WithOnboardMemory returns all families that can record to onboard flash.
func WithOnboardMemory() []Family {
	var out []Family

	for _, f := range registry {
		if f.OnboardMemory {
			out = append(out, f)
		}
	}

	return out
}
