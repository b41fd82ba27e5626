package device

// bioPointChannels is the biochannel set shared by all BioPoint revisions.
var bioPointChannels = []ChannelKind{
	ChannelECG,
	ChannelEMG,
	ChannelEDA,
	ChannelIMU,
	ChannelPPG,
}

// registry is the internal list of all known device families.
// Only the latest revision per family gets the short alias.
var registry = []Family{
	{
		ID:            "BioPoint_v1_4",
		Name:          "BioPoint v1.4",
		Aliases:       []string{"biopoint"},
		Channels:      bioPointChannels,
		OnboardMemory: true,
	},
	{
		ID:            "BioPoint_v1_3",
		Name:          "BioPoint v1.3",
		Channels:      bioPointChannels,
		OnboardMemory: true,
	},
	{
		ID:            "BioPoint_v1_2",
		Name:          "BioPoint v1.2",
		Channels:      bioPointChannels,
		OnboardMemory: true,
	},
	{
		ID:            "BioPoint_v1_1",
		Name:          "BioPoint v1.1",
		Channels:      bioPointChannels,
		OnboardMemory: true,
	},
	{
		ID:       "BioArmband",
		Name:     "BioArmband",
		Aliases:  []string{"armband", "bioarmband"},
		Channels: []ChannelKind{ChannelEMG, ChannelIMU},
		// The armband streams only; it has no onboard flash.
		OnboardMemory: false,
	},
}
