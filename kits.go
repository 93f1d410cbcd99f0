package padkit

// Kit maps the 16 pad slots to sample identifiers
type Kit struct {
	Name    string
	Samples [NumPads]string
}

// Slot layout for the built-in kits (documentation, not enforced)
// 0: Kick
// 1: Snare
// 2: Closed HH
// 3: Open HH
// 4: Low Tom
// 5: Mid Tom
// 6: High Tom
// 7: Crash
// 8: Ride
// 9: Clap
// 10: Rimshot
// 11: Cowbell
// 12: Clave
// 13: Shaker
// 14: Low Conga
// 15: High Conga

// Kits contains all built-in kit mappings
var Kits = map[string]Kit{
	"909": {
		Name: "TR-909",
		Samples: [NumPads]string{
			"909_kick",
			"909_snare",
			"909_hh_closed",
			"909_hh_open",
			"909_tom_low",
			"909_tom_mid",
			"909_tom_high",
			"909_crash",
			"909_ride",
			"909_clap",
			"909_rimshot",
			"909_cowbell",
			"909_clave",
			"909_shaker",
			"909_conga_low",
			"909_conga_high",
		},
	},
	"808": {
		Name: "TR-808",
		Samples: [NumPads]string{
			"808_kick",
			"808_snare",
			"808_hh_closed",
			"808_hh_open",
			"808_tom_low",
			"808_tom_mid",
			"808_tom_high",
			"808_cymbal",
			"808_ride",
			"808_clap",
			"808_rimshot",
			"808_cowbell",
			"808_clave",
			"808_maracas",
			"808_conga_low",
			"808_conga_high",
		},
	},
	"acoustic": {
		Name: "Acoustic",
		Samples: [NumPads]string{
			"ac_kick",
			"ac_snare",
			"ac_hh_closed",
			"ac_hh_open",
			"ac_tom_floor",
			"ac_tom_mid",
			"ac_tom_rack",
			"ac_crash",
			"ac_ride",
			"ac_snare_rim",
			"ac_sidestick",
			"ac_cowbell",
			"ac_sticks",
			"ac_shaker",
			"ac_conga_low",
			"ac_conga_high",
		},
	},
}

// KitNames returns the list of built-in kit names
func KitNames() []string {
	return []string{"909", "808", "acoustic"}
}

// GetKit returns a kit by name, defaulting to the 909 if not found
func GetKit(name string) Kit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}

// DefaultKit is the default kit name
const DefaultKit = "909"
