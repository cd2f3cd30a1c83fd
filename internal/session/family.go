package session

import "strings"

// Family describes a vendor device family: the commands to issue and the
// templates that structure their output.
type Family struct {
	Name             string
	IdentifyCommand  string
	NeighborCommand  string
	IdentifyTemplate string
	NeighborTemplate string
}

var families = map[string]Family{
	"cisco_ios": {
		Name:             "cisco_ios",
		IdentifyCommand:  "show version",
		NeighborCommand:  "show cdp neighbors detail",
		IdentifyTemplate: "cisco_ios_show_version",
		NeighborTemplate: "cisco_ios_show_cdp_neighbors_detail",
	},
	"cisco_nxos": {
		Name:             "cisco_nxos",
		IdentifyCommand:  "show version",
		NeighborCommand:  "show cdp neighbors detail",
		IdentifyTemplate: "cisco_nxos_show_version",
		NeighborTemplate: "cisco_nxos_show_cdp_neighbors_detail",
	},
}

// FamilyFor looks up a device family by name.
func FamilyFor(name string) (Family, bool) {
	f, ok := families[name]
	return f, ok
}

// GuessFamily maps a CDP-reported platform string to a device family,
// falling back to def when the platform gives no hint.
func GuessFamily(platform, def string) string {
	p := strings.ToUpper(platform)
	for _, marker := range []string{"NEXUS", "N9K", "N7K", "N5K", "N3K", "N2K"} {
		if strings.Contains(p, marker) {
			return "cisco_nxos"
		}
	}
	return def
}
