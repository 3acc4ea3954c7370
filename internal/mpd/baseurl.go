package mpd

import "github.com/jmylchreest/streamrelay/internal/urlutil"

// resolveBaseURLs resolves a level's BaseURL elements against the parent
// frame's resolved BaseURLs, returning the new BaseURL list and the summed
// availabilityTimeOffset contributed at this level (§3, "InheritanceFrame";
// §4.4 step 3).
func resolveBaseURLs(parentBaseURLs []string, elements []baseURLXML) ([]string, float64, error) {
	if len(elements) == 0 {
		return parentBaseURLs, 0, nil
	}

	var resolved []string
	var ato float64
	bases := parentBaseURLs
	if len(bases) == 0 {
		bases = []string{""}
	}
	for _, parent := range bases {
		for _, el := range elements {
			u, err := urlutil.Resolve(parent, el.Value)
			if err != nil {
				return nil, 0, err
			}
			resolved = append(resolved, u)
			ato += parseFloatOrZero(el.AvailabilityTimeOffset)
		}
	}
	return resolved, ato, nil
}

func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := parseFloat(s)
	if err != nil {
		return 0
	}
	return v
}
