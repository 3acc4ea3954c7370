// Package selection implements the variant selection policy (§4.12): pick
// one bandwidth tier, then the highest-bandwidth variant within that tier
// whose audio language matches a configured preference.
package selection

import (
	"sort"

	"github.com/jmylchreest/streamrelay/internal/combiner"
	"github.com/jmylchreest/streamrelay/internal/relayerr"
	"github.com/jmylchreest/streamrelay/pkg/format"
)

// Tier names the bandwidth tier to select from.
type Tier string

const (
	TierLow  Tier = "low"
	TierMid  Tier = "mid"
	TierHigh Tier = "high"
)

// Select sorts variants by ascending bandwidth, splits them into three
// equal tiers, and returns the highest-bandwidth variant within the named
// tier whose audio language matches one of languages (preference order).
// Fails with NO_LANGUAGE_MATCH when no variant in the tier matches.
func Select(variants []*combiner.Variant, tier Tier, languages []string) (*combiner.Variant, error) {
	if len(variants) == 0 {
		return nil, relayerr.New(relayerr.CategoryPlayer, relayerr.CodeNoLanguageMatch, "no variants available for selection")
	}

	sorted := append([]*combiner.Variant(nil), variants...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Bandwidth < sorted[j].Bandwidth })

	lo, hi := tierBounds(len(sorted), tier)
	tierVariants := sorted[lo : hi+1]

	for _, lang := range languages {
		for i := len(tierVariants) - 1; i >= 0; i-- {
			v := tierVariants[i]
			if v.Audio != nil && format.LanguagesMatch(v.Audio.Language, lang) {
				return v, nil
			}
		}
	}

	return nil, relayerr.New(relayerr.CategoryPlayer, relayerr.CodeNoLanguageMatch, "no variant in the selected tier matches any configured language")
}

// tierBounds computes the inclusive [lo, hi] index range for tier within a
// sorted list of n variants: low=[0,n/3], mid=[n/3+1,2n/3], high=[2n/3+1,n-1]
// (§4.12, §8 boundary behavior).
func tierBounds(n int, tier Tier) (lo, hi int) {
	third := n / 3
	twoThirds := (2 * n) / 3
	switch tier {
	case TierLow:
		return 0, third
	case TierMid:
		return third + 1, twoThirds
	case TierHigh:
		return twoThirds + 1, n - 1
	default:
		return 0, n - 1
	}
}
