// Package filter reduces the raw listings of one product to a short list of
// plausible low-price candidates.
package filter

import (
	"sort"

	"pricescout/pricescout/utils/types"
)

// MaxCandidates bounds every filtered result regardless of Options.Limit.
const MaxCandidates = 6

type Options struct {
	// CapMultiplier drops listings priced at or above avg*CapMultiplier.
	CapMultiplier float64
	// Percentage keeps listings priced at least avg*(100-Percentage)/100.
	Percentage float64
	Limit      int
}

func DefaultOptions() Options {
	return Options{CapMultiplier: 2.4, Percentage: 50, Limit: MaxCandidates}
}

func (o Options) limit() int {
	if o.Limit <= 0 || o.Limit > MaxCandidates {
		return MaxCandidates
	}
	return o.Limit
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func prices(listings []types.Listing) []float64 {
	out := make([]float64, len(listings))
	for i, l := range listings {
		out[i] = l.Price
	}
	return out
}

// Apply runs the cap pass, then the floor threshold pass, sorts ascending by
// price and truncates. The input slice is left untouched.
func Apply(listings []types.Listing, opts Options) []types.Listing {
	available := make([]types.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Available() {
			available = append(available, l)
		}
	}

	capped := CapPass(available, opts.CapMultiplier)
	kept := ThresholdPass(capped, opts.Percentage)

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Price < kept[j].Price
	})
	if n := opts.limit(); len(kept) > n {
		kept = kept[:n]
	}
	return kept
}

// CapPass removes high outliers: anything priced >= mean*multiplier.
func CapPass(listings []types.Listing, multiplier float64) []types.Listing {
	ceiling := Mean(prices(listings)) * multiplier
	out := make([]types.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Price < ceiling {
			out = append(out, l)
		}
	}
	return out
}

// ThresholdPass keeps listings priced at least (100-percentage)% of the mean.
// It is a floor only; there is no upper bound here.
func ThresholdPass(listings []types.Listing, percentage float64) []types.Listing {
	floor := Mean(prices(listings)) * (100 - percentage) / 100
	out := make([]types.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Price >= floor {
			out = append(out, l)
		}
	}
	return out
}
