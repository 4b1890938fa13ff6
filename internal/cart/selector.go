package cart

import (
	"slices"
	"strings"
)

// SelectBest picks the winning candidate: highest score, then most items,
// then the earliest capture. It returns nil when there is nothing usable.
func SelectBest(candidates []CapturedResponse) *CapturedResponse {
	if len(candidates) == 0 {
		return nil
	}

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, compareCandidates)

	best := ranked[0]
	if best.ItemCount == 0 {
		return nil
	}
	return &best
}

func better(a, b CapturedResponse) bool {
	return compareCandidates(a, b) < 0
}

func compareCandidates(a, b CapturedResponse) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	if a.ItemCount != b.ItemCount {
		if a.ItemCount > b.ItemCount {
			return -1
		}
		return 1
	}
	if !a.CapturedAt.Equal(b.CapturedAt) {
		if a.CapturedAt.Before(b.CapturedAt) {
			return -1
		}
		return 1
	}
	if a.seq != b.seq {
		if a.seq < b.seq {
			return -1
		}
		return 1
	}
	return strings.Compare(a.SourceURL, b.SourceURL)
}
