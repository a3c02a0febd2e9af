package match

import (
	"github.com/hmoscout/ingest-cli/internal/model"
	"github.com/hmoscout/ingest-cli/internal/normalize"
)

// heuristicMatcher scores candidates on a points scale: geographic
// proximity when both sides have coordinates, bedroom-count equality,
// house-number equality, and a token-overlap weak signal.
type heuristicMatcher struct {
	cfg Config
}

func (m *heuristicMatcher) Best(target Target, candidates []model.StoredProperty) *Candidate {
	return best(target, candidates, m.cfg.Threshold, m.score)
}

func (m *heuristicMatcher) score(target Target, cand *model.StoredProperty) float64 {
	w := m.cfg.Heuristic
	var pts float64

	if target.Coordinates != nil && cand.Coordinates != nil {
		d := HaversineM(*target.Coordinates, *cand.Coordinates)
		switch {
		case d <= w.NearDistanceM:
			pts += w.NearDistancePts
		case d <= w.FarDistanceM:
			pts += w.FarDistancePts
		}
	}

	if target.Bedrooms > 0 && cand.Bedrooms > 0 && target.Bedrooms == cand.Bedrooms {
		pts += w.BedroomPts
	}

	targetNum := normalize.HouseNumber(target.Address)
	candNum := normalize.HouseNumber(cand.Address)
	numbersEqual := targetNum != "" && targetNum == candNum
	if numbersEqual {
		pts += w.HouseNumberPts
	}

	shared := sharedTokens(target.Address, cand.Address, w.MinTokenLen)
	switch {
	case numbersEqual && shared >= 1:
		pts += w.TokenOverlapPts
	case shared >= w.WeakOverlapTokens:
		// Street names agree on several tokens but the house number does
		// not confirm; half credit keeps this below acceptance on its own.
		pts += w.TokenOverlapPts / 2
	}

	return pts
}

// sharedTokens counts significant tokens common to both street-normalized
// addresses.
func sharedTokens(a, b string, minLen int) int {
	set := make(map[string]bool)
	for _, t := range normalize.SignificantTokens(a, minLen) {
		set[t] = true
	}
	n := 0
	for _, t := range normalize.SignificantTokens(b, minLen) {
		if set[t] {
			n++
			set[t] = false
		}
	}
	return n
}
