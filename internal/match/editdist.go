package match

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/hmoscout/ingest-cli/internal/model"
	"github.com/hmoscout/ingest-cli/internal/normalize"
)

// editDistMatcher scores candidates by normalized Levenshtein similarity
// of the unit-stripped addresses, with an exact-containment short circuit
// and a bedroom-equality multiplier. Scores are capped at 1.0.
type editDistMatcher struct {
	cfg Config
}

func (m *editDistMatcher) Best(target Target, candidates []model.StoredProperty) *Candidate {
	return best(target, candidates, m.cfg.Threshold, m.score)
}

func (m *editDistMatcher) score(target Target, cand *model.StoredProperty) float64 {
	w := m.cfg.EditDist

	a := normalize.Address(target.Address)
	b := normalize.Address(cand.Address)
	if a == "" || b == "" {
		return 0
	}

	var sim float64
	if a == b {
		sim = 1.0
	} else if strings.Contains(a, b) || strings.Contains(b, a) {
		sim = w.ContainmentScore
	} else {
		sim = levenshtein.Similarity(a, b, nil)
	}

	if target.Bedrooms > 0 && cand.Bedrooms > 0 && target.Bedrooms == cand.Bedrooms {
		sim *= w.BedroomMultiplier
	}
	if sim > 1.0 {
		sim = 1.0
	}
	return sim
}
