// Package match links an incoming property record to an existing stored
// record. Two scoring strategies are available behind one interface; the
// acceptance threshold and weights are configuration, not code.
package match

import (
	"github.com/rotisserie/eris"

	"github.com/hmoscout/ingest-cli/internal/model"
)

// Target is the record being matched against existing candidates.
type Target struct {
	Address     string
	Postcode    string
	Coordinates *model.Coordinate
	Bedrooms    int
}

// Candidate is a scored match; not persisted.
type Candidate struct {
	Property model.StoredProperty
	Score    float64
}

// Matcher selects the best-scoring candidate for a target, or nil when no
// candidate reaches the acceptance threshold. A nil result means "treat
// the record as new", never an error.
type Matcher interface {
	Best(target Target, candidates []model.StoredProperty) *Candidate
}

// Strategy names accepted by Config.
const (
	StrategyHeuristic = "heuristic"
	StrategyEditDist  = "editdist"
)

// Config selects and tunes the scoring strategy.
type Config struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`

	// Threshold is in points for the heuristic strategy (default 50) and
	// a similarity ratio for editdist (default 0.6).
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`

	Heuristic HeuristicWeights `yaml:"heuristic" mapstructure:"heuristic"`
	EditDist  EditDistWeights  `yaml:"editdist" mapstructure:"editdist"`
}

// HeuristicWeights tunes the points-based scorer.
type HeuristicWeights struct {
	NearDistanceM     float64 `yaml:"near_distance_m" mapstructure:"near_distance_m"`
	FarDistanceM      float64 `yaml:"far_distance_m" mapstructure:"far_distance_m"`
	NearDistancePts   float64 `yaml:"near_distance_pts" mapstructure:"near_distance_pts"`
	FarDistancePts    float64 `yaml:"far_distance_pts" mapstructure:"far_distance_pts"`
	BedroomPts        float64 `yaml:"bedroom_pts" mapstructure:"bedroom_pts"`
	HouseNumberPts    float64 `yaml:"house_number_pts" mapstructure:"house_number_pts"`
	TokenOverlapPts   float64 `yaml:"token_overlap_pts" mapstructure:"token_overlap_pts"`
	MinTokenLen       int     `yaml:"min_token_len" mapstructure:"min_token_len"`
	WeakOverlapTokens int     `yaml:"weak_overlap_tokens" mapstructure:"weak_overlap_tokens"`
}

// EditDistWeights tunes the edit-distance scorer.
type EditDistWeights struct {
	ContainmentScore  float64 `yaml:"containment_score" mapstructure:"containment_score"`
	BedroomMultiplier float64 `yaml:"bedroom_multiplier" mapstructure:"bedroom_multiplier"`
}

// DefaultConfig returns the heuristic strategy with its standard weights.
// The heuristic scorer is the default because short UK addresses produce
// too many edit-distance false positives across neighbouring house
// numbers ("12 Elm Road" vs "14 Elm Road" is one edit apart).
func DefaultConfig() Config {
	return Config{
		Strategy:  StrategyHeuristic,
		Threshold: 50,
		Heuristic: HeuristicWeights{
			NearDistanceM:     15,
			FarDistanceM:      30,
			NearDistancePts:   60,
			FarDistancePts:    40,
			BedroomPts:        25,
			HouseNumberPts:    30,
			TokenOverlapPts:   20,
			MinTokenLen:       2,
			WeakOverlapTokens: 2,
		},
		EditDist: EditDistWeights{
			ContainmentScore:  0.95,
			BedroomMultiplier: 1.2,
		},
	}
}

// New builds a Matcher from config, filling zero-valued tuning fields
// with defaults.
func New(cfg Config) (Matcher, error) {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.Heuristic == (HeuristicWeights{}) {
		cfg.Heuristic = def.Heuristic
	}
	if cfg.EditDist == (EditDistWeights{}) {
		cfg.EditDist = def.EditDist
	}

	switch cfg.Strategy {
	case StrategyHeuristic:
		if cfg.Threshold == 0 {
			cfg.Threshold = 50
		}
		return &heuristicMatcher{cfg: cfg}, nil
	case StrategyEditDist:
		if cfg.Threshold == 0 {
			cfg.Threshold = 0.6
		}
		return &editDistMatcher{cfg: cfg}, nil
	default:
		return nil, eris.Errorf("match: unknown strategy %q", cfg.Strategy)
	}
}

// best applies a score function over candidates, keeping the earliest of
// tied winners and requiring the threshold.
func best(target Target, candidates []model.StoredProperty, threshold float64, score func(Target, *model.StoredProperty) float64) *Candidate {
	var winner *Candidate
	for i := range candidates {
		s := score(target, &candidates[i])
		if s < threshold {
			continue
		}
		if winner == nil || s > winner.Score {
			winner = &Candidate{Property: candidates[i], Score: s}
		}
	}
	return winner
}
