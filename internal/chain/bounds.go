package chain

import "math"

// RangeConfig bounds the strike window requested around spot.
type RangeConfig struct {
	SafetyCap   float64 `yaml:"safety_cap"`   // maximum half-width in points
	MovePadding float64 `yaml:"move_padding"` // points added to the expected move
}

// DefaultRange is a 200 point cap with 25 points of expected-move padding.
func DefaultRange() RangeConfig {
	return RangeConfig{SafetyCap: 200, MovePadding: 25}
}

// Bounds is an inclusive strike interval.
type Bounds struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Contains reports whether strike lies within [Lo, Hi].
func (b Bounds) Contains(strike float64) bool {
	return strike >= b.Lo && strike <= b.Hi
}

// StrikeBounds derives the strike window around spot. The half-width is the
// safety cap, narrowed to expectedMove+padding when an expected move is given.
func StrikeBounds(spot float64, expectedMove *float64, cfg RangeConfig) Bounds {
	half := cfg.SafetyCap
	if expectedMove != nil {
		half = math.Min(half, *expectedMove+cfg.MovePadding)
	}
	return Bounds{Lo: spot - half, Hi: spot + half}
}
