package domain

import "math"

// Score is a relevance judgment normalized to the closed interval [0,1].
type Score float64

// FallbackScore is emitted when a document could not be scored. It reads as
// "no evidence of relevance".
const FallbackScore Score = 0

// Clamp maps an arbitrary value into [0,1]. NaN maps to the fallback score.
func Clamp(v float64) Score {
	switch {
	case math.IsNaN(v):
		return FallbackScore
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return Score(v)
	}
}

// Float64 returns the score as a plain float.
func (s Score) Float64() float64 { return float64(s) }
