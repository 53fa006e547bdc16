package workflow

import "math"

const (
	onloadPoints  = 10
	offloadPoints = 5
	errorPenalty  = 50
	pointsPerLvl  = 500
)

// StepPoints is the score of one applied step at the given level
func StepPoints(mode Mode, level int) float64 {
	base := offloadPoints
	if mode == ModeOnload {
		base = onloadPoints
	}
	return float64(base) * float64(max(level, 1)) / 2
}

// FinalScore subtracts the error penalty and never goes below zero
func FinalScore(score float64, errors int) float64 {
	return math.Max(0, score-float64(errors*errorPenalty))
}

// LevelFor maps a final score to a level starting at 1
func LevelFor(finalScore float64) int {
	if finalScore <= 0 {
		return 1
	}
	return int(math.Floor(finalScore/pointsPerLvl)) + 1
}
