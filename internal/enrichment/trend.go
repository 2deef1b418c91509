package enrichment

import "math"

// TrendScore is the share of a tool's mentions that happened recently, as a
// percentage. Tools with no recorded history score ten points per recent mention.
func TrendScore(recent, total int) int {
	if recent < 0 {
		recent = 0
	}

	var score int
	switch {
	case total > 0:
		score = int(math.Round(float64(recent) / float64(total) * 100))
	case recent > 0:
		score = recent * 10
	}

	return clampScore(score)
}
