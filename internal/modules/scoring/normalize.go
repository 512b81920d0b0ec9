package scoring

// Normalize clamps value to [minVal, maxVal] and interpolates linearly into
// [minScore, maxScore]. Values at or below minVal map to minScore exactly,
// at or above maxVal to maxScore exactly.
func Normalize(value, minVal, maxVal, minScore, maxScore float64) float64 {
	if value <= minVal {
		return minScore
	}
	if value >= maxVal {
		return maxScore
	}
	ratio := (value - minVal) / (maxVal - minVal)
	return minScore + ratio*(maxScore-minScore)
}
