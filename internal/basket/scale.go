package basket

import "math"

// Scale linearly scales an ingredient amount by a serving ratio, rounding
// half away from zero to two decimal places. A nil amount stays nil: no
// quantity is ever invented for "to taste" ingredients. The caller is
// responsible for ratio > 0 (servings are validated to be >= 1).
func Scale(amount *float64, ratio float64) *float64 {
	if amount == nil {
		return nil
	}
	scaled := math.Round(*amount*ratio*100) / 100
	return &scaled
}

// Ratio computes the serving ratio current/original.
func Ratio(current, original int) float64 {
	return float64(current) / float64(original)
}
