// Package nps holds the Net Promoter Score arithmetic shared by the response
// recorder and the daily rollup.
package nps

import (
	"math"
	"strconv"
)

type Category string

const (
	CategoryPromoter  Category = "promoter"
	CategoryPassive   Category = "passive"
	CategoryDetractor Category = "detractor"
)

const (
	MinScore = 0
	MaxScore = 10
)

// Categorize buckets a 0-10 score. Range checks happen at the boundary.
func Categorize(score int) Category {
	switch {
	case score >= 9:
		return CategoryPromoter
	case score >= 7:
		return CategoryPassive
	default:
		return CategoryDetractor
	}
}

func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// Score returns round(100 * (promoters - detractors) / total), rounding halves
// toward positive infinity. Zero responses score 0.
func Score(promoters, detractors, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return roundHalfUp(100 * float64(promoters-detractors) / float64(total))
}

// ResponseRate returns responses/sent as a percentage with two decimals, or
// false when nothing was sent.
func ResponseRate(responses, sent int64) (float64, bool) {
	if sent <= 0 {
		return 0, false
	}
	return roundHalfUp(float64(responses)/float64(sent)*100*100) / 100, true
}

// FormatDecimal renders v the way the rollup stores numerics: two fixed places.
func FormatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
