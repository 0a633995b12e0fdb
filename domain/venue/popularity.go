package venue

import "math"

// Popularity scoring constants.
const (
	maxRating              = 5.0
	ratingsFullConfidence  = 500.0
	globalMeanRating       = 4.0
	qualityWeight          = 0.7
	quantityWeight         = 0.3
)

// Popularity computes a Bayesian-adjusted popularity score in [0,100] from
// a provider rating in [0,5] and its rating count. The rating is normalized
// to [0,1] and shrunk towards the global mean (4.0/5.0) in proportion to a
// confidence factor log(1+N)/log(1+500) capped at 1; the same factor feeds
// a quantity boost. Quality and quantity combine 70/30.
func Popularity(rating float64, userRatingsTotal int) float64 {
	normalized := rating / maxRating

	confidence := math.Min(1.0,
		math.Log(1+float64(userRatingsTotal))/math.Log(1+ratingsFullConfidence))

	globalMean := globalMeanRating / maxRating
	bayesian := normalized*confidence + globalMean*(1-confidence)

	quantity := confidence

	return (bayesian*qualityWeight + quantity*quantityWeight) * 100
}
