// Package ranking orders raw class scores into labeled top-K predictions.
package ranking

import (
	"math"
	"slices"
	"strconv"

	"github.com/Brownie44l1/imagenet-api/internal/model"
)

// DefaultTopK is the number of predictions returned by Rank.
const DefaultTopK = 5

// Lookup resolves a class index to its display name.
type Lookup interface {
	Name(index int) (string, bool)
}

// Label returns the name for index, or "Class <index>" when lookup is nil or
// has no entry.
func Label(lookup Lookup, index int) string {
	if lookup != nil {
		if name, ok := lookup.Name(index); ok {
			return name
		}
	}
	return "Class " + strconv.Itoa(index)
}

// Rank returns the DefaultTopK highest scores, highest first.
func Rank(scores []float32, lookup Lookup) model.PredictionResult {
	return TopK(scores, lookup, DefaultTopK)
}

// TopK returns min(k, len(scores)) entries sorted by score descending.
// Equal scores keep index order and NaN sorts after every number.
// An empty input yields an empty, non-nil result.
func TopK(scores []float32, lookup Lookup, k int) model.PredictionResult {
	if k < 0 {
		k = 0
	}
	ranked := make([]model.ClassScore, len(scores))
	for i, s := range scores {
		ranked[i] = model.ClassScore{Index: i, Probability: s}
	}

	slices.SortStableFunc(ranked, func(a, b model.ClassScore) int {
		return compareDesc(a.Probability, b.Probability)
	})

	n := min(k, len(ranked))
	result := make(model.PredictionResult, n)
	for i := 0; i < n; i++ {
		result[i] = ranked[i]
		result[i].Label = Label(lookup, ranked[i].Index)
	}
	return result
}

func compareDesc(a, b float32) int {
	an, bn := isNaN(a), isNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

func isNaN(f float32) bool {
	return math.IsNaN(float64(f))
}

// FormatPercent renders a probability as a percentage with two decimals,
// e.g. 0.7 -> "70.00%".
func FormatPercent(p float32) string {
	return strconv.FormatFloat(float64(p)*100, 'f', 2, 64) + "%"
}

// Predictions converts a ranked result into its presentation form.
func Predictions(result model.PredictionResult) []model.Prediction {
	out := make([]model.Prediction, len(result))
	for i, s := range result {
		out[i] = model.Prediction{
			Index:       s.Index,
			Label:       s.Label,
			Probability: s.Probability,
			Percent:     FormatPercent(s.Probability),
		}
	}
	return out
}
