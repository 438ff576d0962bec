package stats

import "sort"

// minOutlierSample is the smallest sample the IQR filter will trim.
const minOutlierSample = 4

// FilterOutliers drops values outside [q1-1.5*iqr, q3+1.5*iqr].
//
// Quartiles are positional (sorted[n/4], sorted[3n/4]) rather than
// interpolated. Values keep their original order.
func FilterOutliers(prices []float64) []float64 {
	if len(prices) < minOutlierSample {
		return prices
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	n := len(sorted)
	q1 := sorted[n/4]
	q3 := sorted[3*n/4]
	iqr := q3 - q1

	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	filtered := make([]float64, 0, n)
	for _, p := range prices {
		if p >= lower && p <= upper {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
