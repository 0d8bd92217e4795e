package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"bikeshare-trips/internal/bike"
)

// Summary describes the trip duration distribution in seconds.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Median float64
	P95    float64
}

func Summarize(trips []bike.Trip) Summary {
	if len(trips) == 0 {
		return Summary{}
	}
	x := make([]float64, len(trips))
	for i, t := range trips {
		x[i] = t.Duration.Seconds()
	}
	sort.Float64s(x)

	s := Summary{Count: len(x)}
	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0 // single sample
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, x, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, x, nil)
	return s
}
