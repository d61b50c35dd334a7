package anomaly

import (
	"math"

	"vigil/internal/stats"
)

// verdict is the outcome of one check. Bound is the threshold that was
// crossed, or the upper bound when nothing fired.
type verdict struct {
	Anomalous bool
	Bound     float64
}

type checkFunc func(value float64, baseline stats.Statistics, s Settings) verdict

// checks is the open algorithm set. Methods without concrete behavior
// never report an anomaly.
var checks = map[Algorithm]checkFunc{
	AlgorithmStatisticalThreshold:  checkThreshold,
	AlgorithmZScore:                checkZScore,
	AlgorithmIQR:                   checkIQR,
	AlgorithmMovingAverage:         checkNever,
	AlgorithmSeasonalDecomposition: checkNever,
	AlgorithmIsolationForest:       checkNever,
	AlgorithmLocalOutlierFactor:    checkNever,
}

func checkThreshold(value float64, _ stats.Statistics, s Settings) verdict {
	return verdict{Anomalous: value > s.Threshold, Bound: s.Threshold}
}

// checkZScore flags values more than Sensitivity standard deviations from
// the mean. A flat baseline flags any value that differs from it.
func checkZScore(value float64, baseline stats.Statistics, s Settings) verdict {
	bound := baseline.Mean + s.Sensitivity*baseline.StdDev
	if baseline.StdDev == 0 {
		return verdict{Anomalous: value != baseline.Mean, Bound: bound}
	}
	z := math.Abs(value-baseline.Mean) / baseline.StdDev
	return verdict{Anomalous: z > s.Sensitivity, Bound: bound}
}

func checkIQR(value float64, baseline stats.Statistics, _ Settings) verdict {
	q1 := baseline.Percentile(25)
	q3 := baseline.Percentile(75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	switch {
	case value < lower:
		return verdict{Anomalous: true, Bound: lower}
	case value > upper:
		return verdict{Anomalous: true, Bound: upper}
	default:
		return verdict{Bound: upper}
	}
}

func checkNever(float64, stats.Statistics, Settings) verdict {
	return verdict{}
}
