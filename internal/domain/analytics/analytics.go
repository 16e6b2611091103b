// Package analytics provides statistical analysis over metric series:
// z-score anomaly detection, cross-series correlation, trend forecasting,
// and summary statistics.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrEmptySeries    = errors.New("series must not be empty")
	ErrLengthMismatch = errors.New("series must have equal length")
	ErrTooFewPoints   = errors.New("series has too few points")
)

// DefaultZScoreThreshold is the z-score above which a point is flagged when
// the caller does not supply a threshold.
const DefaultZScoreThreshold = 3.0

// MinAnomalyPoints is the minimum baseline size for anomaly detection.
const MinAnomalyPoints = 10

// Anomaly is a single flagged data point.
type Anomaly struct {
	Index     int     `json:"index"`
	Value     float64 `json:"value"`
	Expected  float64 `json:"expected"`
	Deviation float64 `json:"deviation"`
	Severity  string  `json:"severity"`
}

// AnomalyReport is the result of scanning one series.
type AnomalyReport struct {
	Points    int       `json:"points"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Threshold float64   `json:"threshold"`
	Anomalies []Anomaly `json:"anomalies"`
}

// DetectAnomalies flags points whose z-score against the series baseline
// exceeds threshold. A threshold <= 0 selects DefaultZScoreThreshold. The
// series must carry at least MinAnomalyPoints points to form a baseline.
func DetectAnomalies(series []float64, threshold float64) (*AnomalyReport, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	if len(series) < MinAnomalyPoints {
		return nil, fmt.Errorf("%w: need at least %d, got %d", ErrTooFewPoints, MinAnomalyPoints, len(series))
	}
	if threshold <= 0 {
		threshold = DefaultZScoreThreshold
	}

	mean, stdDev := stat.MeanStdDev(series, nil)
	report := &AnomalyReport{
		Points:    len(series),
		Mean:      mean,
		StdDev:    stdDev,
		Threshold: threshold,
		Anomalies: []Anomaly{},
	}

	// A flat series has no deviation to measure.
	if stdDev == 0 {
		return report, nil
	}

	for i, v := range series {
		z := math.Abs(v-mean) / stdDev
		if z > threshold {
			report.Anomalies = append(report.Anomalies, Anomaly{
				Index:     i,
				Value:     v,
				Expected:  mean,
				Deviation: z,
				Severity:  severity(z),
			})
		}
	}
	return report, nil
}

func severity(z float64) string {
	switch {
	case z >= 5:
		return "critical"
	case z >= 4:
		return "high"
	default:
		return "medium"
	}
}

// Correlate computes the Pearson correlation coefficient between two series
// of equal length.
func Correlate(x, y []float64) (float64, error) {
	if len(x) == 0 || len(y) == 0 {
		return 0, ErrEmptySeries
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < 3 {
		return 0, fmt.Errorf("%w: need at least 3, got %d", ErrTooFewPoints, len(x))
	}
	return stat.Correlation(x, y, nil), nil
}

// DefaultForecastSteps is the horizon used when the caller does not supply
// one.
const DefaultForecastSteps = 5

// MinForecastPoints is the minimum history size for forecasting.
const MinForecastPoints = 10

// ForecastPoint is one predicted future value with its confidence band.
type ForecastPoint struct {
	Step       int     `json:"step"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// Forecast is the result of projecting one series forward.
type Forecast struct {
	Points    int             `json:"points"`
	Slope     float64         `json:"slope"`
	Intercept float64         `json:"intercept"`
	Forecast  []ForecastPoint `json:"forecast"`
}

// Predict projects a series steps points ahead by combining a linear trend
// with a repeating seasonal component extracted from the history. Confidence
// decays with the horizon, from 0.95 down to a floor of 0.5, and widens the
// bounds accordingly. A steps value <= 0 selects DefaultForecastSteps. The
// series must carry at least MinForecastPoints points.
func Predict(series []float64, steps int) (*Forecast, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	if len(series) < MinForecastPoints {
		return nil, fmt.Errorf("%w: need at least %d, got %d", ErrTooFewPoints, MinForecastPoints, len(series))
	}
	if steps <= 0 {
		steps = DefaultForecastSteps
	}

	xs := make([]float64, len(series))
	for i := range xs {
		xs[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(xs, series, nil, false)

	// Seasonality is read from the detrended residuals so a strong trend
	// cannot alias into the phase means.
	residuals := make([]float64, len(series))
	for i, v := range series {
		residuals[i] = v - (slope*xs[i] + intercept)
	}
	seasonal := seasonality(residuals)

	n := len(series)
	forecast := &Forecast{
		Points:    n,
		Slope:     slope,
		Intercept: intercept,
		Forecast:  make([]ForecastPoint, 0, steps),
	}

	for i := 1; i <= steps; i++ {
		idx := n + i - 1
		value := slope*float64(idx) + intercept + seasonal[idx%len(seasonal)]
		confidence := forecastConfidence(i, steps)
		spread := 0.1 * (1 - confidence)

		forecast.Forecast = append(forecast.Forecast, ForecastPoint{
			Step:       i,
			Value:      value,
			Confidence: confidence,
			LowerBound: value * (1 - spread),
			UpperBound: value * (1 + spread),
		})
	}
	return forecast, nil
}

// seasonality extracts a mean-centered repeating component: per-phase means
// over a period of at most 24 points.
func seasonality(series []float64) []float64 {
	period := len(series) / 2
	if period > 24 {
		period = 24
	}

	seasonal := make([]float64, period)
	for phase := 0; phase < period; phase++ {
		sum, count := 0.0, 0
		for i := phase; i < len(series); i += period {
			sum += series[i]
			count++
		}
		seasonal[phase] = sum / float64(count)
	}

	mean := stat.Mean(seasonal, nil)
	for i := range seasonal {
		seasonal[i] -= mean
	}
	return seasonal
}

// forecastConfidence decays linearly over the horizon from 0.95 to a 0.5
// floor.
func forecastConfidence(step, total int) float64 {
	c := 0.95 - 0.05*float64(step)/float64(total)
	if c < 0.5 {
		c = 0.5
	}
	return c
}

// Summary holds descriptive statistics for one series.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// Summarize computes descriptive statistics over a series.
func Summarize(series []float64) (*Summary, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)

	summary := &Summary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		summary.StdDev = stat.StdDev(sorted, nil)
	}
	return summary, nil
}
