package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAnomaliesEmptySeries(t *testing.T) {
	_, err := DetectAnomalies(nil, 0)
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestDetectAnomaliesTooFewPoints(t *testing.T) {
	_, err := DetectAnomalies([]float64{1, 2, 3}, 0)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestDetectAnomaliesFlagsOutlier(t *testing.T) {
	series := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 100}

	report, err := DetectAnomalies(series, 0)
	require.NoError(t, err)

	assert.Equal(t, len(series), report.Points)
	assert.Equal(t, DefaultZScoreThreshold, report.Threshold)
	require.Len(t, report.Anomalies, 1)

	anomaly := report.Anomalies[0]
	assert.Equal(t, 11, anomaly.Index)
	assert.Equal(t, 100.0, anomaly.Value)
	assert.Greater(t, anomaly.Deviation, DefaultZScoreThreshold)
}

func TestDetectAnomaliesFlatSeries(t *testing.T) {
	series := make([]float64, 20)
	for i := range series {
		series[i] = 5
	}

	report, err := DetectAnomalies(series, 0)
	require.NoError(t, err)
	assert.Empty(t, report.Anomalies)
	assert.Zero(t, report.StdDev)
}

func TestDetectAnomaliesCustomThreshold(t *testing.T) {
	series := []float64{1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 8}

	strict, err := DetectAnomalies(series, 1.5)
	require.NoError(t, err)
	loose, err := DetectAnomalies(series, 10)
	require.NoError(t, err)

	assert.NotEmpty(t, strict.Anomalies)
	assert.Empty(t, loose.Anomalies)
}

func TestCorrelate(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	perfect, err := Correlate(x, []float64{2, 4, 6, 8, 10})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, perfect, 1e-9)

	inverse, err := Correlate(x, []float64{10, 8, 6, 4, 2})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, inverse, 1e-9)
}

func TestCorrelateErrors(t *testing.T) {
	_, err := Correlate(nil, nil)
	assert.ErrorIs(t, err, ErrEmptySeries)

	_, err = Correlate([]float64{1, 2, 3}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Correlate([]float64{1, 2}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestPredictErrors(t *testing.T) {
	_, err := Predict(nil, 5)
	assert.ErrorIs(t, err, ErrEmptySeries)

	_, err = Predict([]float64{1, 2, 3}, 5)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestPredictLinearTrend(t *testing.T) {
	// A perfectly linear series forecasts along the same line.
	series := make([]float64, 20)
	for i := range series {
		series[i] = 2 * float64(i)
	}

	forecast, err := Predict(series, 3)
	require.NoError(t, err)

	assert.Equal(t, 20, forecast.Points)
	assert.InDelta(t, 2.0, forecast.Slope, 1e-9)
	require.Len(t, forecast.Forecast, 3)

	first := forecast.Forecast[0]
	assert.Equal(t, 1, first.Step)
	assert.InDelta(t, 40.0, first.Value, 1e-9)
	assert.LessOrEqual(t, first.LowerBound, first.Value)
	assert.GreaterOrEqual(t, first.UpperBound, first.Value)
}

func TestPredictConfidenceDecays(t *testing.T) {
	series := make([]float64, 30)
	for i := range series {
		series[i] = float64(i % 7)
	}

	forecast, err := Predict(series, 10)
	require.NoError(t, err)
	require.Len(t, forecast.Forecast, 10)

	points := forecast.Forecast
	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i].Confidence, points[i-1].Confidence)
	}
	assert.GreaterOrEqual(t, points[len(points)-1].Confidence, 0.5)
}

func TestPredictDefaultSteps(t *testing.T) {
	series := make([]float64, 12)
	for i := range series {
		series[i] = float64(i)
	}

	forecast, err := Predict(series, 0)
	require.NoError(t, err)
	assert.Len(t, forecast.Forecast, DefaultForecastSteps)
}

func TestSummarize(t *testing.T) {
	series := []float64{4, 1, 3, 2, 5}

	summary, err := Summarize(series)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Count)
	assert.InDelta(t, 3.0, summary.Mean, 1e-9)
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 5.0, summary.Max)
	assert.InDelta(t, 3.0, summary.P50, 1e-9)
	assert.False(t, math.IsNaN(summary.StdDev))
}

func TestSummarizeSinglePoint(t *testing.T) {
	summary, err := Summarize([]float64{7})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Count)
	assert.Zero(t, summary.StdDev)
	assert.Equal(t, 7.0, summary.Min)
	assert.Equal(t, 7.0, summary.Max)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrEmptySeries)
}
