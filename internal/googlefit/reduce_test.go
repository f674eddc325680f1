package googlefit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// Fixture builders mirroring the provider's bucket/dataset/point shape.

type fixturePoint map[string]interface{}

func intPoint(v int64) fixturePoint {
	return fixturePoint{"value": []map[string]interface{}{{"intVal": v}}}
}

func fpPoint(v float64) fixturePoint {
	return fixturePoint{"value": []map[string]interface{}{{"fpVal": v}}}
}

func dataset(sourceID string, points ...fixturePoint) map[string]interface{} {
	return map[string]interface{}{"dataSourceId": sourceID, "point": points}
}

func bucket(datasets ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"dataset": datasets}
}

func payload(t *testing.T, buckets ...map[string]interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{"bucket": buckets})
	require.NoError(t, err)
	return b
}

const (
	stepsSource  = "derived:com.google.step_count.delta:com.google.android.gms:aggregated"
	activeSource = "derived:com.google.calories.expended:com.google.android.gms:aggregated"
	bmrSource    = "derived:com.google.calories.bmr:com.google.android.gms:aggregated"
)

func TestReduce_SumsByClassification(t *testing.T) {
	raw := payload(t, bucket(
		dataset(stepsSource, intPoint(3000), intPoint(2000)),
		dataset(activeSource, fpPoint(150.5), fpPoint(49.5)),
		dataset(bmrSource, fpPoint(1600)),
	))

	got := Reduce(raw)
	require.Equal(t, int64(5000), got.Steps)
	require.InDelta(t, 200.0, got.CaloriesActive, 1e-9)
	require.InDelta(t, 1600.0, got.CaloriesBmr, 1e-9)
}

func TestReduce_OrderIndependent(t *testing.T) {
	a := payload(t,
		bucket(
			dataset(stepsSource, intPoint(100), intPoint(250)),
			dataset(activeSource, fpPoint(12.5)),
		),
		bucket(
			dataset(bmrSource, fpPoint(800), fpPoint(800)),
			dataset(activeSource, fpPoint(7.5), fpPoint(30)),
		),
	)
	b := payload(t,
		bucket(
			dataset(activeSource, fpPoint(30), fpPoint(7.5)),
			dataset(bmrSource, fpPoint(800), fpPoint(800)),
		),
		bucket(
			dataset(activeSource, fpPoint(12.5)),
			dataset(stepsSource, intPoint(250), intPoint(100)),
		),
	)

	require.Equal(t, Reduce(a), Reduce(b))
	require.Equal(t, Totals{Steps: 350, CaloriesActive: 50, CaloriesBmr: 1600}, Reduce(a))
}

func TestReduce_FirstMatchingRuleWins(t *testing.T) {
	// Contrived id naming both step_count and calories.expended.
	raw := payload(t, bucket(
		dataset("derived:step_count+calories.expended", fixturePoint{
			"value": []map[string]interface{}{{"intVal": 42, "fpVal": 99.9}},
		}),
	))

	got := Reduce(raw)
	require.Equal(t, int64(42), got.Steps)
	require.Zero(t, got.CaloriesActive)
}

func TestReduce_MissingValueSlot(t *testing.T) {
	raw := payload(t, bucket(
		dataset(stepsSource, fixturePoint{"value": []interface{}{}}, fixturePoint{}, intPoint(10)),
		dataset(activeSource, fixturePoint{"startTimeNanos": "1"}),
	))

	got := Reduce(raw)
	require.Equal(t, Totals{Steps: 10}, got)
}

func TestReduce_UnknownSourceIgnored(t *testing.T) {
	raw := payload(t, bucket(
		dataset("derived:com.google.heart_minutes:merged", fpPoint(45)),
		dataset("", intPoint(7)),
	))
	require.Equal(t, Totals{}, Reduce(raw))
}

func TestReduce_MalformedShapes(t *testing.T) {
	cases := map[string]string{
		"empty":           ``,
		"not json":        `oops`,
		"no bucket":       `{}`,
		"null bucket":     `{"bucket": null}`,
		"bucket no data":  `{"bucket": [{}]}`,
		"dataset no pts":  `{"bucket": [{"dataset": [{"dataSourceId": "x:step_count"}]}]}`,
		"null value slot": `{"bucket": [{"dataset": [{"dataSourceId": "x:step_count", "point": [{"value": [null]}]}]}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.Equal(t, Totals{}, Reduce([]byte(raw)))
			})
		})
	}
}
