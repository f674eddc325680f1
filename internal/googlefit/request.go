package googlefit

import "time"

const (
	DataTypeStepCount        = "com.google.step_count.delta"
	DataTypeCaloriesExpended = "com.google.calories.expended"

	// BasalSourceID is the merged basal-rate stream. Accounts without BMR data
	// make the provider reject any request naming it.
	BasalSourceID = "derived:com.google.calories.bmr:com.google.android.gms:merged"

	// basalMarker identifies the basal source inside provider error payloads.
	basalMarker = "com.google.calories.bmr"
)

// Window is the [Start, End) range of one aggregation, Start <= End.
type Window struct {
	Start time.Time
	End   time.Time
}

// TodayWindow spans local midnight (in loc) up to now.
func TodayWindow(now time.Time, loc *time.Location) Window {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: local}
}

// Day is the local calendar date the window starts on, as YYYY-MM-DD.
func (w Window) Day() string {
	return w.Start.Format("2006-01-02")
}

// Elapsed is the window width, never negative.
func (w Window) Elapsed() time.Duration {
	if w.End.Before(w.Start) {
		return 0
	}
	return w.End.Sub(w.Start)
}

type AggregateBy struct {
	DataTypeName string `json:"dataTypeName,omitempty"`
	DataSourceID string `json:"dataSourceId,omitempty"`
}

type BucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

// AggregateRequest is the dataset:aggregate request body.
type AggregateRequest struct {
	AggregateBy     []AggregateBy `json:"aggregateBy"`
	BucketByTime    BucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

// IncludesBasal reports whether the request names the basal source.
func (r AggregateRequest) IncludesBasal() bool {
	for _, a := range r.AggregateBy {
		if a.DataSourceID == BasalSourceID {
			return true
		}
	}
	return false
}

// BuildAggregateRequest asks for steps and active calories over w in a single
// bucket as wide as the window, plus the basal source when includeBasal is set.
func BuildAggregateRequest(w Window, includeBasal bool) AggregateRequest {
	aggregateBy := []AggregateBy{
		{DataTypeName: DataTypeStepCount},
		{DataTypeName: DataTypeCaloriesExpended},
	}
	if includeBasal {
		aggregateBy = append(aggregateBy, AggregateBy{DataSourceID: BasalSourceID})
	}

	// The provider rejects zero-width buckets, which a request landing exactly
	// on midnight would otherwise produce.
	width := max(w.Elapsed().Milliseconds(), 1)

	return AggregateRequest{
		AggregateBy:     aggregateBy,
		BucketByTime:    BucketByTime{DurationMillis: width},
		StartTimeMillis: w.Start.UnixMilli(),
		EndTimeMillis:   w.End.UnixMilli(),
	}
}
