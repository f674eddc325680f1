package googlefit

import (
	"math"
	"time"
)

const dayMillis = 86_400_000

// Metrics is today's normalized reading. CaloriesBmr is already prorated and
// Calories = CaloriesActive + CaloriesBmr before rounding.
type Metrics struct {
	Steps          int `json:"steps"`
	Calories       int `json:"calories"`
	CaloriesActive int `json:"calories_active"`
	CaloriesBmr    int `json:"calories_bmr"`
}

// DayFraction is elapsed over one full day, clamped to [0, 1].
func DayFraction(elapsed time.Duration) float64 {
	f := float64(elapsed.Milliseconds()) / dayMillis
	return math.Min(math.Max(f, 0), 1)
}

// Normalize prorates the basal total by the elapsed share of the day (the
// provider reports basal as a full-day projection) and rounds at the end.
func Normalize(t Totals, w Window) Metrics {
	bmr := t.CaloriesBmr * DayFraction(w.Elapsed())
	total := t.CaloriesActive + bmr

	return Metrics{
		Steps:          int(max(t.Steps, 0)),
		Calories:       roundNonNegative(total),
		CaloriesActive: roundNonNegative(t.CaloriesActive),
		CaloriesBmr:    roundNonNegative(bmr),
	}
}

func roundNonNegative(v float64) int {
	return int(math.Round(math.Max(v, 0)))
}
