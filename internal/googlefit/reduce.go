package googlefit

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Totals are the raw accumulations of one aggregate payload. Calories stay in
// floating point until Normalize rounds them.
type Totals struct {
	Steps          int64
	CaloriesActive float64
	CaloriesBmr    float64
}

// sourceRule routes the first value slot of each point to an accumulator.
type sourceRule struct {
	marker string
	add    func(t *Totals, value gjson.Result)
}

// sourceRules are tried in order against a dataset's dataSourceId; the first
// substring match wins. Datasets matching nothing are ignored.
var sourceRules = []sourceRule{
	{marker: "step_count", add: func(t *Totals, v gjson.Result) { t.Steps += v.Get("intVal").Int() }},
	{marker: "calories.expended", add: func(t *Totals, v gjson.Result) { t.CaloriesActive += v.Get("fpVal").Float() }},
	{marker: "calories.bmr", add: func(t *Totals, v gjson.Result) { t.CaloriesBmr += v.Get("fpVal").Float() }},
}

func ruleFor(dataSourceID string) *sourceRule {
	for i := range sourceRules {
		if strings.Contains(dataSourceID, sourceRules[i].marker) {
			return &sourceRules[i]
		}
	}
	return nil
}

// Reduce sums every point of every dataset of every bucket. Missing buckets,
// datasets, points or value slots contribute zero; malformed input never fails.
func Reduce(raw []byte) Totals {
	var t Totals
	gjson.GetBytes(raw, "bucket").ForEach(func(_, bucket gjson.Result) bool {
		bucket.Get("dataset").ForEach(func(_, ds gjson.Result) bool {
			rule := ruleFor(ds.Get("dataSourceId").String())
			if rule == nil {
				return true
			}
			ds.Get("point").ForEach(func(_, p gjson.Result) bool {
				rule.add(&t, p.Get("value.0"))
				return true
			})
			return true
		})
		return true
	})
	return t
}
