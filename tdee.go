package main

import "math"

// activityMultipliers maps activity level strings to their TDEE multiplier.
// This is the single source of truth for valid activity levels; also used for
// input validation on create and patch.
var activityMultipliers = map[string]float64{
	"sedentario":              1.2,
	"levemente_ativo":         1.375,
	"consideravelmente_ativo": 1.55,
	"ativo_com_frequencia":    1.725,
}

// objectiveAdjustments is the daily kcal offset applied to TDEE per objective.
var objectiveAdjustments = map[string]int{
	"emagrecer":    -500,
	"manutencao":   0,
	"ganhar_massa": 300,
}

var genders = map[string]bool{
	"masculino": true,
	"feminino":  true,
}

// computeEnergy computes BMR (Mifflin-St Jeor), TDEE and the suggested daily
// calorie budget from a user profile. Returns ok=false when the profile lacks
// a usable weight, height or age, or names an unknown level or objective.
func computeEnergy(u *user) (bmr, tdee, budget int, ok bool) {
	if u.WeightKG <= 0 || u.HeightCM <= 0 || u.Age <= 0 || u.Age > 130 {
		return 0, 0, 0, false
	}
	mult, found := activityMultipliers[u.Level]
	if !found {
		return 0, 0, 0, false
	}
	adjust, found := objectiveAdjustments[u.Objective]
	if !found {
		return 0, 0, 0, false
	}

	bmrF := 10*u.WeightKG + 6.25*u.HeightCM - 5*float64(u.Age)
	if u.Gender == "masculino" {
		bmrF += 5
	} else {
		bmrF -= 161
	}
	tdeeF := bmrF * mult

	// Round once at the end so the budget matches the displayed TDEE.
	budgetF := math.Round(tdeeF) + float64(adjust)
	return int(math.Round(bmrF)), int(math.Round(tdeeF)), int(budgetF), true
}

// populateEnergy fills the computed-only Energy field on u.
// No-ops if the profile is incomplete.
func populateEnergy(u *user) {
	if bmr, tdee, budget, ok := computeEnergy(u); ok {
		u.Energy = &energyProfile{BMR: bmr, TDEE: tdee, Budget: budget}
	}
}
