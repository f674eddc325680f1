package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScanDate implements pgtype.DateScanner so pgx can scan PostgreSQL date
// columns (OID 1082) into DateOnly. NULL values zero the time and return nil
// so that *DateOnly pointer fields can be set to nil by pgx's NULL handling.
func (d *DateOnly) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		d.Time = time.Time{}
		return nil
	}
	d.Time = v.Time
	return nil
}

/* ─── Domain structs ─────────────────────────────────────────────────── */

// user maps to the users table. AuthToken and Password are hidden from JSON responses.
type user struct {
	ID        int        `json:"id"         db:"id"`
	Name      string     `json:"name"       db:"name"`
	Email     string     `json:"email"      db:"email"`
	Password  string     `json:"-"          db:"password"`
	AuthToken string     `json:"-"          db:"auth_token"`
	Age       int        `json:"age"        db:"age"`
	WeightKG  float64    `json:"weight_kg"  db:"weight_kg"`
	HeightCM  float64    `json:"height_cm"  db:"height_cm"`
	Gender    string     `json:"gender"     db:"gender"`
	Level     string     `json:"level"      db:"level"`
	Objective string     `json:"objective"  db:"objective"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`

	// Computed from the profile; not stored.
	Energy *energyProfile `json:"energy,omitempty" db:"-"`
}

// energyProfile is the BMR / TDEE / suggested budget derived from a user profile.
type energyProfile struct {
	BMR    int `json:"bmr"`
	TDEE   int `json:"tdee"`
	Budget int `json:"budget"`
}

// dailyMetric maps to daily_metrics. One row per (user_id, date).
type dailyMetric struct {
	ID        int        `json:"id"         db:"id"`
	UserID    int        `json:"user_id"    db:"user_id"`
	Date      DateOnly   `json:"date"       db:"date"`
	Calories  int        `json:"calories"   db:"calories"`
	Steps     int        `json:"steps"      db:"steps"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`
}

// passwordResetToken maps to password_reset_tokens. Only the SHA-256 of the
// token handed to the user is stored.
type passwordResetToken struct {
	ID        int        `db:"id"`
	UserID    int        `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// usable reports whether the token can still reset a password at now.
func (t passwordResetToken) usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

/* ─── Requests / responses ───────────────────────────────────────────── */

// createUserRequest is the request body for POST /api/users.
type createUserRequest struct {
	Name      string  `json:"name"      binding:"required"`
	Email     string  `json:"email"     binding:"required"`
	Password  string  `json:"password"  binding:"required,min=6"`
	Age       int     `json:"age"       binding:"gte=0,lte=130"`
	WeightKG  float64 `json:"weight_kg" binding:"gte=0"`
	HeightCM  float64 `json:"height_cm" binding:"gte=0"`
	Gender    string  `json:"gender"    binding:"required"`
	Level     string  `json:"level"     binding:"required"`
	Objective string  `json:"objective" binding:"required"`
}

// patchUserRequest is the request body for PATCH /api/users/:id.
// All fields are pointers; only non-nil fields get written to the database.
type patchUserRequest struct {
	Name      *string  `json:"name"`
	Email     *string  `json:"email"`
	Password  *string  `json:"password"  binding:"omitempty,min=6"`
	Age       *int     `json:"age"       binding:"omitempty,gte=0,lte=130"`
	WeightKG  *float64 `json:"weight_kg" binding:"omitempty,gte=0"`
	HeightCM  *float64 `json:"height_cm" binding:"omitempty,gte=0"`
	Gender    *string  `json:"gender"`
	Level     *string  `json:"level"`
	Objective *string  `json:"objective"`
}

// loginRequest is the request body for POST /api/users/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// upsertDailyMetricRequest is the request body for POST /api/metrics/daily.
// Steps is optional; omitting it keeps the stored value (0 for a new row).
type upsertDailyMetricRequest struct {
	Date     string `json:"date"`
	Calories *int   `json:"calories"`
	Steps    *int   `json:"steps"`
}

// progressStats summarizes the stored days of a GET /api/metrics/progress range.
type progressStats struct {
	DaysTracked int `json:"days_tracked"`
	AvgCalories int `json:"avg_calories"`
	AvgSteps    int `json:"avg_steps"`
	TotalSteps  int `json:"total_steps"`
}

type progressResponse struct {
	Days  []dailyMetric `json:"days"`
	Stats progressStats `json:"stats"`
}
