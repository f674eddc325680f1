package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

const dateLayout = "2006-01-02"

// getDailyMetric returns the authenticated user's stored metrics for one date.
// GET /api/metrics/daily?date=YYYY-MM-DD. A date with no row answers zeros
// rather than 404.
func (h *Handler) getDailyMetric(c *gin.Context) {
	userID := c.GetInt("user_id")
	date := c.Query("date")

	d, err := time.Parse(dateLayout, date)
	if err != nil {
		apiError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	m, err := queryOne[dailyMetric](h.db, c,
		"SELECT * FROM daily_metrics WHERE user_id = @userID AND date = @date",
		pgx.NamedArgs{"userID": userID, "date": date})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusInternalServerError, "failed to fetch daily metrics")
			return
		}
		m = dailyMetric{UserID: userID, Date: DateOnly{d}}
	}

	c.JSON(http.StatusOK, m)
}

// upsertDailyMetric creates or updates the metrics row for the given date.
// POST /api/metrics/daily. Body: { "date": "YYYY-MM-DD", "calories": 1800, "steps": 9000 }.
// The UNIQUE(user_id, date) constraint means posting the same date updates in
// place; an omitted steps keeps the stored value.
func (h *Handler) upsertDailyMetric(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body upsertDailyMetricRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := time.Parse(dateLayout, body.Date); err != nil {
		apiError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if body.Calories == nil || *body.Calories < 0 {
		apiError(c, http.StatusBadRequest, "calories must be a non-negative number")
		return
	}
	if body.Steps != nil && *body.Steps < 0 {
		apiError(c, http.StatusBadRequest, "steps must be a non-negative number")
		return
	}

	m, err := h.metrics.Store(c, userID, body.Date, *body.Calories, body.Steps)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to upsert daily metrics")
		return
	}

	c.JSON(http.StatusOK, m)
}

// dailyMetricStore upserts one (user, date) row. steps=nil leaves the stored
// steps untouched.
type dailyMetricStore interface {
	Store(ctx context.Context, userID int, date string, calories int, steps *int) (dailyMetric, error)
}

type pgDailyMetrics struct {
	db pgxQuerier
}

func (s pgDailyMetrics) Store(ctx context.Context, userID int, date string, calories int, steps *int) (dailyMetric, error) {
	return queryOne[dailyMetric](s.db, ctx,
		`INSERT INTO daily_metrics (user_id, date, calories, steps)
		 VALUES (@userID, @date, @calories, COALESCE(@steps, 0))
		 ON CONFLICT (user_id, date) DO UPDATE SET
			calories   = EXCLUDED.calories,
			steps      = COALESCE(@steps, daily_metrics.steps),
			updated_at = now()
		 RETURNING *`,
		pgx.NamedArgs{"userID": userID, "date": date, "calories": calories, "steps": steps})
}

// getProgress returns the stored days and aggregate stats for a date range.
// GET /api/metrics/progress?start=YYYY-MM-DD&end=YYYY-MM-DD. Both params required.
// Only days with a stored row are returned (no gap-filling).
func (h *Handler) getProgress(c *gin.Context) {
	userID := c.GetInt("user_id")
	start := c.Query("start")
	end := c.Query("end")

	if start == "" || end == "" {
		apiError(c, http.StatusBadRequest, "start and end query params are required")
		return
	}
	if _, err := time.Parse(dateLayout, start); err != nil {
		apiError(c, http.StatusBadRequest, "invalid start, expected YYYY-MM-DD")
		return
	}
	if _, err := time.Parse(dateLayout, end); err != nil {
		apiError(c, http.StatusBadRequest, "invalid end, expected YYYY-MM-DD")
		return
	}
	if start > end {
		apiError(c, http.StatusBadRequest, "start must not be after end")
		return
	}

	days, err := queryMany[dailyMetric](h.db, c,
		`SELECT * FROM daily_metrics
		 WHERE user_id = @userID AND date >= @start AND date <= @end
		 ORDER BY date ASC`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch progress data")
		return
	}
	if days == nil {
		days = []dailyMetric{}
	}

	c.JSON(http.StatusOK, progressResponse{Days: days, Stats: summarizeProgress(days)})
}

// summarizeProgress averages over tracked days only; untracked days in the
// range don't pull the averages down.
func summarizeProgress(days []dailyMetric) progressStats {
	var stats progressStats
	var totalCalories int
	for _, d := range days {
		stats.DaysTracked++
		totalCalories += d.Calories
		stats.TotalSteps += d.Steps
	}
	if stats.DaysTracked > 0 {
		stats.AvgCalories = totalCalories / stats.DaysTracked
		stats.AvgSteps = stats.TotalSteps / stats.DaysTracked
	}
	return stats
}
