package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"horus/nutrition-api/internal/googlefit"
)

// metricsSource is satisfied by *googlefit.Aggregator.
type metricsSource interface {
	Read(ctx context.Context) (googlefit.Reading, error)
}

// smartwatchResponse is the success body of GET /api/smartwatch/metrics.
type smartwatchResponse struct {
	OK bool `json:"ok"`
	googlefit.Metrics
}

var errFitNotConfigured = errors.New("google fit is not configured")

// todayMetrics reads today's activity from Google Fit. A source that failed
// to build at startup reports its construction error on every call.
func (h *Handler) todayMetrics(ctx context.Context) (googlefit.Reading, error) {
	if h.fit == nil {
		if h.fitErr != nil {
			return googlefit.Reading{}, h.fitErr
		}
		return googlefit.Reading{}, errFitNotConfigured
	}
	return h.fit.Read(ctx)
}

// smartwatchError answers 500 {"message"}. The upstream error text is
// attached as "detail" only when EXPOSE_ERROR_DETAIL is on.
func (h *Handler) smartwatchError(c *gin.Context, err error) {
	log.Printf("[smartwatch] failed to fetch metrics: %v", err)
	body := gin.H{"message": "failed to fetch smartwatch metrics"}
	if h.cfg.Server.ExposeErrorDetail {
		body["detail"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

// getSmartwatchMetrics returns steps and calories from local midnight until now.
// GET /api/smartwatch/metrics (also mounted at /apiSmartwatch/smartwatch/metrics).
func (h *Handler) getSmartwatchMetrics(c *gin.Context) {
	r, err := h.todayMetrics(c.Request.Context())
	if err != nil {
		h.smartwatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, smartwatchResponse{OK: true, Metrics: r.Metrics})
}

// syncSmartwatch stores today's smartwatch reading in the authenticated
// user's daily metrics, under the date the reading's window covers.
// POST /api/smartwatch/sync.
func (h *Handler) syncSmartwatch(c *gin.Context) {
	userID := c.GetInt("user_id")

	r, err := h.todayMetrics(c.Request.Context())
	if err != nil {
		h.smartwatchError(c, err)
		return
	}

	steps := r.Steps
	stored, err := h.metrics.Store(c, userID, r.Window.Day(), r.Calories, &steps)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to store daily metrics")
		return
	}

	c.JSON(http.StatusOK, stored)
}
