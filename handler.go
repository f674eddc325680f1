package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"horus/nutrition-api/internal/config"
)

// Handler holds shared dependencies (db pool, config, upstream clients) for all
// route handlers.
type Handler struct {
	db       *pgxpool.Pool
	cfg      *config.Config
	mailer   Mailer
	profiles profileLoader
	metrics  dailyMetricStore

	// fit is nil when Google Fit is not configured; fitErr then holds the
	// construction error, reported on each metrics request.
	fit    metricsSource
	fitErr error

	now func() time.Time
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// queryOne runs a query and scans the first row into T using RowToStructByName.
// Logs query and scan errors for debugging (e.g. struct/column mismatches).
func queryOne[T any](db pgxQuerier, ctx context.Context, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := db.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryOne] Query error: %v", err)
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Printf("[queryOne] Scan error: %v", err)
	}
	return result, err
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
func queryMany[T any](db pgxQuerier, ctx context.Context, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := db.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryMany] Query error: %v", err)
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		log.Printf("[queryMany] Scan error: %v", err)
	}
	return results, err
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx so the helpers
// work inside transactions.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// newDBPool creates a connection pool. We use a pool (not a single conn) because
// managed Postgres providers close idle connections.
func newDBPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from server-side prepared statement caches after schema changes.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(h.cfg.Server.CORSOrigin))
	router.GET("/health", h.health)

	// Public routes
	router.POST("/api/users", h.createUser)
	router.POST("/api/users/login", h.login)
	router.POST("/api/users/forgot-password", h.forgotPassword)
	router.POST("/api/users/reset-password", h.resetPassword)
	router.GET("/api/smartwatch/metrics", h.getSmartwatchMetrics)
	router.GET("/apiSmartwatch/smartwatch/metrics", h.getSmartwatchMetrics)

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware())
	api.GET("/users", h.listUsers)
	api.GET("/users/:id", h.getUser)
	api.PATCH("/users/:id", h.patchUser)
	api.DELETE("/users/:id", h.deleteUser)
	api.GET("/metrics/daily", h.getDailyMetric)
	api.POST("/metrics/daily", h.upsertDailyMetric)
	api.GET("/metrics/progress", h.getProgress)
	api.POST("/smartwatch/sync", h.syncSmartwatch)

	ai := router.Group("/ai", h.authMiddleware())
	ai.POST("/diet", h.createDietPlan)
	ai.POST("/create", h.createDietPlan)

	if h.cfg.Server.Mode == gin.DebugMode {
		router.GET("/api/_dbg/users-by-email", h.debugUsersByEmail)
	}
}
