package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type PoolStats struct {
	TotalConns    int32  `json:"total_conns"`
	IdleConns     int32  `json:"idle_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	MaxConns      int32  `json:"max_conns"`
	AcquireWait   string `json:"acquire_wait"`
}

func poolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
		AcquireWait:   stat.AcquireDuration().String(),
	}
}

// SchemaHealth describes how far a tenant schema lags behind the migration
// files on disk.
type SchemaHealth struct {
	Schema  string `json:"schema"`
	Applied int    `json:"applied"`
	Pending []int  `json:"pending"`
}

func schemaHealth(schema string, statuses []MigrationStatus) SchemaHealth {
	h := SchemaHealth{Schema: schema, Pending: []int{}}
	for _, s := range statuses {
		if s.Applied {
			h.Applied++
		} else {
			h.Pending = append(h.Pending, s.Version)
		}
	}
	return h
}

// HealthHandler pings the database and checks the default tenant's schema.
// Pending migrations make the instance unhealthy: requests against that
// tenant would hit missing tables.
func HealthHandler(pool *pgxpool.Pool, migrator *Migrator, defaultTenant string) echo.HandlerFunc {
	schema := SchemaName(defaultTenant)
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		body := map[string]interface{}{"pool": poolStats(pool)}
		if err := pool.Ping(ctx); err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}

		statuses, err := migrator.Status(ctx, schema)
		if err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		sh := schemaHealth(schema, statuses)
		body["schema"] = sh
		if len(sh.Pending) > 0 {
			body["status"] = "degraded"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		body["status"] = "healthy"
		return c.JSON(http.StatusOK, body)
	}
}
