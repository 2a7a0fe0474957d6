package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"coursechat/internal/log"
)

// health reports process liveness for container probes.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the server can take traffic. With a pool it
// pings the database and includes pool stats; without one it degrades to a
// plain liveness answer.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
			return
		}

		if err := pool.Ping(r.Context()); err != nil {
			logger.Warn("readiness ping failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database is unreachable", logger)
			return
		}

		stats := pool.Stat()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "ready",
			"total_conns":       stats.TotalConns(),
			"idle_conns":        stats.IdleConns(),
			"acquired_conns":    stats.AcquiredConns(),
			"max_conns":         stats.MaxConns(),
			"constructing_conn": stats.ConstructingConns(),
		}, logger)
	}
}
