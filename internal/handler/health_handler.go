package handler

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intellipatent/intellipatent/internal/vectorindex"
)

type HealthHandler struct {
	db    *sql.DB
	index vectorindex.Index
}

func NewHealthHandler(db *sql.DB, index vectorindex.Index) *HealthHandler {
	return &HealthHandler{db: db, index: index}
}

// Liveness is a bare process check.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness checks the metadata store and the vector index.
func (h *HealthHandler) Readiness(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		dbStatus = err.Error()
		status = http.StatusServiceUnavailable
	}
	indexStatus := "ok"
	var vectors int64
	if stats, err := h.index.Stats(c.Request.Context()); err != nil {
		indexStatus = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		vectors = stats.VectorCount
	}
	c.JSON(status, gin.H{
		"database": dbStatus,
		"index":    indexStatus,
		"vectors":  vectors,
	})
}
