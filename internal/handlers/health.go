package handlers

import (
	"context"
	"net/http"
	"time"

	"cart-service/internal/repository"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthCheck returns service health status (basic)
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cart-service",
	})
}

type HealthHandler struct {
	db      *gorm.DB
	catalog *repository.CatalogRepository
}

func NewHealthHandler(db *gorm.DB, catalog *repository.CatalogRepository) *HealthHandler {
	return &HealthHandler{db: db, catalog: catalog}
}

// ReadyCheck returns detailed health status including database and Redis
func (h *HealthHandler) ReadyCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	health := gin.H{
		"status":  "healthy",
		"service": "cart-service",
		"checks":  gin.H{},
	}
	checks := health["checks"].(gin.H)

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		checks["database"] = gin.H{"status": "unhealthy", "error": err.Error()}
	} else {
		checks["database"] = gin.H{"status": "healthy"}
	}

	if err := h.catalog.RedisHealth(ctx); err != nil {
		// Redis is a cache, not a dependency; degraded but serving
		checks["redis"] = gin.H{"status": "unhealthy", "error": err.Error()}
	} else {
		checks["redis"] = gin.H{"status": "healthy"}
	}

	status := http.StatusOK
	for _, check := range checks {
		if checkMap, ok := check.(gin.H); ok {
			if s, ok := checkMap["status"]; ok && s == "unhealthy" {
				health["status"] = "degraded"
			}
		}
	}
	if dbCheck, ok := checks["database"].(gin.H); ok && dbCheck["status"] == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, health)
}
