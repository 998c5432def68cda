package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"cart-service/internal/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SetupCORS configures CORS middleware
func SetupCORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000", // Next.js storefront
			"http://localhost:4200", // Admin shell app
			"https://*.civica.tech",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With", "X-Tenant-ID", "X-User-ID", "X-Guest-Cart-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// Logger returns a gin.HandlerFunc for logging requests
func Logger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}

// Recovery returns a middleware that recovers from panics
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(string); ok {
			log.Printf("Panic recovered: %s", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": "An unexpected error occurred",
			})
		}
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// TenantID middleware extracts tenant ID from headers
// SECURITY: In production, tenant ID is required for multi-tenant data isolation
func TenantID() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			// Try Istio JWT claim header (used by admin BFF)
			tenantID = c.GetHeader("x-jwt-claim-tenant-id")
		}
		if tenantID == "" {
			// Fallback for development only
			tenantID = c.Query("tenantId")
		}
		if tenantID != "" {
			c.Set("tenant_id", tenantID)
		}
		c.Next()
	}
}

// RequireTenantID aborts requests that carry no tenant context
func RequireTenantID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("tenant_id"); !exists {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "TENANT_REQUIRED",
					Message: "X-Tenant-ID header is required",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID middleware extracts the authenticated user id (set by the proxy/BFF
// after authentication; this service never validates credentials itself)
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			raw = c.GetHeader("x-jwt-claim-sub")
		}
		if raw == "" {
			c.Next()
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "INVALID_USER_ID",
					Message: "X-User-ID header is not a valid UUID",
				},
			})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

// GetUserID returns the authenticated user id from the request context, if any.
func GetUserID(c *gin.Context) *uuid.UUID {
	v, exists := c.Get("user_id")
	if !exists {
		return nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}
