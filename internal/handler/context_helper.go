package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-adm-api/internal/middleware"
	"github.com/noah-isme/tutoring-adm-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// parseDate accepts the date-only wire format used across the API.
func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
