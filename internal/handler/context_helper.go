package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradeflow-api/internal/middleware"
	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
	"github.com/noah-isme/gradeflow-api/pkg/response"
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

// actorFromContext writes a 401 and returns false when no claims are present.
func actorFromContext(c *gin.Context) (models.ActorContext, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.ActorContext{}, false
	}
	return claims.Actor(), true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return fallback
}
