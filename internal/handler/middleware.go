package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"project_archive/internal/auth"
)

const userIDKey = "UserID"

// AuthMiddleware parses the Bearer access token and stores the subject user
// id in the request context.
func AuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "empty authorization header")

			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			newErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")

			return
		}

		userID, err := issuer.Decode(parts[1])
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "invalid token")

			return
		}

		c.Set(userIDKey, userID)

		c.Next()
	}
}
