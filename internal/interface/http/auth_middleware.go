package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medimind/medimind-api/internal/domain/auth"
	apperrors "github.com/medimind/medimind-api/pkg/errors"
)

func authMiddleware(svc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "invalid authorization header", nil))
			return
		}
		token := strings.TrimSpace(parts[1])
		claims, err := svc.ValidateToken(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			code := "invalid_token"
			if !apperrors.IsCode(err, "invalid_token") {
				status = http.StatusInternalServerError
				code = "auth_failed"
			}
			abortWithError(c, newHTTPError(status, code, errMessage(err), err))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// requireDoctor gates the patient-records surface. It runs after
// authMiddleware, so missing claims indicate a wiring bug, not a bad token.
func requireDoctor() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := getClaims(c)
		if !ok {
			abortWithError(c, newHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
			return
		}
		if claims.UserType != auth.UserTypeDoctor {
			abortWithError(c, newHTTPError(http.StatusForbidden, "forbidden", "doctor access required", nil))
			return
		}
		c.Next()
	}
}
