package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/0debt/expenses-service/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var internalSecret []byte

// ServiceClaims are the claims carried by a service-to-service token.
type ServiceClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// InitJWT stores the secret used to sign and verify internal tokens.
func InitJWT(cfg *config.Config) {
	internalSecret = []byte(cfg.Auth.InternalSecret)
}

// GenerateServiceToken issues a token identifying a calling service, used by
// sibling microservices (analytics, users) against the /internal routes.
func GenerateServiceToken(service string, ttl time.Duration) (string, error) {
	if len(internalSecret) == 0 {
		return "", errors.New("jwt not initialized")
	}
	claims := ServiceClaims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "expenses-service",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(internalSecret)
}

// ParseServiceToken verifies a token and returns its claims.
func ParseServiceToken(tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return internalSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// InternalAuth guards the /internal routes with a bearer service token.
func InternalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "missing service token"})
			c.Abort()
			return
		}
		claims, err := ParseServiceToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid service token"})
			c.Abort()
			return
		}
		c.Set("callerService", claims.Service)
		c.Next()
	}
}

// GetCallerService returns the authenticated caller set by InternalAuth.
func GetCallerService(c *gin.Context) string {
	if v, ok := c.Get("callerService"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
