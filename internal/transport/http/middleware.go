package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleDealer   = "dealer"
	RoleCustomer = "customer"
)

const claimsKey = "authClaims"

// Claims is the authenticated identity resolved from a bearer token. For
// dealer accounts the user id is the dealer id.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the Authorization bearer token and stores the
// resolved claims on the request context.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abortUnauthorized(c, "token must be in format: Bearer <token>")
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			abortUnauthorized(c, "token is invalid or expired")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid || claims.UserID == "" {
			abortUnauthorized(c, "token claims are invalid")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// requireDealer ensures the authenticated identity is the dealer named in
// the route.
func requireDealer(c *gin.Context, dealerID string) (*Claims, bool) {
	claims, ok := claimsFrom(c)
	if !ok || claims.Role != RoleDealer || claims.UserID != dealerID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error_kind": "UNAUTHORIZED",
			"message":    "only the owning dealer may perform this operation",
		})
		return nil, false
	}
	return claims, true
}

// requireCustomer ensures the authenticated identity is a customer account.
func requireCustomer(c *gin.Context) (*Claims, bool) {
	claims, ok := claimsFrom(c)
	if !ok || claims.Role != RoleCustomer {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error_kind": "UNAUTHORIZED",
			"message":    "only customer accounts may create bookings",
		})
		return nil, false
	}
	return claims, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error_kind": "UNAUTHORIZED",
		"message":    message,
	})
}
