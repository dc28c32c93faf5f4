// Package middleware contains the reusable HTTP middleware of the booking
// API: bearer token verification, role checks, rate limiting and request
// logging.
package middleware

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates an HS256 bearer token
// and stores its subject and role claims in the request context under
// ContextUserID (as uint64) and ContextRole.  Tokens are issued by the
// identity service sharing secret; this service never sees credentials.
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			uid, err := subject(claims)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			role, _ := claims["role"].(string)
			if role == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(ContextUserID, uid)
			c.Set(ContextRole, strings.ToUpper(role))
			return next(c)
		}
	}
}

// subject reads sub as a positive integer.  JSON numbers decode as
// float64; string subjects are accepted as well.
func subject(claims jwt.MapClaims) (uint64, error) {
	switch v := claims["sub"].(type) {
	case float64:
		if v < 1 || v != math.Trunc(v) || v >= 1<<63 {
			return 0, fmt.Errorf("invalid sub %v", v)
		}
		return uint64(v), nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("invalid sub %q", v)
		}
		return n, nil
	}
	return 0, errors.New("missing sub")
}
