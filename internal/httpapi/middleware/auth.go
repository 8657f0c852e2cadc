// Package middleware holds the gin middleware that sits in front of
// the core: request id propagation, security headers, metrics, and the
// auth boundary — adapted from the teacher's internal/http/middleware.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
)

const errUnauthorized = "Unauthorized"

// OwnerIDKey is the gin context key the Auth middleware sets; handlers
// read it to populate domain.Job.OwnerID, which the core stores
// opaquely and never interprets.
const OwnerIDKey = "owner_id"

// Auth validates a Bearer JWT and sets OwnerIDKey in the gin context.
//
// When jwksURL is non-empty, tokens are verified against the JWKS
// endpoint (RS256) via lestrrat-go/jwx; the key set is cached and
// refreshed no more often than every 15 minutes. When jwksURL is empty, hmacKey is used
// for HS256 verification via golang-jwt instead — JWKS takes
// precedence when both are set.
func Auth(jwksURL string, hmacKey []byte) gin.HandlerFunc {
	var cache *jwk.Cache

	if jwksURL != "" {
		c := jwk.NewCache(context.Background())
		if err := c.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			panic("jwk cache register: " + err.Error())
		}
		cache = c
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}
		rawToken := strings.TrimPrefix(header, "Bearer ")

		var ownerID string
		if cache != nil {
			keySet, fetchErr := cache.Get(c.Request.Context(), jwksURL)
			if fetchErr != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			tok, err := jwxjwt.Parse([]byte(rawToken), jwxjwt.WithKeySet(keySet), jwxjwt.WithValidate(true))
			if err != nil || tok == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			ownerID = tok.Subject()
		} else {
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return hmacKey, nil
			})
			if err != nil || !token.Valid {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			ownerID, _ = claims["sub"].(string)
		}

		if ownerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}
