package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"github.com/fatflowers/billingsync/pkg/logctx"
	"github.com/fatflowers/billingsync/pkg/response"
)

const authErrorKey = "auth_error"

var errNoSecret = errors.New("jwt secret is not configured")

// AuthMiddleware resolves the caller from an HS256 bearer token whose
// subject is the user id. Requests without a valid token continue
// anonymously; RequireUser rejects them where a user is needed.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}
		userID, err := parseToken(raw, secret)
		if err != nil {
			c.Set(authErrorKey, err)
			c.Next()
			return
		}
		c.Set(logctx.UserIDKey, userID)
		c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// RequireUser aborts with 401 unless AuthMiddleware identified the caller.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) != "" {
			c.Next()
			return
		}
		msg := "missing bearer token"
		if v, ok := c.Get(authErrorKey); ok {
			if err, ok := v.(error); ok {
				msg = "invalid bearer token: " + err.Error()
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorMsg(response.APIResponseCodeUnauthorized, msg))
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(logctx.UserIDKey)
}

// IssueToken signs a token for userID; used by tests and internal tooling.
func IssueToken(secret, userID string, claims jwt.StandardClaims) (string, error) {
	claims.Subject = userID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func parseToken(raw, secret string) (string, error) {
	if secret == "" {
		return "", errNoSecret
	}
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
