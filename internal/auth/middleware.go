package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"TodoAPI/internal/domain"
	"TodoAPI/internal/logging"

	"github.com/gin-gonic/gin"
)

const (
	contextKeyUser   = "auth_user"
	contextKeyClaims = "auth_claims"
)

// UserLookup resolves a token subject to a user.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (domain.User, error)
}

// RevocationChecker reports revoked token ids.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// CurrentUser returns the user set by RequireBearer.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(contextKeyUser)
	if !ok {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}

// CurrentClaims returns the verified token claims set by RequireBearer.
func CurrentClaims(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return Claims{}, false
	}
	cl, ok := v.(Claims)
	return cl, ok
}

// BearerToken extracts the credentials of an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireBearer returns a middleware that verifies the bearer token, checks it
// has not been revoked and loads its subject. Any failure responds with 401.
func RequireBearer(tokens *TokenIssuer, users UserLookup, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			unauthorized(c)
			return
		}
		ctx := c.Request.Context()
		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(ctx, claims.ID)
			if err != nil {
				logging.FromContext(ctx).Error("check token revocation", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if isRevoked {
				unauthorized(c)
				return
			}
		}
		user, err := users.FindByUsername(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				unauthorized(c)
				return
			}
			logging.FromContext(ctx).Error("resolve token subject", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Set(contextKeyUser, user)
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
}
