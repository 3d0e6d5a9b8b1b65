package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/pkg/auth"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
	"github.com/medidesk/practice-api/pkg/httputil"
)

const (
	ContextClaims = "claims"
	ContextActor  = "actor"
)

// TokenVerifier validates an access token and returns its claims.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate verifies the bearer token and stores the caller in the
// gin context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("missing authorization header", nil))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("invalid authorization format", nil))
			return
		}

		claims, err := m.verifier.VerifyAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextActor, model.Actor{
			UserID:    claims.UserID,
			Role:      model.Role(claims.Role),
			ProfileID: claims.ProfileID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed. It must run after
// Authenticate.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := c.Get(ContextActor)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("authentication required", nil))
			return
		}
		if !actor.(model.Actor).Is(roles...) {
			httputil.RespondWithError(c, apperrors.Forbidden("insufficient role for this operation"))
			return
		}
		c.Next()
	}
}

// CurrentActor returns the authenticated caller, or an anonymous actor
// carrying only the request metadata.
func CurrentActor(c *gin.Context) model.Actor {
	if v, ok := c.Get(ContextActor); ok {
		if actor, ok := v.(model.Actor); ok {
			return actor
		}
	}
	return model.Actor{
		UserID:    uuid.Nil,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// CurrentClaims returns the verified access token claims, if any.
func CurrentClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ContextClaims); ok {
		claims, _ := v.(*auth.Claims)
		return claims
	}
	return nil
}
