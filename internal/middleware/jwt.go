package middleware

import (
	"context"
	"net/http"

	"talentflow/internal/common"
	"talentflow/internal/models"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTCustomClaims carries the tenant-scoped identity issued at login.
type JWTCustomClaims struct {
	UserID   uuid.UUID `json:"uid"`
	TenantID uuid.UUID `json:"tid"`
	Role     string    `json:"role"`
	Name     string    `json:"name"`
	jwt.RegisteredClaims
}

// NewJWTMiddleware validates bearer tokens and stashes the claims into the
// request context. When jwksURL is set, tokens are verified against the
// remote key set; otherwise the shared secret is used.
func NewJWTMiddleware(secret, jwksURL string) (echo.MiddlewareFunc, error) {
	config := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JWTCustomClaims)
		},
		SigningKey: []byte(secret),
		SuccessHandler: func(c echo.Context) {
			claims, ok := c.Get("user").(*jwt.Token).Claims.(*JWTCustomClaims)
			if !ok {
				return
			}
			ctx := context.WithValue(c.Request().Context(), common.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, common.TenantIDKey, claims.TenantID)
			ctx = context.WithValue(ctx, common.RoleKey, claims.Role)
			if claims.Name != "" {
				ctx = context.WithValue(ctx, common.ActorKey, claims.Name)
			}
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}

	if jwksURL != "" {
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			return nil, err
		}
		config.SigningKey = nil
		config.KeyFunc = jwks.Keyfunc
	}

	return echojwt.WithConfig(config), nil
}

// RequireAdmin gates destructive operations behind the admin role.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, ok := common.GetRoleFromContext(c.Request().Context())
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
		}
		if role != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "Admin role required")
		}
		return next(c)
	}
}
